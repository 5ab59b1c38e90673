package model

import "time"

// ChatMessage is the inbound unit from the message-ingest collaborator.
// Delivery is at-least-once; idempotence is handled by the event store.
type ChatMessage struct {
	TenantID       string
	MessageID      string
	ChannelID      string
	ChannelPurpose string
	AuthorID       string
	AuthorName     string
	Text           string
	Timestamp      time.Time
}
