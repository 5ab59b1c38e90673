package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shift-lab/argus/pkg/domain/types"
)

// EventID is the identifier of a stored attendance event
type EventID string

// NewEventID generates a new time-ordered event ID
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// EventKey uniquely identifies the source message of an event within a
// tenant. Reprocessing the same key must be a no-op.
type EventKey struct {
	TenantID  string
	ChannelID string
	MessageID string
}

// String returns the canonical form of the key
func (k EventKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.TenantID, k.ChannelID, k.MessageID)
}

// AttendanceEvent is an immutable classified fact about a user's work
// state. It is never mutated after creation, with two exceptions handled
// by the event store: the actual break duration back-annotated on a
// BREAK_START when its BREAK_END arrives, and the superseded marker set
// by a correction.
type AttendanceEvent struct {
	ID       EventID
	TenantID string
	// UserID is empty when the message author could not be resolved
	UserID   string
	UserName string

	Kind       types.EventKind
	Confidence float64
	Source     types.ClassificationSource

	// EventTime is the message timestamp. It is authoritative for
	// ordering; arrival time is not.
	EventTime        time.Time
	ExpectedReturnAt *time.Time

	// ActualDurationMinutes is set on a BREAK_START event once the
	// matching BREAK_END has been projected.
	ActualDurationMinutes *int

	Reason         string
	ReasonCategory types.ReasonCategory
	Urgency        types.Urgency
	Notes          string

	ChannelID  string
	MessageID  string
	RawMessage string

	// SupersededBy points at the manual correction event that replaced
	// this one. A superseded event is retained for audit but excluded
	// from projection.
	SupersededBy EventID

	CreatedAt time.Time
}

// Key returns the idempotence key of the event
func (e *AttendanceEvent) Key() EventKey {
	return EventKey{
		TenantID:  e.TenantID,
		ChannelID: e.ChannelID,
		MessageID: e.MessageID,
	}
}

// Superseded reports whether this event has been replaced by a correction
func (e *AttendanceEvent) Superseded() bool {
	return e.SupersededBy != ""
}

// Clone returns a deep copy of the event
func (e *AttendanceEvent) Clone() *AttendanceEvent {
	copied := *e
	if e.ExpectedReturnAt != nil {
		t := *e.ExpectedReturnAt
		copied.ExpectedReturnAt = &t
	}
	if e.ActualDurationMinutes != nil {
		d := *e.ActualDurationMinutes
		copied.ActualDurationMinutes = &d
	}
	return &copied
}
