package types

import "fmt"

// EventKind represents the kind of an attendance event
type EventKind string

const (
	EventCheckin    EventKind = "CHECKIN"
	EventCheckout   EventKind = "CHECKOUT"
	EventBreakStart EventKind = "BREAK_START"
	EventBreakEnd   EventKind = "BREAK_END"

	// EventNone marks a message that is not an attendance event. It is
	// never persisted; it only flows through classification results.
	EventNone EventKind = "NONE"
)

// AllEventKinds returns all persistable event kinds
func AllEventKinds() []EventKind {
	return []EventKind{
		EventCheckin,
		EventCheckout,
		EventBreakStart,
		EventBreakEnd,
	}
}

// IsValid checks if the event kind is a persistable kind
func (k EventKind) IsValid() bool {
	switch k {
	case EventCheckin,
		EventCheckout,
		EventBreakStart,
		EventBreakEnd:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event kind
func (k EventKind) String() string {
	return string(k)
}

// ParseEventKind parses a string into an EventKind
func ParseEventKind(s string) (EventKind, error) {
	kind := EventKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid event kind: %s", s)
	}
	return kind, nil
}
