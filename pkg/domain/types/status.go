package types

import "fmt"

// Status represents the live derived work state of a user
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusOnBreak Status = "ON_BREAK"
	StatusOffline Status = "OFFLINE"
	StatusUnknown Status = "UNKNOWN"
)

// AllStatuses returns all valid statuses
func AllStatuses() []Status {
	return []Status{
		StatusActive,
		StatusOnBreak,
		StatusOffline,
		StatusUnknown,
	}
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive,
		StatusOnBreak,
		StatusOffline,
		StatusUnknown:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as StatusUnknown
func (s Status) Normalize() Status {
	if s == "" {
		return StatusUnknown
	}
	return s
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a string into a Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return status, nil
}
