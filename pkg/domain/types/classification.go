package types

import "fmt"

// ClassificationSource identifies which path finalized a classification
type ClassificationSource string

const (
	SourceRule   ClassificationSource = "rule"
	SourceAI     ClassificationSource = "ai"
	SourceManual ClassificationSource = "manual"
)

// IsValid checks if the classification source is valid
func (s ClassificationSource) IsValid() bool {
	switch s {
	case SourceRule, SourceAI, SourceManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of the classification source
func (s ClassificationSource) String() string {
	return string(s)
}

// ReasonCategory categorizes break reasons
type ReasonCategory string

const (
	ReasonMeal      ReasonCategory = "meal"
	ReasonPersonal  ReasonCategory = "personal"
	ReasonRest      ReasonCategory = "rest"
	ReasonMeeting   ReasonCategory = "meeting"
	ReasonEmergency ReasonCategory = "emergency"
	ReasonOther     ReasonCategory = "other"
)

// AllReasonCategories returns all valid reason categories
func AllReasonCategories() []ReasonCategory {
	return []ReasonCategory{
		ReasonMeal,
		ReasonPersonal,
		ReasonRest,
		ReasonMeeting,
		ReasonEmergency,
		ReasonOther,
	}
}

// IsValid checks if the reason category is valid
func (c ReasonCategory) IsValid() bool {
	switch c {
	case ReasonMeal, ReasonPersonal, ReasonRest, ReasonMeeting, ReasonEmergency, ReasonOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of the reason category
func (c ReasonCategory) String() string {
	return string(c)
}

// ParseReasonCategory parses a string into a ReasonCategory
func ParseReasonCategory(s string) (ReasonCategory, error) {
	c := ReasonCategory(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid reason category: %s", s)
	}
	return c, nil
}

// Urgency indicates whether a break looks urgent
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// Normalize returns the urgency, treating empty as UrgencyNormal
func (u Urgency) Normalize() Urgency {
	if u == "" {
		return UrgencyNormal
	}
	return u
}

// String returns the string representation of the urgency
func (u Urgency) String() string {
	return string(u)
}
