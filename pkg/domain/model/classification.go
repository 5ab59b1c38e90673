package model

import (
	"github.com/shift-lab/argus/pkg/domain/types"
)

// Classification is the tagged result of classifying one message. Exactly
// one of three shapes applies: unclassified (Kind == EventNone), a rule
// match (Source == SourceRule, Confidence == 1.0), or an AI match
// (Source == SourceAI with a model-reported confidence).
type Classification struct {
	Kind       types.EventKind
	Confidence float64
	Source     types.ClassificationSource

	Reason                  string
	ReasonCategory          types.ReasonCategory
	ExpectedDurationMinutes *int
	Urgency                 types.Urgency
	Notes                   string
}

// Unclassified is the zero-confidence non-result
func Unclassified() Classification {
	return Classification{
		Kind:       types.EventNone,
		Confidence: 0,
	}
}

// RuleMatch builds a fully-confident rule classification
func RuleMatch(kind types.EventKind) Classification {
	return Classification{
		Kind:       kind,
		Confidence: 1.0,
		Source:     types.SourceRule,
		Urgency:    types.UrgencyNormal,
	}
}

// AIMatch builds an AI classification with the model-reported confidence
func AIMatch(kind types.EventKind, confidence float64) Classification {
	return Classification{
		Kind:       kind,
		Confidence: confidence,
		Source:     types.SourceAI,
		Urgency:    types.UrgencyNormal,
	}
}

// IsAttendance reports whether the classification names an actual event
func (c Classification) IsAttendance() bool {
	return c.Kind.IsValid()
}
