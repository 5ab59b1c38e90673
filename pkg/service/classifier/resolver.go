package classifier

import (
	"context"

	"github.com/shift-lab/argus/pkg/domain/model"
)

// Resolver combines the rule matcher and the AI classifier into the
// final classification decision for a message.
type Resolver struct {
	ai *AIClassifier
}

// NewResolver builds a resolver. The AI classifier may be nil or empty,
// in which case unmatched messages are simply discarded.
func NewResolver(ai *AIClassifier) *Resolver {
	if ai == nil {
		ai = NewAIClassifier(nil)
	}
	return &Resolver{ai: ai}
}

// Resolve classifies a message. The default order is rules first, AI
// second; aiFirst inverts it for channels with mostly free-form
// phrasing. An AI result below the threshold is discarded, never
// downgraded to a rule match. The threshold comparison is inclusive:
// a confidence exactly at the threshold is accepted.
func (r *Resolver) Resolve(ctx context.Context, input Input, threshold float64, aiFirst bool) model.Classification {
	if aiFirst {
		if c := r.resolveAI(ctx, input, threshold); c.IsAttendance() {
			return c
		}
		return MatchRules(input.Text)
	}

	if c := MatchRules(input.Text); c.IsAttendance() {
		return c
	}
	return r.resolveAI(ctx, input, threshold)
}

func (r *Resolver) resolveAI(ctx context.Context, input Input, threshold float64) model.Classification {
	if !r.ai.Available() {
		return model.Unclassified()
	}
	c := r.ai.Classify(ctx, input)
	if !c.IsAttendance() || c.Confidence < threshold {
		return model.Unclassified()
	}
	return c
}
