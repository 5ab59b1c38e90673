package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

const defaultProviderTimeout = 15 * time.Second

// Provider wraps one configured LLM backend. Providers are tried in
// order until one returns a usable classification.
type Provider struct {
	Name    string
	Client  gollem.LLMClient
	Timeout time.Duration
}

// Input carries the message plus the context the model needs to judge
// ambiguous phrasing.
type Input struct {
	Text           string
	AuthorName     string
	Timestamp      time.Time
	PreviousStatus types.Status
}

// AIClassifier classifies messages through a chain of LLM providers.
type AIClassifier struct {
	providers []Provider
}

// NewAIClassifier builds a classifier over the provider chain. An empty
// chain is valid; Classify then always returns the unclassified result.
func NewAIClassifier(providers []Provider) *AIClassifier {
	return &AIClassifier{providers: providers}
}

// Available reports whether any provider is configured
func (c *AIClassifier) Available() bool {
	return len(c.providers) > 0
}

// Classify runs the provider chain on the message. Classification is
// advisory: any provider or parse failure falls through to the next
// provider, and exhausting the chain yields the unclassified result
// rather than an error.
func (c *AIClassifier) Classify(ctx context.Context, input Input) model.Classification {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return model.Unclassified()
	}

	logger := logging.From(ctx)
	for _, p := range c.providers {
		result, err := c.classifyWith(ctx, p, input)
		if err != nil {
			logger.Warn("AI classification failed, trying next provider",
				"provider", p.Name,
				"error", err,
			)
			continue
		}
		return result
	}

	return model.Unclassified()
}

func (c *AIClassifier) classifyWith(ctx context.Context, p Provider, input Input) (model.Classification, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	// One retry per provider for transient failures
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		result, err := c.generate(ctx, p, input, timeout)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return model.Unclassified(), lastErr
}

func (c *AIClassifier) generate(ctx context.Context, p Provider, input Input, timeout time.Duration) (model.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := p.Client.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return model.Unclassified(), goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(input)))
	if err != nil {
		return model.Unclassified(), goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return model.Unclassified(), goerr.New("empty LLM response")
	}

	var raw aiResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &raw); err != nil {
		return model.Unclassified(), goerr.Wrap(err, "failed to parse LLM response",
			goerr.V("response", resp.Texts[0]))
	}

	return raw.toClassification()
}

const systemPrompt = `You are an attendance tracking assistant that analyzes messages from a team check-in channel.

Your job is to detect attendance events from messages. Team members post status updates in various formats:

Check-in (starting work):
- "Available" with or without a checkmark emoji
- "Good morning", "GM", "Online", "In"
- Any message indicating they are starting work or now available

Check-out (ending work):
- "Signing Out" with or without a wave emoji
- "EOD", "End of day", "Logging off", "Done for the day"
- "Good night", "GN", "Bye", "Leaving"
- Any message indicating they are done working

Break start (temporarily away):
- "BRB", "BRB - reason", "AFK"
- "Taking a break", "Lunch", "Stepping out"
- Any message indicating temporary absence
- Look for reasons (lunch, errand, rest, meeting, etc.)
- Look for duration hints ("30 mins", "1 hour", "back in 15")

Break end (returning from break):
- "Back", "I'm back", "Here", "Returned"
- Any message indicating return from break

Not an attendance event:
- General chat, questions, work updates
- Messages that do not indicate status changes

Be flexible with emoji usage, typos, abbreviations, and natural language
variations. Use the author's previous status as a tiebreaker for
ambiguous messages.`

func buildUserPrompt(input Input) string {
	var sb strings.Builder
	sb.WriteString("Analyze this attendance message.\n\n")
	fmt.Fprintf(&sb, "Author: %s\n", input.AuthorName)
	if !input.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "Sent at: %s\n", input.Timestamp.Format(time.RFC3339))
	}
	if input.PreviousStatus != "" {
		fmt.Fprintf(&sb, "Author's previous status: %s\n", input.PreviousStatus)
	}
	sb.WriteString("\nMessage:\n")
	sb.WriteString(input.Text)
	sb.WriteString("\n")
	return sb.String()
}

func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "AttendanceClassification",
		Description: "Attendance event detected from a chat message",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"event_type": {
				Type:        gollem.TypeString,
				Enum:        []string{"checkin", "checkout", "break_start", "break_end", "none"},
				Description: "The type of attendance event detected",
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "Confidence score from 0 to 1",
				Required:    true,
			},
			"reason": {
				Type:        gollem.TypeString,
				Description: "For breaks, the reason given (if any)",
			},
			"reason_category": {
				Type:        gollem.TypeString,
				Enum:        []string{"meal", "personal", "rest", "meeting", "emergency", "other"},
				Description: "Category of the break reason",
			},
			"expected_duration_minutes": {
				Type:        gollem.TypeInteger,
				Description: "Expected duration in minutes (if mentioned)",
			},
			"urgency": {
				Type:        gollem.TypeString,
				Enum:        []string{"normal", "urgent"},
				Description: "Whether this seems urgent",
			},
		},
	}
}

type aiResponse struct {
	EventType               string  `json:"event_type"`
	Confidence              float64 `json:"confidence"`
	Reason                  string  `json:"reason"`
	ReasonCategory          string  `json:"reason_category"`
	ExpectedDurationMinutes *int    `json:"expected_duration_minutes"`
	Urgency                 string  `json:"urgency"`
}

var eventTypeNames = map[string]types.EventKind{
	"checkin":     types.EventCheckin,
	"checkout":    types.EventCheckout,
	"break_start": types.EventBreakStart,
	"break_end":   types.EventBreakEnd,
	"none":        types.EventNone,
}

func (r *aiResponse) toClassification() (model.Classification, error) {
	kind, ok := eventTypeNames[r.EventType]
	if !ok {
		return model.Unclassified(), goerr.New("unknown event type in LLM response",
			goerr.V("event_type", r.EventType))
	}
	if kind == types.EventNone {
		return model.Unclassified(), nil
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return model.Unclassified(), goerr.New("confidence out of range",
			goerr.V("confidence", r.Confidence))
	}

	c := model.AIMatch(kind, r.Confidence)
	c.Reason = strings.TrimSpace(r.Reason)

	if cat := types.ReasonCategory(r.ReasonCategory); cat.IsValid() {
		c.ReasonCategory = cat
	} else if c.Reason != "" {
		c.ReasonCategory = CategorizeReason(c.Reason)
	}

	if r.ExpectedDurationMinutes != nil && *r.ExpectedDurationMinutes > 0 && *r.ExpectedDurationMinutes <= maxDurationMinutes {
		d := *r.ExpectedDurationMinutes
		c.ExpectedDurationMinutes = &d
	}
	if types.Urgency(r.Urgency) == types.UrgencyUrgent {
		c.Urgency = types.UrgencyUrgent
	}

	return c, nil
}
