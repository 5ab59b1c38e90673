package classifier_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/service/classifier"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{`{"event_type":"none","confidence":1.0}`},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func respondWith(body string) *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{body}}, nil
				},
			}, nil
		},
	}
}

func failWith(err error) *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return nil, err
				},
			}, nil
		},
	}
}

func TestAIClassifier(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies break start with details", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{{
			Name:   "openai",
			Client: respondWith(`{"event_type":"break_start","confidence":0.85,"reason":"heading out for groceries","reason_category":"personal","expected_duration_minutes":45,"urgency":"normal"}`),
		}})

		c := ai.Classify(ctx, classifier.Input{Text: "heading out for groceries, back soonish"})
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Number(t, c.Confidence).Equal(0.85)
		gt.Value(t, c.Source).Equal(types.SourceAI)
		gt.Value(t, c.ReasonCategory).Equal(types.ReasonPersonal)
		gt.Value(t, c.ExpectedDurationMinutes).NotNil()
		gt.Number(t, *c.ExpectedDurationMinutes).Equal(45)
	})

	t.Run("none result is unclassified", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{{
			Name:   "openai",
			Client: respondWith(`{"event_type":"none","confidence":0.99}`),
		}})

		c := ai.Classify(ctx, classifier.Input{Text: "does anyone have the meeting link?"})
		gt.Bool(t, c.IsAttendance()).False()
	})

	t.Run("falls through to second provider", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{
			{Name: "claude", Client: failWith(goerr.New("provider unavailable"))},
			{Name: "gemini", Client: respondWith(`{"event_type":"checkin","confidence":0.9}`)},
		})

		c := ai.Classify(ctx, classifier.Input{Text: "morning folks, starting my day"})
		gt.Value(t, c.Kind).Equal(types.EventCheckin)
		gt.Number(t, c.Confidence).Equal(0.9)
	})

	t.Run("all providers failing yields unclassified", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{
			{Name: "claude", Client: failWith(goerr.New("provider unavailable"))},
			{Name: "openai", Client: failWith(goerr.New("provider unavailable"))},
		})

		c := ai.Classify(ctx, classifier.Input{Text: "stepping away for a bit"})
		gt.Bool(t, c.IsAttendance()).False()
	})

	t.Run("malformed response falls through", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{
			{Name: "openai", Client: respondWith("not json at all")},
			{Name: "gemini", Client: respondWith(`{"event_type":"checkout","confidence":0.8}`)},
		})

		c := ai.Classify(ctx, classifier.Input{Text: "calling it a day"})
		gt.Value(t, c.Kind).Equal(types.EventCheckout)
	})

	t.Run("out of range confidence rejected", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{{
			Name:   "openai",
			Client: respondWith(`{"event_type":"checkin","confidence":1.5}`),
		}})

		c := ai.Classify(ctx, classifier.Input{Text: "starting now"})
		gt.Bool(t, c.IsAttendance()).False()
	})

	t.Run("invalid category recomputed from reason", func(t *testing.T) {
		ai := classifier.NewAIClassifier([]classifier.Provider{{
			Name:   "openai",
			Client: respondWith(`{"event_type":"break_start","confidence":0.8,"reason":"team standup","reason_category":"bogus"}`),
		}})

		c := ai.Classify(ctx, classifier.Input{Text: "off to the standup"})
		gt.Value(t, c.ReasonCategory).Equal(types.ReasonMeeting)
	})

	t.Run("response schema marks core fields required", func(t *testing.T) {
		schema := classifier.BuildResponseSchema()
		gt.Value(t, schema.Type).Equal(gollem.TypeObject)
		gt.Bool(t, schema.Properties["event_type"].Required).True()
		gt.Bool(t, schema.Properties["confidence"].Required).True()
		gt.Bool(t, schema.Properties["reason"].Required).False()
	})

	t.Run("empty text never calls providers", func(t *testing.T) {
		called := false
		ai := classifier.NewAIClassifier([]classifier.Provider{{
			Name: "openai",
			Client: &mockLLMClient{
				newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
					called = true
					return &mockLLMSession{}, nil
				},
			},
		}})

		c := ai.Classify(ctx, classifier.Input{Text: "   "})
		gt.Bool(t, c.IsAttendance()).False()
		gt.Bool(t, called).False()
	})
}
