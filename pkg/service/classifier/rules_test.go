package classifier_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/service/classifier"
)

func TestMatchRulesCheckin(t *testing.T) {
	for _, text := range []string{
		"✅ Available",
		"Available",
		"available",
		"Good morning",
		"gm",
		"Online",
		"in",
		"Hello everyone!",
		"hey team",
	} {
		t.Run(text, func(t *testing.T) {
			c := classifier.MatchRules(text)
			gt.Value(t, c.Kind).Equal(types.EventCheckin)
			gt.Number(t, c.Confidence).Equal(1.0)
			gt.Value(t, c.Source).Equal(types.SourceRule)
		})
	}
}

func TestMatchRulesCheckout(t *testing.T) {
	for _, text := range []string{
		"👋 Signing Out",
		"Signing out",
		"EOD",
		"end of day",
		"logging off",
		"Good night",
		"gn",
		"bye",
		"done",
	} {
		t.Run(text, func(t *testing.T) {
			c := classifier.MatchRules(text)
			gt.Value(t, c.Kind).Equal(types.EventCheckout)
			gt.Number(t, c.Confidence).Equal(1.0)
		})
	}
}

func TestMatchRulesBreakStart(t *testing.T) {
	t.Run("bare brb", func(t *testing.T) {
		c := classifier.MatchRules("brb")
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Value(t, c.Reason).Equal("")
		gt.Value(t, c.ExpectedDurationMinutes).Nil()
	})

	t.Run("brb with reason", func(t *testing.T) {
		c := classifier.MatchRules("BRB - going to lunch")
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Value(t, c.Reason).Equal("going to lunch")
		gt.Value(t, c.ReasonCategory).Equal(types.ReasonMeal)
		gt.Value(t, c.Urgency).Equal(types.UrgencyNormal)
	})

	t.Run("brb with duration", func(t *testing.T) {
		c := classifier.MatchRules("brb: doctor appointment, back in 30 mins")
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Value(t, c.ReasonCategory).Equal(types.ReasonPersonal)
		gt.Value(t, c.ExpectedDurationMinutes).NotNil()
		gt.Number(t, *c.ExpectedDurationMinutes).Equal(30)
	})

	t.Run("urgent reason", func(t *testing.T) {
		c := classifier.MatchRules("brb - family emergency")
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Value(t, c.Urgency).Equal(types.UrgencyUrgent)
	})

	t.Run("alt patterns", func(t *testing.T) {
		for _, text := range []string{"lunch", "afk", "break", "stepping out"} {
			c := classifier.MatchRules(text)
			gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		}
	})

	t.Run("taking a break with reason", func(t *testing.T) {
		c := classifier.MatchRules("taking a break - coffee run")
		gt.Value(t, c.Kind).Equal(types.EventBreakStart)
		gt.Value(t, c.Reason).Equal("coffee run")
		gt.Value(t, c.ReasonCategory).Equal(types.ReasonMeal)
	})
}

func TestMatchRulesBreakEnd(t *testing.T) {
	for _, text := range []string{"back", "Back!", "I'm back", "im back", "here", "returned", "resuming"} {
		t.Run(text, func(t *testing.T) {
			c := classifier.MatchRules(text)
			gt.Value(t, c.Kind).Equal(types.EventBreakEnd)
		})
	}
}

func TestMatchRulesNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"has anyone seen the deploy runbook?",
		"I'll be available tomorrow",
		"the build is done",
		"going back to the earlier topic",
	} {
		t.Run(text, func(t *testing.T) {
			c := classifier.MatchRules(text)
			gt.Value(t, c.Kind).Equal(types.EventNone)
			gt.Bool(t, c.IsAttendance()).False()
		})
	}
}

func TestMatchRulesDeterministic(t *testing.T) {
	// Same input always yields the same result
	first := classifier.MatchRules("brb - lunch, 45 min")
	for i := 0; i < 10; i++ {
		c := classifier.MatchRules("brb - lunch, 45 min")
		gt.Value(t, c.Kind).Equal(first.Kind)
		gt.Value(t, c.Reason).Equal(first.Reason)
		gt.Number(t, *c.ExpectedDurationMinutes).Equal(*first.ExpectedDurationMinutes)
	}
}

func TestCategorizeReason(t *testing.T) {
	cases := map[string]types.ReasonCategory{
		"grabbing lunch":      types.ReasonMeal,
		"coffee":              types.ReasonMeal,
		"dentist appointment": types.ReasonPersonal,
		"picking up the kids": types.ReasonPersonal,
		"quick nap":           types.ReasonRest,
		"customer call":       types.ReasonMeeting,
		"standup":             types.ReasonMeeting,
		"family emergency":    types.ReasonEmergency,
		"something came up":   types.ReasonOther,
	}
	for reason, want := range cases {
		t.Run(reason, func(t *testing.T) {
			gt.Value(t, classifier.CategorizeReason(reason)).Equal(want)
		})
	}
}

func TestExtractDuration(t *testing.T) {
	t.Run("minutes", func(t *testing.T) {
		d := classifier.ExtractDuration("back in 15 mins")
		gt.Value(t, d).NotNil()
		gt.Number(t, *d).Equal(15)
	})

	t.Run("hours", func(t *testing.T) {
		d := classifier.ExtractDuration("2 hours")
		gt.Value(t, d).NotNil()
		gt.Number(t, *d).Equal(120)
	})

	t.Run("bare number after back in", func(t *testing.T) {
		d := classifier.ExtractDuration("back in 20")
		gt.Value(t, d).NotNil()
		gt.Number(t, *d).Equal(20)
	})

	t.Run("over cap", func(t *testing.T) {
		gt.Value(t, classifier.ExtractDuration("back in 999 mins")).Nil()
	})

	t.Run("no duration", func(t *testing.T) {
		gt.Value(t, classifier.ExtractDuration("errand")).Nil()
	})
}
