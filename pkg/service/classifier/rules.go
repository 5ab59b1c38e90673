package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
)

// maxDurationMinutes caps the expected break duration at 8 hours.
// Anything larger is treated as noise and dropped.
const maxDurationMinutes = 480

var checkinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[✅☑️✓]?\s*available\s*$`),
	regexp.MustCompile(`(?i)^(good\s*morning|gm|online|in)\s*[!.]?\s*$`),
	regexp.MustCompile(`(?i)^(hello|hi|hey)\s*(everyone|team|all)?[!.]?\s*$`),
}

var checkoutPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[👋🖐️✋🌙]?\s*signing\s*out\s*$`),
	regexp.MustCompile(`(?i)^(logging\s*off|log\s*off|out|eod|end\s*of\s*day)\s*[!.]?\s*$`),
	regexp.MustCompile(`(?i)^(good\s*night|gn|bye|leaving|done)\s*[!.]?\s*$`),
}

// breakStartPattern captures an optional free-text reason after "brb"
var breakStartPattern = regexp.MustCompile(`(?i)^brb(?:\s*[-–—:]\s*(?P<reason>.+))?\s*$`)

var breakStartAltPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(break|afk|lunch|stepping\s*out)\s*$`),
	regexp.MustCompile(`(?i)^(taking\s*(?:a\s*)?break)\s*[-–—:]?\s*(?P<reason>.*)$`),
}

var breakEndPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^back\s*[!.]?\s*$`),
	regexp.MustCompile(`(?i)^(i'?m\s*back|here|returned|resuming)\s*[!.]?\s*$`),
}

var reasonKeywords = []struct {
	category types.ReasonCategory
	words    []string
}{
	{types.ReasonMeal, []string{"lunch", "dinner", "breakfast", "eat", "food", "meal", "snack", "coffee"}},
	{types.ReasonPersonal, []string{"errand", "appointment", "doctor", "dentist", "pickup", "drop", "bank", "store", "daughter", "son", "kid", "child", "family"}},
	{types.ReasonRest, []string{"rest", "nap", "tired", "break", "stretch", "walk"}},
	{types.ReasonMeeting, []string{"meeting", "call", "standup", "sync", "interview"}},
	{types.ReasonEmergency, []string{"emergency", "urgent", "asap", "important"}},
}

var emergencyKeywords = []string{"emergency", "urgent", "asap", "important"}

var minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:min(?:ute)?s?|m)\b`)
var hoursPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?)\b`)
var bareNumberPattern = regexp.MustCompile(`(?i)(?:in|back\s*in)\s*(\d+)`)

// MatchRules classifies a message through the ordered pattern set. The
// order is fixed: check-in, check-out, break start, break end. A match
// always carries confidence 1.0; patterns either match or they do not.
// Returns the unclassified result when nothing matches.
func MatchRules(text string) model.Classification {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Unclassified()
	}

	for _, p := range checkinPatterns {
		if p.MatchString(text) {
			return model.RuleMatch(types.EventCheckin)
		}
	}

	for _, p := range checkoutPatterns {
		if p.MatchString(text) {
			return model.RuleMatch(types.EventCheckout)
		}
	}

	if m := breakStartPattern.FindStringSubmatch(text); m != nil {
		return buildBreakStart(reasonGroup(breakStartPattern, m))
	}
	for _, p := range breakStartAltPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return buildBreakStart(reasonGroup(p, m))
		}
	}

	for _, p := range breakEndPatterns {
		if p.MatchString(text) {
			return model.RuleMatch(types.EventBreakEnd)
		}
	}

	return model.Unclassified()
}

func reasonGroup(p *regexp.Regexp, match []string) string {
	for i, name := range p.SubexpNames() {
		if name == "reason" && i < len(match) {
			return strings.TrimSpace(match[i])
		}
	}
	return ""
}

func buildBreakStart(reason string) model.Classification {
	c := model.RuleMatch(types.EventBreakStart)
	if reason == "" {
		return c
	}

	c.Reason = reason
	c.ReasonCategory = CategorizeReason(reason)
	c.ExpectedDurationMinutes = ExtractDuration(reason)

	lower := strings.ToLower(reason)
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			c.Urgency = types.UrgencyUrgent
			break
		}
	}
	return c
}

// CategorizeReason maps a free-text break reason onto a category by
// keyword, first match in category order wins.
func CategorizeReason(reason string) types.ReasonCategory {
	lower := strings.ToLower(reason)
	for _, rc := range reasonKeywords {
		for _, kw := range rc.words {
			if strings.Contains(lower, kw) {
				return rc.category
			}
		}
	}
	return types.ReasonOther
}

// ExtractDuration pulls an expected duration in minutes out of free text.
// Explicit units win over bare numbers; values above the cap are ignored.
func ExtractDuration(text string) *int {
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v <= maxDurationMinutes {
			return &v
		}
	}
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			minutes := v * 60
			if minutes <= maxDurationMinutes {
				return &minutes
			}
		}
	}
	if m := bareNumberPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v <= maxDurationMinutes {
			return &v
		}
	}
	return nil
}
