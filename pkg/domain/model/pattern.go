package model

import (
	"fmt"
	"time"

	"github.com/shift-lab/argus/pkg/domain/types"
)

// ClockTime is a time of day expressed as minutes since midnight,
// independent of any particular date.
type ClockTime int

// NewClockTime builds a ClockTime from hour and minute
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockTimeOf extracts the time of day from a timestamp
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// Hour returns the hour component
func (c ClockTime) Hour() int {
	return int(c) / 60
}

// Minute returns the minute component
func (c ClockTime) Minute() int {
	return int(c) % 60
}

// Add returns the clock time shifted by the given number of minutes,
// wrapping around midnight.
func (c ClockTime) Add(minutes int) ClockTime {
	v := (int(c) + minutes) % (24 * 60)
	if v < 0 {
		v += 24 * 60
	}
	return ClockTime(v)
}

// AddClamped returns the clock time shifted forward by the given
// number of minutes, saturating at 23:59 instead of wrapping. Derived
// thresholds use this so a late-night average never produces an
// early-morning cutoff.
func (c ClockTime) AddClamped(minutes int) ClockTime {
	v := int(c) + minutes
	if max := 24*60 - 1; v > max {
		v = max
	}
	return ClockTime(v)
}

// String formats the clock time as HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// DayStats holds per-day-of-week averages within a pattern period
type DayStats struct {
	Days         int
	AvgCheckin   ClockTime
	AvgCheckout  ClockTime
	AvgWorkHours float64
	AvgBreaks    float64
}

// WeeklyBreakdown holds one DayStats per day of week. Fixed fields keep
// access compile-time checked.
type WeeklyBreakdown struct {
	Monday    DayStats
	Tuesday   DayStats
	Wednesday DayStats
	Thursday  DayStats
	Friday    DayStats
	Saturday  DayStats
	Sunday    DayStats
}

// Day returns a pointer to the stats of the given weekday
func (w *WeeklyBreakdown) Day(d time.Weekday) *DayStats {
	switch d {
	case time.Monday:
		return &w.Monday
	case time.Tuesday:
		return &w.Tuesday
	case time.Wednesday:
		return &w.Wednesday
	case time.Thursday:
		return &w.Thursday
	case time.Friday:
		return &w.Friday
	case time.Saturday:
		return &w.Saturday
	default:
		return &w.Sunday
	}
}

// ReasonCount counts occurrences of a break reason category
type ReasonCount struct {
	Category types.ReasonCategory
	Count    int
}

// UserPattern is the derived historical behavior of a user over a
// trailing window, replaced wholesale on each analyzer run.
type UserPattern struct {
	TenantID string
	UserID   string

	PeriodStart time.Time
	PeriodEnd   time.Time

	// SampleDays is the number of days in the period with at least one
	// check-in. Below the tenant's minimum, InsufficientData is set and
	// the thresholds carry no meaning.
	SampleDays       int
	InsufficientData bool

	AvgCheckin      ClockTime
	AvgCheckout     ClockTime
	AvgWorkHours    float64
	AvgBreaksPerDay float64
	AvgBreakMinutes float64

	Weekly             WeeklyBreakdown
	CommonBreakReasons []ReasonCount

	// Derived anomaly thresholds
	LateCheckinThreshold      ClockTime
	LongBreakThresholdMinutes int

	ComputedAt time.Time
}

// Clone returns a deep copy of the pattern
func (p *UserPattern) Clone() *UserPattern {
	copied := *p
	if p.CommonBreakReasons != nil {
		copied.CommonBreakReasons = make([]ReasonCount, len(p.CommonBreakReasons))
		copy(copied.CommonBreakReasons, p.CommonBreakReasons)
	}
	return &copied
}
