package model

import (
	"time"

	"github.com/shift-lab/argus/pkg/domain/types"
)

// TodayStats is the rolled-up summary of a user's current day. It resets
// at the tenant's day boundary.
type TodayStats struct {
	CheckinAt         *time.Time
	BreakCount        int
	TotalBreakMinutes int
}

// UserStatus is the live derived work state of a user. It is owned
// exclusively by the status projector: recomputed from the event stream,
// never edited directly.
type UserStatus struct {
	TenantID    string
	UserID      string
	DisplayName string

	Status types.Status
	// Since is when the current status was entered
	Since time.Time

	// DayStart is the start of the tenant-local day window the Today
	// rollup was computed for. A rollup whose DayStart precedes the
	// current window has lapsed and must not be served as today.
	DayStart time.Time

	LastCheckinAt    *time.Time
	LastCheckoutAt   *time.Time
	LastBreakStartAt *time.Time

	// Open break context, cleared when the break closes
	BreakReason      string
	ExpectedReturnAt *time.Time

	Today TodayStats

	UpdatedAt time.Time
}

// Clone returns a deep copy of the status record
func (s *UserStatus) Clone() *UserStatus {
	copied := *s
	copied.LastCheckinAt = cloneTime(s.LastCheckinAt)
	copied.LastCheckoutAt = cloneTime(s.LastCheckoutAt)
	copied.LastBreakStartAt = cloneTime(s.LastBreakStartAt)
	copied.ExpectedReturnAt = cloneTime(s.ExpectedReturnAt)
	copied.Today.CheckinAt = cloneTime(s.Today.CheckinAt)
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// TeamStatus aggregates the live statuses of a tenant's members
type TeamStatus struct {
	TenantID string
	Members  []*UserStatus
	Counts   map[types.Status]int
}

// NewTeamStatus builds a TeamStatus from member records
func NewTeamStatus(tenantID string, members []*UserStatus) *TeamStatus {
	counts := make(map[types.Status]int)
	for _, m := range members {
		counts[m.Status.Normalize()]++
	}
	return &TeamStatus{
		TenantID: tenantID,
		Members:  members,
		Counts:   counts,
	}
}
