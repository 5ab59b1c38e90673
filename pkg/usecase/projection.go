package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// seedLookbackDays bounds how far back the projector searches for the
// user's last event before the day window, for overnight continuity.
const seedLookbackDays = 3

// ProjectUserDay recomputes the user's status by replaying the full
// ordered event list of the day containing ref. Callers must hold the
// user's sequencing lock; use this entry point only from workers that
// acquire it themselves.
func (uc *UseCases) ProjectUserDay(ctx context.Context, tenantID, userID string, ref time.Time) error {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return err
	}

	key := userLockKey(tenantID, userID)
	uc.userLocks.Lock(key)
	defer uc.userLocks.Unlock(key)

	return uc.projectUserDay(ctx, tenant, userID, ref)
}

// projectUserDay is the lock-free core of the projection. Replay is
// deterministic: events are ordered by event time, so late arrivals and
// corrections converge to the same status as a from-scratch rebuild.
func (uc *UseCases) projectUserDay(ctx context.Context, tenant *model.Tenant, userID string, ref time.Time) error {
	dayStart, dayEnd := dayWindow(tenant, ref)

	events, err := uc.repo.Event().ListByUser(ctx, tenant.ID, userID, dayStart, dayEnd)
	if err != nil {
		return goerr.Wrap(err, "failed to list events for projection")
	}

	prior, err := uc.lastEventBefore(ctx, tenant.ID, userID, dayStart)
	if err != nil {
		return err
	}

	status := uc.replay(ctx, tenant, userID, dayStart, prior, events)
	if status == nil {
		return nil
	}

	if err := uc.repo.Status().Put(ctx, status); err != nil {
		return goerr.Wrap(err, "failed to store projected status")
	}
	return nil
}

func (uc *UseCases) lastEventBefore(ctx context.Context, tenantID, userID string, before time.Time) (*model.AttendanceEvent, error) {
	from := before.AddDate(0, 0, -seedLookbackDays)
	events, err := uc.repo.Event().ListByUser(ctx, tenantID, userID, from, before)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prior events")
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[len(events)-1], nil
}

// replay runs the state machine over the day's events. The prior event
// seeds overnight continuity: a user who checked in yesterday and never
// checked out starts the day ACTIVE. With no history at all the user is
// UNKNOWN until their first event.
func (uc *UseCases) replay(ctx context.Context, tenant *model.Tenant, userID string, dayStart time.Time, prior *model.AttendanceEvent, events []*model.AttendanceEvent) *model.UserStatus {
	if prior == nil && len(events) == 0 {
		return nil
	}

	status := &model.UserStatus{
		TenantID: tenant.ID,
		UserID:   userID,
		Status:   types.StatusUnknown,
		Since:    dayStart,
		DayStart: dayStart,
	}

	if prior != nil {
		status.Status = stateAfter(prior.Kind)
		status.Since = prior.EventTime
		status.DisplayName = prior.UserName
		seedLastSeen(status, prior)
		if status.Status == types.StatusOnBreak {
			status.BreakReason = prior.Reason
			status.ExpectedReturnAt = prior.ExpectedReturnAt
		}
	}

	var openBreak *model.AttendanceEvent
	if status.Status == types.StatusOnBreak {
		openBreak = prior
	}

	for _, ev := range events {
		seedLastSeen(status, ev)
		if ev.UserName != "" {
			status.DisplayName = ev.UserName
		}

		switch ev.Kind {
		case types.EventCheckin:
			// Valid from any state
			status.Status = types.StatusActive
			status.Since = ev.EventTime
			status.BreakReason = ""
			status.ExpectedReturnAt = nil
			openBreak = nil
			if status.Today.CheckinAt == nil {
				t := ev.EventTime
				status.Today.CheckinAt = &t
			}

		case types.EventBreakStart:
			if status.Status != types.StatusActive {
				continue
			}
			status.Status = types.StatusOnBreak
			status.Since = ev.EventTime
			status.BreakReason = ev.Reason
			status.ExpectedReturnAt = ev.ExpectedReturnAt
			openBreak = ev

		case types.EventBreakEnd:
			if status.Status != types.StatusOnBreak {
				continue
			}
			status.Status = types.StatusActive
			status.Since = ev.EventTime
			status.BreakReason = ""
			status.ExpectedReturnAt = nil
			if openBreak != nil {
				minutes := int(ev.EventTime.Sub(openBreak.EventTime).Minutes())
				if minutes < 0 {
					minutes = 0
				}
				status.Today.BreakCount++
				status.Today.TotalBreakMinutes += minutes
				uc.annotateBreakDuration(ctx, tenant.ID, openBreak.ID, minutes)
				openBreak = nil
			}

		case types.EventCheckout:
			if status.Status != types.StatusActive && status.Status != types.StatusOnBreak {
				continue
			}
			status.Status = types.StatusOffline
			status.Since = ev.EventTime
			status.BreakReason = ""
			status.ExpectedReturnAt = nil
			openBreak = nil
		}
	}

	status.UpdatedAt = uc.now().UTC()
	return status
}

// annotateBreakDuration back-annotates the measured duration onto the
// BREAK_START event. Failure here must not abort the projection; the
// next replay repairs it.
func (uc *UseCases) annotateBreakDuration(ctx context.Context, tenantID string, id model.EventID, minutes int) {
	if err := uc.repo.Event().SetActualDuration(ctx, tenantID, id, minutes); err != nil && !errors.Is(err, model.ErrNotFound) {
		logging.From(ctx).Warn("failed to annotate break duration", "event_id", id, "error", err)
	}
}

// stateAfter maps an event kind to the state a user is in once that
// event has applied.
func stateAfter(kind types.EventKind) types.Status {
	switch kind {
	case types.EventCheckin, types.EventBreakEnd:
		return types.StatusActive
	case types.EventBreakStart:
		return types.StatusOnBreak
	case types.EventCheckout:
		return types.StatusOffline
	default:
		return types.StatusUnknown
	}
}

func seedLastSeen(status *model.UserStatus, ev *model.AttendanceEvent) {
	t := ev.EventTime
	switch ev.Kind {
	case types.EventCheckin:
		status.LastCheckinAt = &t
	case types.EventCheckout:
		status.LastCheckoutAt = &t
	case types.EventBreakStart:
		status.LastBreakStartAt = &t
	}
}
