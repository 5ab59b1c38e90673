package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
)

// GetUserStatus returns the live status of one user
func (uc *UseCases) GetUserStatus(ctx context.Context, tenantID, userID string) (*model.UserStatus, error) {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	status, err := uc.repo.Status().Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return uc.freshenToday(tenant, status), nil
}

// GetTeamStatus returns every member's live status with per-status counts
func (uc *UseCases) GetTeamStatus(ctx context.Context, tenantID string) (*model.TeamStatus, error) {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	statuses, err := uc.repo.Status().List(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list statuses")
	}
	for i, status := range statuses {
		statuses[i] = uc.freshenToday(tenant, status)
	}
	return model.NewTeamStatus(tenantID, statuses), nil
}

// rollupLapsed reports whether the status's Today rollup was computed
// for a day window before the given one. Records written before the
// day-start marker existed fall back to the rollup's own check-in time.
func rollupLapsed(status *model.UserStatus, dayStart time.Time) bool {
	if !status.DayStart.IsZero() {
		return status.DayStart.Before(dayStart)
	}
	return status.Today.CheckinAt != nil && status.Today.CheckinAt.Before(dayStart)
}

// freshenToday zeroes a Today rollup that belongs to a previous day
// window. Read-side only: the stored record is repaired by RefreshDay.
func (uc *UseCases) freshenToday(tenant *model.Tenant, status *model.UserStatus) *model.UserStatus {
	if status == nil {
		return nil
	}
	dayStart, _ := dayWindow(tenant, uc.now())
	if !rollupLapsed(status, dayStart) {
		return status
	}
	status.Today = model.TodayStats{}
	status.DayStart = dayStart
	return status
}

// GetHistory returns a user's events within [from, to), ordered by
// event time, excluding superseded events.
func (uc *UseCases) GetHistory(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*model.AttendanceEvent, error) {
	if !to.After(from) {
		return nil, goerr.New("invalid time range", goerr.V("from", from), goerr.V("to", to))
	}
	return uc.repo.Event().ListByUser(ctx, tenantID, userID, from, to)
}

// PatternReport combines a user's latest pattern with the anomaly
// occurrences found in the requested window, plus any currently open
// conditions.
type PatternReport struct {
	Pattern     *model.UserPattern
	Occurrences []model.Anomaly
	Open        []model.Anomaly
}

// GetPatternReport builds the pattern report for one user. A user with
// no computed pattern yet gets a nil Pattern and no occurrences; that
// is not an error.
func (uc *UseCases) GetPatternReport(ctx context.Context, tenantID, userID string, from, to time.Time) (*PatternReport, error) {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	report := &PatternReport{}

	pattern, err := uc.repo.Pattern().Latest(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return report, nil
		}
		return nil, goerr.Wrap(err, "failed to load pattern")
	}
	report.Pattern = pattern

	if pattern.InsufficientData {
		return report, nil
	}

	occurrences, err := uc.pastAnomalies(ctx, tenant, userID, pattern, from, to)
	if err != nil {
		return nil, err
	}
	report.Occurrences = occurrences

	status, err := uc.repo.Status().Get(ctx, tenantID, userID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to load status")
	}
	report.Open = EvaluateAnomalies(tenant, uc.freshenToday(tenant, status), pattern, uc.now())

	return report, nil
}

// pastAnomalies scans stored events for threshold violations that
// already closed: breaks whose measured duration exceeded the long
// break threshold, and check-ins past the late threshold.
func (uc *UseCases) pastAnomalies(ctx context.Context, tenant *model.Tenant, userID string, pattern *model.UserPattern, from, to time.Time) ([]model.Anomaly, error) {
	events, err := uc.repo.Event().ListByUser(ctx, tenant.ID, userID, from, to)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list events for anomaly report")
	}

	loc := tenant.Location()
	var result []model.Anomaly
	seenCheckinDays := make(map[string]bool)

	for _, ev := range events {
		switch ev.Kind {
		case types.EventBreakStart:
			if ev.ActualDurationMinutes == nil {
				continue
			}
			if *ev.ActualDurationMinutes > pattern.LongBreakThresholdMinutes {
				result = append(result, model.Anomaly{
					Kind:             types.AnomalyLongBreak,
					TenantID:         tenant.ID,
					UserID:           userID,
					Since:            ev.EventTime,
					DetectedAt:       ev.EventTime.Add(time.Duration(*ev.ActualDurationMinutes) * time.Minute),
					ObservedMinutes:  *ev.ActualDurationMinutes,
					ThresholdMinutes: pattern.LongBreakThresholdMinutes,
				})
			}

		case types.EventCheckin:
			dayStart, _ := dayWindow(tenant, ev.EventTime)
			day := dayStart.Format("2006-01-02")
			if seenCheckinDays[day] {
				continue
			}
			seenCheckinDays[day] = true

			checkin := model.ClockTimeOf(ev.EventTime.In(loc))
			if checkin > pattern.LateCheckinThreshold {
				result = append(result, model.Anomaly{
					Kind:             types.AnomalyLateCheckin,
					TenantID:         tenant.ID,
					UserID:           userID,
					Since:            ev.EventTime,
					DetectedAt:       ev.EventTime,
					ObservedMinutes:  int(checkin),
					ThresholdMinutes: int(pattern.LateCheckinThreshold),
				})
			}
		}
	}

	return result, nil
}
