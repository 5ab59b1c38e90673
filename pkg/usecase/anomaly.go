package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
)

// EvaluateAnomalies compares one user's live status against their
// latest pattern and the tenant's configured ceilings. It is a pure
// comparator: no state, no writes. A nil or insufficient-data pattern
// disables the pattern-derived conditions; the configured long-break
// and no-checkout ceilings still apply.
func EvaluateAnomalies(tenant *model.Tenant, status *model.UserStatus, pattern *model.UserPattern, now time.Time) []model.Anomaly {
	if status == nil {
		return nil
	}

	var anomalies []model.Anomaly
	usable := pattern != nil && !pattern.InsufficientData

	// Open break running past the threshold
	if status.Status == types.StatusOnBreak && status.LastBreakStartAt != nil {
		threshold := int(tenant.LongBreakHours * 60)
		if usable && pattern.LongBreakThresholdMinutes > 0 {
			threshold = pattern.LongBreakThresholdMinutes
		}
		observed := int(now.Sub(*status.LastBreakStartAt).Minutes())
		if observed > threshold {
			anomalies = append(anomalies, model.Anomaly{
				Kind:             types.AnomalyLongBreak,
				TenantID:         status.TenantID,
				UserID:           status.UserID,
				Since:            *status.LastBreakStartAt,
				DetectedAt:       now,
				ObservedMinutes:  observed,
				ThresholdMinutes: threshold,
			})
		}
	}

	// Session running past the no-checkout ceiling
	if (status.Status == types.StatusActive || status.Status == types.StatusOnBreak) && status.Today.CheckinAt != nil {
		threshold := int(tenant.NoCheckoutHours * 60)
		observed := int(now.Sub(*status.Today.CheckinAt).Minutes())
		if observed > threshold {
			anomalies = append(anomalies, model.Anomaly{
				Kind:             types.AnomalyNoCheckout,
				TenantID:         status.TenantID,
				UserID:           status.UserID,
				Since:            *status.Today.CheckinAt,
				DetectedAt:       now,
				ObservedMinutes:  observed,
				ThresholdMinutes: threshold,
			})
		}
	}

	// Check-in later than the user's own derived threshold
	if usable && status.Today.CheckinAt != nil {
		checkin := model.ClockTimeOf(status.Today.CheckinAt.In(tenant.Location()))
		if checkin > pattern.LateCheckinThreshold {
			anomalies = append(anomalies, model.Anomaly{
				Kind:             types.AnomalyLateCheckin,
				TenantID:         status.TenantID,
				UserID:           status.UserID,
				Since:            *status.Today.CheckinAt,
				DetectedAt:       now,
				ObservedMinutes:  int(checkin),
				ThresholdMinutes: int(pattern.LateCheckinThreshold),
			})
		}
	}

	return anomalies
}

// SweepAnomalies evaluates every user in the tenant and returns the
// currently open anomaly conditions. Conditions clear themselves: a
// closed break or a checkout simply stops matching on the next sweep.
func (uc *UseCases) SweepAnomalies(ctx context.Context, tenantID string) ([]model.Anomaly, error) {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	statuses, err := uc.repo.Status().List(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list statuses for anomaly sweep")
	}

	patterns, err := uc.repo.Pattern().ListLatest(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list patterns for anomaly sweep")
	}
	byUser := make(map[string]*model.UserPattern, len(patterns))
	for _, p := range patterns {
		byUser[p.UserID] = p
	}

	now := uc.now()
	var result []model.Anomaly
	for _, status := range statuses {
		status = uc.freshenToday(tenant, status)
		result = append(result, EvaluateAnomalies(tenant, status, byUser[status.UserID], now)...)
	}
	return result, nil
}
