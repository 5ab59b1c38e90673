package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// autoCheckoutChannel is the synthetic channel ID carried by
// auto-checkout events, keeping them apart from real message traffic.
const autoCheckoutChannel = "system"

// RefreshDay repairs stored statuses whose Today rollup belongs to a
// previous day window. Users with recent events get a full replay of
// the current day; dormant users just have the rollup cleared. Without
// this, a user silent since yesterday would keep serving yesterday's
// check-in and break counts as today.
func (uc *UseCases) RefreshDay(ctx context.Context, tenantID string) error {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return err
	}

	now := uc.now()
	dayStart, _ := dayWindow(tenant, now)

	statuses, err := uc.repo.Status().List(ctx, tenantID)
	if err != nil {
		return goerr.Wrap(err, "failed to list statuses for day refresh")
	}

	for _, status := range statuses {
		if !rollupLapsed(status, dayStart) {
			continue
		}

		key := userLockKey(tenantID, status.UserID)
		uc.userLocks.Lock(key)

		if err := uc.projectUserDay(ctx, tenant, status.UserID, now); err != nil {
			uc.userLocks.Unlock(key)
			return goerr.Wrap(err, "failed to re-project lapsed day",
				goerr.V("user_id", status.UserID))
		}

		// Nothing within the replay lookback leaves the stored record
		// untouched; clear the rollup directly.
		current, err := uc.repo.Status().Get(ctx, tenantID, status.UserID)
		if err != nil {
			uc.userLocks.Unlock(key)
			return goerr.Wrap(err, "failed to reload status for day refresh",
				goerr.V("user_id", status.UserID))
		}
		if rollupLapsed(current, dayStart) {
			current.Today = model.TodayStats{}
			current.DayStart = dayStart
			if err := uc.repo.Status().Put(ctx, current); err != nil {
				uc.userLocks.Unlock(key)
				return goerr.Wrap(err, "failed to clear lapsed rollup",
					goerr.V("user_id", status.UserID))
			}
		}

		uc.userLocks.Unlock(key)

		logging.From(ctx).Info("lapsed day rollup refreshed",
			"tenant_id", tenantID,
			"user_id", status.UserID,
			"day_start", dayStart,
		)
	}

	return nil
}

// AutoCheckout synthesizes a checkout for every user still ACTIVE or
// ON_BREAK once the tenant's local auto-checkout hour has passed. The
// policy is opt-in: tenants without AutoCheckoutHour are skipped. The
// synthetic message ID embeds the local date, so re-running within the
// same day is a no-op through normal idempotence.
func (uc *UseCases) AutoCheckout(ctx context.Context, tenantID string) error {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return err
	}
	if tenant.AutoCheckoutHour == nil {
		return nil
	}

	now := uc.now()
	local := now.In(tenant.Location())
	if local.Hour() < *tenant.AutoCheckoutHour {
		return nil
	}

	dayStart, _ := dayWindow(tenant, now)
	checkoutAt := time.Date(local.Year(), local.Month(), local.Day(), *tenant.AutoCheckoutHour, 0, 0, 0, tenant.Location())
	if checkoutAt.Before(dayStart) {
		// Auto-checkout hour sits before the rollover boundary; anchor
		// it to the current day window instead.
		checkoutAt = dayStart
	}

	statuses, err := uc.repo.Status().List(ctx, tenantID)
	if err != nil {
		return goerr.Wrap(err, "failed to list statuses for auto checkout")
	}

	for _, status := range statuses {
		if status.Status != types.StatusActive && status.Status != types.StatusOnBreak {
			continue
		}

		ev := &model.AttendanceEvent{
			TenantID:   tenantID,
			UserID:     status.UserID,
			UserName:   status.DisplayName,
			Kind:       types.EventCheckout,
			Confidence: 1.0,
			Source:     types.SourceManual,
			EventTime:  checkoutAt,
			Urgency:    types.UrgencyNormal,
			Notes:      "synthesized end-of-day checkout",
			ChannelID:  autoCheckoutChannel,
			MessageID:  fmt.Sprintf("auto-checkout-%s-%s", dayStart.Format("2006-01-02"), status.UserID),
		}

		key := userLockKey(tenantID, status.UserID)
		uc.userLocks.Lock(key)

		_, created, err := uc.repo.Event().Put(ctx, ev)
		if err != nil {
			uc.userLocks.Unlock(key)
			return goerr.Wrap(err, "failed to store auto checkout",
				goerr.V("user_id", status.UserID))
		}
		if created {
			if err := uc.projectUserDay(ctx, tenant, status.UserID, checkoutAt); err != nil {
				uc.userLocks.Unlock(key)
				return goerr.Wrap(err, "failed to project auto checkout",
					goerr.V("user_id", status.UserID))
			}
			logging.From(ctx).Info("auto checkout synthesized",
				"tenant_id", tenantID,
				"user_id", status.UserID,
				"checkout_at", checkoutAt,
			)
		}

		uc.userLocks.Unlock(key)
	}

	return nil
}
