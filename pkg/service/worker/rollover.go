package worker

import (
	"context"
	"time"

	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// RolloverWorker runs the end-of-day sweeps: synthesizing auto-checkout
// events for tenants that opted in, and logging open anomaly conditions
// for the notification collaborator to pick up.
type RolloverWorker struct {
	uc       *usecase.UseCases
	tenants  *model.TenantRegistry
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRolloverWorker creates the end-of-day sweep worker
func NewRolloverWorker(uc *usecase.UseCases, tenants *model.TenantRegistry, interval time.Duration) *RolloverWorker {
	return &RolloverWorker{
		uc:       uc,
		tenants:  tenants,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine
func (w *RolloverWorker) Start(ctx context.Context) error {
	logging.Default().Info("rollover worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *RolloverWorker) Stop() {
	logging.Default().Info("rollover worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("rollover worker stopped")
}

func (w *RolloverWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-w.stopCh:
			logging.Default().Info("rollover worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("rollover worker context cancelled")
			return
		}
	}
}

func (w *RolloverWorker) sweep(ctx context.Context) {
	for _, tenant := range w.tenants.List() {
		if err := w.uc.RefreshDay(ctx, tenant.ID); err != nil {
			logging.Default().Error("day refresh sweep failed",
				"tenant_id", tenant.ID,
				"error", err.Error())
		}

		if err := w.uc.AutoCheckout(ctx, tenant.ID); err != nil {
			logging.Default().Error("auto checkout sweep failed",
				"tenant_id", tenant.ID,
				"error", err.Error())
		}

		anomalies, err := w.uc.SweepAnomalies(ctx, tenant.ID)
		if err != nil {
			logging.Default().Error("anomaly sweep failed",
				"tenant_id", tenant.ID,
				"error", err.Error())
			continue
		}
		for _, a := range anomalies {
			logging.Default().Warn("attendance anomaly detected",
				"tenant_id", a.TenantID,
				"user_id", a.UserID,
				"kind", a.Kind,
				"observed_minutes", a.ObservedMinutes,
				"threshold_minutes", a.ThresholdMinutes,
				"since", a.Since,
			)
		}
	}
}
