package worker

import (
	"context"
	"time"

	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// AnalyzerWorker recomputes every tenant's attendance patterns on a
// fixed cadence. It runs independently of the real-time ingest path:
// analysis reads whatever snapshot the store returns and never holds
// the per-user projection locks.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type AnalyzerWorker struct {
	uc       *usecase.UseCases
	tenants  *model.TenantRegistry
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewAnalyzerWorker creates a worker driving pattern analysis
func NewAnalyzerWorker(uc *usecase.UseCases, tenants *model.TenantRegistry, interval time.Duration) *AnalyzerWorker {
	return &AnalyzerWorker{
		uc:       uc,
		tenants:  tenants,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the analysis loop in a background goroutine
func (w *AnalyzerWorker) Start(ctx context.Context) error {
	logging.Default().Info("pattern analyzer worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *AnalyzerWorker) Stop() {
	logging.Default().Info("pattern analyzer worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("pattern analyzer worker stopped")
}

func (w *AnalyzerWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.analyzeAll(ctx); err != nil {
		logging.Default().Error("initial pattern analysis failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.analyzeAll(ctx); err != nil {
				logging.Default().Error("pattern analysis failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("pattern analyzer worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("pattern analyzer worker context cancelled")
			return
		}
	}
}

func (w *AnalyzerWorker) analyzeAll(ctx context.Context) error {
	startTime := time.Now()

	for _, tenant := range w.tenants.List() {
		if err := w.uc.AnalyzePatterns(ctx, tenant.ID); err != nil {
			// Continue with the remaining tenants; one tenant's failure
			// must not starve the others.
			logging.Default().Error("pattern analysis failed for tenant",
				"tenant_id", tenant.ID,
				"error", err.Error())
		}
	}

	logging.Default().Info("pattern analysis cycle completed",
		"tenants", len(w.tenants.List()),
		"duration", time.Since(startTime).String())

	return nil
}
