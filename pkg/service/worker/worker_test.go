package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/repository/memory"
	"github.com/shift-lab/argus/pkg/service/worker"
	"github.com/shift-lab/argus/pkg/usecase"
)

func newWorkerTestTenant(autoCheckoutHour *int) *model.Tenant {
	return &model.Tenant{
		ID:                  "acme",
		Timezone:            "UTC",
		ConfidenceThreshold: model.DefaultConfidenceThreshold,
		LongBreakHours:      model.DefaultLongBreakHours,
		NoCheckoutHours:     model.DefaultNoCheckoutHours,
		LateBufferMinutes:   model.DefaultLateBufferMinutes,
		BreakMultiplier:     model.DefaultBreakMultiplier,
		AutoCheckoutHour:    autoCheckoutHour,
		RetentionDays:       model.DefaultRetentionDays,
		AnalysisWindowDays:  model.DefaultAnalysisWindowDays,
		MinSampleDays:       model.DefaultMinSampleDays,
		Channels: map[string]model.ChannelRule{
			"C0001": {Purpose: model.ChannelPurposeAttendance},
		},
	}
}

func ingest(t *testing.T, uc *usecase.UseCases, messageID, text string, at time.Time) {
	t.Helper()

	_, err := uc.Ingest(context.Background(), model.ChatMessage{
		TenantID:       "acme",
		MessageID:      messageID,
		ChannelID:      "C0001",
		ChannelPurpose: model.ChannelPurposeAttendance,
		AuthorID:       "U1001",
		Text:           text,
		Timestamp:      at,
	})
	gt.NoError(t, err).Required()
}

func TestAnalyzerWorker(t *testing.T) {
	tenants := model.NewTenantRegistry()
	tenants.Register(newWorkerTestTenant(nil))

	repo := memory.New()
	uc := usecase.New(repo, tenants)

	ingest(t, uc, "m1", "Available", time.Now().UTC().Add(-26*time.Hour))

	w := worker.NewAnalyzerWorker(uc, tenants, time.Hour)
	gt.NoError(t, w.Start(context.Background())).Required()

	// The worker runs one analysis pass immediately on start
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := repo.Pattern().Latest(context.Background(), "acme", "U1001"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pattern was not computed before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Stop()

	pattern, err := repo.Pattern().Latest(context.Background(), "acme", "U1001")
	gt.NoError(t, err).Required()
	gt.Value(t, pattern.TenantID).Equal("acme")
	gt.Bool(t, pattern.InsufficientData).True()
	gt.Value(t, pattern.SampleDays).Equal(1)
}

func TestRolloverWorker(t *testing.T) {
	hour := 22
	tenants := model.NewTenantRegistry()
	tenants.Register(newWorkerTestTenant(&hour))

	repo := memory.New()
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)
	uc := usecase.New(repo, tenants, usecase.WithClock(func() time.Time { return now }))

	ingest(t, uc, "m1", "Available", now.Add(-14*time.Hour))

	w := worker.NewRolloverWorker(uc, tenants, 10*time.Millisecond)
	gt.NoError(t, w.Start(context.Background())).Required()

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := repo.Status().Get(context.Background(), "acme", "U1001")
		gt.NoError(t, err).Required()
		if status.Status == types.StatusOffline {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto checkout was not applied before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Stop()

	status, err := repo.Status().Get(context.Background(), "acme", "U1001")
	gt.NoError(t, err).Required()
	gt.Value(t, status.Status).Equal(types.StatusOffline)
}

func TestWorkerStopIsIdempotentAcrossContextCancel(t *testing.T) {
	tenants := model.NewTenantRegistry()
	tenants.Register(newWorkerTestTenant(nil))

	repo := memory.New()
	uc := usecase.New(repo, tenants)

	ctx, cancel := context.WithCancel(context.Background())
	w := worker.NewRolloverWorker(uc, tenants, time.Hour)
	gt.NoError(t, w.Start(ctx)).Required()

	cancel()

	// Stop must return even after the context already ended the loop
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
