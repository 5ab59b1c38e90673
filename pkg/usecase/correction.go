package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/service/classifier"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// ErrEventNotFound is returned when a correction names an unknown event
var ErrEventNotFound = goerr.New("event not found")

// ErrAlreadySuperseded is returned when correcting an event that has
// already been replaced by an earlier correction.
var ErrAlreadySuperseded = goerr.New("event already superseded")

// Correction is an administrator-supplied override of a finalized event
type Correction struct {
	EventID model.EventID
	Kind    types.EventKind
	Reason  string
}

// Correct supersedes the original event with a manual one and replays
// the affected user's day. It returns the superseding event and the
// recomputed status. The original event is kept for audit but excluded
// from all further projection.
func (uc *UseCases) Correct(ctx context.Context, tenantID string, input Correction) (*model.AttendanceEvent, *model.UserStatus, error) {
	if !input.Kind.IsValid() {
		return nil, nil, goerr.New("invalid corrected kind", goerr.V("kind", input.Kind))
	}

	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return nil, nil, err
	}

	original, err := uc.repo.Event().Get(ctx, tenantID, input.EventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrEventNotFound, "cannot correct unknown event",
				goerr.V("event_id", input.EventID))
		}
		return nil, nil, goerr.Wrap(err, "failed to load original event")
	}
	if original.Superseded() {
		return nil, nil, goerr.Wrap(ErrAlreadySuperseded, "correct the superseding event instead",
			goerr.V("event_id", input.EventID),
			goerr.V("superseded_by", original.SupersededBy))
	}

	correction := buildCorrection(original, input)

	key := userLockKey(tenantID, original.UserID)
	uc.userLocks.Lock(key)
	defer uc.userLocks.Unlock(key)

	stored, err := uc.repo.Event().Supersede(ctx, tenantID, original.ID, correction)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to supersede event",
			goerr.V("event_id", original.ID))
	}

	if err := uc.projectUserDay(ctx, tenant, original.UserID, original.EventTime); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to re-project after correction",
			goerr.V("user_id", original.UserID))
	}

	status, err := uc.repo.Status().Get(ctx, tenantID, original.UserID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, nil, goerr.Wrap(err, "failed to load recomputed status")
	}

	logging.From(ctx).Info("event corrected",
		"tenant_id", tenantID,
		"original_id", original.ID,
		"correction_id", stored.ID,
		"kind", stored.Kind,
	)

	return stored, status, nil
}

// buildCorrection keeps the original's identity fields (user, channel,
// event time) and replaces classification. The surrogate message ID
// gives the correction its own idempotence key without colliding with
// the source message.
func buildCorrection(original *model.AttendanceEvent, input Correction) *model.AttendanceEvent {
	ev := original.Clone()
	ev.ID = ""
	ev.Kind = input.Kind
	ev.Confidence = 1.0
	ev.Source = types.SourceManual
	ev.SupersededBy = ""
	ev.ActualDurationMinutes = nil
	ev.MessageID = fmt.Sprintf("correction-%s-%s", original.MessageID, uuid.NewString())
	ev.Notes = fmt.Sprintf("manual correction of %s", original.ID)

	if input.Reason != "" {
		ev.Reason = input.Reason
		ev.ReasonCategory = classifier.CategorizeReason(input.Reason)
	}
	if input.Kind != types.EventBreakStart {
		ev.ExpectedReturnAt = nil
	}

	return ev
}
