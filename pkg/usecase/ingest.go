package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/service/classifier"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

// Ingest classifies one inbound message and, when it finalizes as an
// attendance event, records it and re-projects the user's day. A nil
// event with nil error means the message was discarded as
// non-attendance; discards are not errors. Delivery is at-least-once:
// replaying a message returns the originally stored event without a
// second projection.
func (uc *UseCases) Ingest(ctx context.Context, msg model.ChatMessage) (*model.AttendanceEvent, error) {
	tenant, err := uc.tenants.Get(msg.TenantID)
	if err != nil {
		return nil, err
	}

	rule, ok := tenant.ChannelFor(msg.ChannelID)
	if !ok || rule.Purpose != model.ChannelPurposeAttendance {
		return nil, nil
	}
	if msg.AuthorID == "" {
		logging.From(ctx).Debug("dropping message with unresolved author",
			"tenant_id", msg.TenantID,
			"channel_id", msg.ChannelID,
			"message_id", msg.MessageID,
		)
		return nil, nil
	}

	prevStatus := types.StatusUnknown
	if current, err := uc.repo.Status().Get(ctx, msg.TenantID, msg.AuthorID); err == nil {
		prevStatus = current.Status
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to load previous status")
	}

	result := uc.resolverFor(tenant.ID).Resolve(ctx, classifier.Input{
		Text:           msg.Text,
		AuthorName:     msg.AuthorName,
		Timestamp:      msg.Timestamp,
		PreviousStatus: prevStatus,
	}, tenant.ConfidenceThreshold, rule.AIFirst)

	if !result.IsAttendance() {
		return nil, nil
	}

	ev := buildEvent(msg, result)

	key := userLockKey(msg.TenantID, msg.AuthorID)
	uc.userLocks.Lock(key)
	defer uc.userLocks.Unlock(key)

	stored, created, err := uc.repo.Event().Put(ctx, ev)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store event",
			goerr.V("key", ev.Key().String()))
	}
	if !created {
		return stored, nil
	}

	if err := uc.projectUserDay(ctx, tenant, msg.AuthorID, stored.EventTime); err != nil {
		return nil, goerr.Wrap(err, "failed to project status",
			goerr.V("user_id", msg.AuthorID))
	}

	logging.From(ctx).Info("attendance event recorded",
		"tenant_id", stored.TenantID,
		"user_id", stored.UserID,
		"kind", stored.Kind,
		"source", stored.Source,
		"confidence", stored.Confidence,
	)

	return stored, nil
}

func buildEvent(msg model.ChatMessage, c model.Classification) *model.AttendanceEvent {
	ev := &model.AttendanceEvent{
		TenantID:       msg.TenantID,
		UserID:         msg.AuthorID,
		UserName:       msg.AuthorName,
		Kind:           c.Kind,
		Confidence:     c.Confidence,
		Source:         c.Source,
		EventTime:      msg.Timestamp,
		Reason:         c.Reason,
		ReasonCategory: c.ReasonCategory,
		Urgency:        c.Urgency.Normalize(),
		Notes:          c.Notes,
		ChannelID:      msg.ChannelID,
		MessageID:      msg.MessageID,
		RawMessage:     msg.Text,
	}

	if c.Kind == types.EventBreakStart && c.ExpectedDurationMinutes != nil {
		ret := msg.Timestamp.Add(time.Duration(*c.ExpectedDurationMinutes) * time.Minute)
		ev.ExpectedReturnAt = &ret
	}

	return ev
}
