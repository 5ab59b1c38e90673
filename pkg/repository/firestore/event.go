package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type eventDocument struct {
	ID         string `firestore:"id"`
	TenantID   string `firestore:"tenant_id"`
	UserID     string `firestore:"user_id"`
	UserName   string `firestore:"user_name"`
	Kind       string `firestore:"kind"`
	Confidence float64 `firestore:"confidence"`
	Source     string `firestore:"source"`

	EventTime        time.Time  `firestore:"event_time"`
	ExpectedReturnAt *time.Time `firestore:"expected_return_at"`

	ActualDurationMinutes *int `firestore:"actual_duration_minutes"`

	Reason         string `firestore:"reason"`
	ReasonCategory string `firestore:"reason_category"`
	Urgency        string `firestore:"urgency"`
	Notes          string `firestore:"notes"`

	ChannelID  string `firestore:"channel_id"`
	MessageID  string `firestore:"message_id"`
	RawMessage string `firestore:"raw_message"`

	SupersededBy string    `firestore:"superseded_by"`
	CreatedAt    time.Time `firestore:"created_at"`
}

// eventKeyDocument maps an idempotence key to the stored event ID
type eventKeyDocument struct {
	EventID string `firestore:"event_id"`
}

func toEventDocument(ev *model.AttendanceEvent) *eventDocument {
	return &eventDocument{
		ID:                    string(ev.ID),
		TenantID:              ev.TenantID,
		UserID:                ev.UserID,
		UserName:              ev.UserName,
		Kind:                  ev.Kind.String(),
		Confidence:            ev.Confidence,
		Source:                ev.Source.String(),
		EventTime:             ev.EventTime,
		ExpectedReturnAt:      ev.ExpectedReturnAt,
		ActualDurationMinutes: ev.ActualDurationMinutes,
		Reason:                ev.Reason,
		ReasonCategory:        ev.ReasonCategory.String(),
		Urgency:               ev.Urgency.String(),
		Notes:                 ev.Notes,
		ChannelID:             ev.ChannelID,
		MessageID:             ev.MessageID,
		RawMessage:            ev.RawMessage,
		SupersededBy:          string(ev.SupersededBy),
		CreatedAt:             ev.CreatedAt,
	}
}

func (d *eventDocument) toModel() *model.AttendanceEvent {
	return &model.AttendanceEvent{
		ID:                    model.EventID(d.ID),
		TenantID:              d.TenantID,
		UserID:                d.UserID,
		UserName:              d.UserName,
		Kind:                  types.EventKind(d.Kind),
		Confidence:            d.Confidence,
		Source:                types.ClassificationSource(d.Source),
		EventTime:             d.EventTime,
		ExpectedReturnAt:      d.ExpectedReturnAt,
		ActualDurationMinutes: d.ActualDurationMinutes,
		Reason:                d.Reason,
		ReasonCategory:        types.ReasonCategory(d.ReasonCategory),
		Urgency:               types.Urgency(d.Urgency),
		Notes:                 d.Notes,
		ChannelID:             d.ChannelID,
		MessageID:             d.MessageID,
		RawMessage:            d.RawMessage,
		SupersededBy:          model.EventID(d.SupersededBy),
		CreatedAt:             d.CreatedAt,
	}
}

type eventRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newEventRepository(client *firestore.Client) *eventRepository {
	return &eventRepository{client: client}
}

func (r *eventRepository) eventsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_attendance_events"
	}
	return "attendance_events"
}

func (r *eventRepository) keysCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_attendance_event_keys"
	}
	return "attendance_event_keys"
}

// keyDocID flattens the idempotence key into a document ID
func keyDocID(key model.EventKey) string {
	return key.TenantID + "_" + key.ChannelID + "_" + key.MessageID
}

func (r *eventRepository) Put(ctx context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, bool, error) {
	created := ev.Clone()
	if created.ID == "" {
		created.ID = model.NewEventID()
	}
	created.CreatedAt = time.Now().UTC()

	keyRef := r.client.Collection(r.keysCollection()).Doc(keyDocID(ev.Key()))

	var result *model.AttendanceEvent
	inserted := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		keyDoc, err := tx.Get(keyRef)
		if err == nil {
			// Duplicate message: return the stored event unchanged
			var key eventKeyDocument
			if err := keyDoc.DataTo(&key); err != nil {
				return goerr.Wrap(err, "failed to decode event key")
			}
			evRef := r.client.Collection(r.eventsCollection()).Doc(key.EventID)
			evDoc, err := tx.Get(evRef)
			if err != nil {
				return goerr.Wrap(err, "failed to get existing event", goerr.V("event_id", key.EventID))
			}
			var doc eventDocument
			if err := evDoc.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to decode event")
			}
			result = doc.toModel()
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to check event key")
		}

		evRef := r.client.Collection(r.eventsCollection()).Doc(string(created.ID))
		if err := tx.Set(evRef, toEventDocument(created)); err != nil {
			return goerr.Wrap(err, "failed to create event")
		}
		if err := tx.Set(keyRef, &eventKeyDocument{EventID: string(created.ID)}); err != nil {
			return goerr.Wrap(err, "failed to create event key")
		}
		result = created
		inserted = true
		return nil
	})
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to put event")
	}

	return result, inserted, nil
}

func (r *eventRepository) Get(ctx context.Context, tenantID string, id model.EventID) (*model.AttendanceEvent, error) {
	docRef := r.client.Collection(r.eventsCollection()).Doc(string(id))
	snap, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "event not found", goerr.V("event_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get event", goerr.V("event_id", id))
	}

	var doc eventDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode event")
	}
	if doc.TenantID != tenantID {
		return nil, goerr.Wrap(model.ErrNotFound, "event not found", goerr.V("event_id", id))
	}
	return doc.toModel(), nil
}

func (r *eventRepository) Supersede(ctx context.Context, tenantID string, originalID model.EventID, correction *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	created := correction.Clone()
	if created.ID == "" {
		created.ID = model.NewEventID()
	}
	created.CreatedAt = time.Now().UTC()

	originalRef := r.client.Collection(r.eventsCollection()).Doc(string(originalID))
	correctionRef := r.client.Collection(r.eventsCollection()).Doc(string(created.ID))
	keyRef := r.client.Collection(r.keysCollection()).Doc(keyDocID(created.Key()))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(originalRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "event not found", goerr.V("event_id", originalID))
			}
			return goerr.Wrap(err, "failed to get original event")
		}
		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to decode original event")
		}
		if doc.TenantID != tenantID {
			return goerr.Wrap(model.ErrNotFound, "event not found", goerr.V("event_id", originalID))
		}

		if err := tx.Set(correctionRef, toEventDocument(created)); err != nil {
			return goerr.Wrap(err, "failed to create correction event")
		}
		if err := tx.Set(keyRef, &eventKeyDocument{EventID: string(created.ID)}); err != nil {
			return goerr.Wrap(err, "failed to create correction key")
		}
		return tx.Update(originalRef, []firestore.Update{
			{Path: "superseded_by", Value: string(created.ID)},
		})
	})
	if err != nil {
		return nil, err
	}

	return created.Clone(), nil
}

func (r *eventRepository) SetActualDuration(ctx context.Context, tenantID string, id model.EventID, minutes int) error {
	docRef := r.client.Collection(r.eventsCollection()).Doc(string(id))
	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "actual_duration_minutes", Value: minutes},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "event not found", goerr.V("event_id", id))
		}
		return goerr.Wrap(err, "failed to set actual duration", goerr.V("event_id", id))
	}
	return nil
}

func (r *eventRepository) ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*model.AttendanceEvent, error) {
	query := r.client.Collection(r.eventsCollection()).
		Where("tenant_id", "==", tenantID).
		Where("user_id", "==", userID).
		Where("event_time", ">=", from).
		Where("event_time", "<", to).
		OrderBy("event_time", firestore.Asc)

	return r.collect(ctx, query)
}

func (r *eventRepository) ListByKind(ctx context.Context, tenantID string, kind types.EventKind, from, to time.Time) ([]*model.AttendanceEvent, error) {
	query := r.client.Collection(r.eventsCollection()).
		Where("tenant_id", "==", tenantID).
		Where("kind", "==", kind.String()).
		Where("event_time", ">=", from).
		Where("event_time", "<", to).
		OrderBy("event_time", firestore.Asc)

	return r.collect(ctx, query)
}

func (r *eventRepository) ListUsers(ctx context.Context, tenantID string, from, to time.Time) ([]string, error) {
	query := r.client.Collection(r.eventsCollection()).
		Where("tenant_id", "==", tenantID).
		Where("event_time", ">=", from).
		Where("event_time", "<", to)

	events, err := r.collect(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, ev := range events {
		if ev.UserID != "" {
			seen[ev.UserID] = true
		}
	}

	result := make([]string, 0, len(seen))
	for userID := range seen {
		result = append(result, userID)
	}
	sort.Strings(result)
	return result, nil
}

func (r *eventRepository) PruneBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	query := r.client.Collection(r.eventsCollection()).
		Where("tenant_id", "==", tenantID).
		Where("event_time", "<", cutoff)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var pruned int
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return pruned, goerr.Wrap(err, "failed to iterate events for pruning")
		}

		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return pruned, goerr.Wrap(err, "failed to decode event for pruning")
		}

		keyRef := r.client.Collection(r.keysCollection()).Doc(keyDocID(doc.toModel().Key()))
		if _, err := keyRef.Delete(ctx); err != nil {
			return pruned, goerr.Wrap(err, "failed to delete event key")
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return pruned, goerr.Wrap(err, "failed to delete event")
		}
		pruned++
	}
	return pruned, nil
}

// collect drains a query, dropping superseded events
func (r *eventRepository) collect(ctx context.Context, query firestore.Query) ([]*model.AttendanceEvent, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.AttendanceEvent
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate events")
		}

		var doc eventDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode event")
		}
		if doc.SupersededBy != "" {
			continue
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
