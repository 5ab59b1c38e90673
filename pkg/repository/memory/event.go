package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
)

type eventRepository struct {
	mu     sync.RWMutex
	events map[string]map[model.EventID]*model.AttendanceEvent
	byKey  map[string]model.EventID
}

func newEventRepository() *eventRepository {
	return &eventRepository{
		events: make(map[string]map[model.EventID]*model.AttendanceEvent),
		byKey:  make(map[string]model.EventID),
	}
}

func (r *eventRepository) bucket(tenantID string) map[model.EventID]*model.AttendanceEvent {
	if _, exists := r.events[tenantID]; !exists {
		r.events[tenantID] = make(map[model.EventID]*model.AttendanceEvent)
	}
	return r.events[tenantID]
}

func (r *eventRepository) Put(ctx context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ev.Key().String()
	if existingID, exists := r.byKey[key]; exists {
		existing := r.events[ev.TenantID][existingID]
		return existing.Clone(), false, nil
	}

	created := ev.Clone()
	if created.ID == "" {
		created.ID = model.NewEventID()
	}
	created.CreatedAt = time.Now().UTC()

	r.bucket(ev.TenantID)[created.ID] = created
	r.byKey[key] = created.ID
	return created.Clone(), true, nil
}

func (r *eventRepository) Get(ctx context.Context, tenantID string, id model.EventID) (*model.AttendanceEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, exists := r.events[tenantID][id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "event not found", goerr.V("event_id", id))
	}
	return ev.Clone(), nil
}

func (r *eventRepository) Supersede(ctx context.Context, tenantID string, originalID model.EventID, correction *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	original, exists := r.events[tenantID][originalID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "event not found", goerr.V("event_id", originalID))
	}

	created := correction.Clone()
	if created.ID == "" {
		created.ID = model.NewEventID()
	}
	created.CreatedAt = time.Now().UTC()

	original.SupersededBy = created.ID
	r.bucket(tenantID)[created.ID] = created
	r.byKey[created.Key().String()] = created.ID
	return created.Clone(), nil
}

func (r *eventRepository) SetActualDuration(ctx context.Context, tenantID string, id model.EventID, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, exists := r.events[tenantID][id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "event not found", goerr.V("event_id", id))
	}
	ev.ActualDurationMinutes = &minutes
	return nil
}

func (r *eventRepository) ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*model.AttendanceEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.AttendanceEvent
	for _, ev := range r.events[tenantID] {
		if ev.UserID != userID || ev.Superseded() {
			continue
		}
		if ev.EventTime.Before(from) || !ev.EventTime.Before(to) {
			continue
		}
		result = append(result, ev.Clone())
	}
	sortByEventTime(result)
	return result, nil
}

func (r *eventRepository) ListByKind(ctx context.Context, tenantID string, kind types.EventKind, from, to time.Time) ([]*model.AttendanceEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.AttendanceEvent
	for _, ev := range r.events[tenantID] {
		if ev.Kind != kind || ev.Superseded() {
			continue
		}
		if ev.EventTime.Before(from) || !ev.EventTime.Before(to) {
			continue
		}
		result = append(result, ev.Clone())
	}
	sortByEventTime(result)
	return result, nil
}

func (r *eventRepository) ListUsers(ctx context.Context, tenantID string, from, to time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, ev := range r.events[tenantID] {
		if ev.UserID == "" || ev.Superseded() {
			continue
		}
		if ev.EventTime.Before(from) || !ev.EventTime.Before(to) {
			continue
		}
		seen[ev.UserID] = true
	}

	result := make([]string, 0, len(seen))
	for userID := range seen {
		result = append(result, userID)
	}
	sort.Strings(result)
	return result, nil
}

func (r *eventRepository) PruneBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned int
	for id, ev := range r.events[tenantID] {
		if ev.EventTime.Before(cutoff) {
			delete(r.events[tenantID], id)
			delete(r.byKey, ev.Key().String())
			pruned++
		}
	}
	return pruned, nil
}

func sortByEventTime(events []*model.AttendanceEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].EventTime.Equal(events[j].EventTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].EventTime.Before(events[j].EventTime)
	})
}
