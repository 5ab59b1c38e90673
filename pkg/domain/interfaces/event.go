package interfaces

import (
	"context"
	"time"

	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
)

// EventRepository is the append-only, idempotent store of attendance
// events. All list operations return events ordered by event time
// ascending, excluding superseded events unless stated otherwise.
type EventRepository interface {
	// Put inserts the event unless one with the same idempotence key
	// already exists. It returns the effective event and whether the
	// insert actually happened; a duplicate returns the stored event
	// unchanged with created=false.
	Put(ctx context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, bool, error)

	// Get retrieves an event by ID, including superseded ones
	Get(ctx context.Context, tenantID string, id model.EventID) (*model.AttendanceEvent, error)

	// Supersede atomically marks the original event as replaced and
	// inserts the manual correction event. Only the correction handler
	// is authorized to call this.
	Supersede(ctx context.Context, tenantID string, originalID model.EventID, correction *model.AttendanceEvent) (*model.AttendanceEvent, error)

	// SetActualDuration back-annotates the measured break duration onto
	// a BREAK_START event.
	SetActualDuration(ctx context.Context, tenantID string, id model.EventID, minutes int) error

	// ListByUser returns a user's events within [from, to)
	ListByUser(ctx context.Context, tenantID, userID string, from, to time.Time) ([]*model.AttendanceEvent, error)

	// ListByKind returns a tenant's events of one kind within [from, to)
	ListByKind(ctx context.Context, tenantID string, kind types.EventKind, from, to time.Time) ([]*model.AttendanceEvent, error)

	// ListUsers returns the distinct user IDs with events in [from, to)
	ListUsers(ctx context.Context, tenantID string, from, to time.Time) ([]string, error)

	// PruneBefore deletes events older than the cutoff, returning the
	// number removed. Aggregated patterns survive pruning.
	PruneBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error)
}
