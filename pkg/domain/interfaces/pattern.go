package interfaces

import (
	"context"

	"github.com/shift-lab/argus/pkg/domain/model"
)

// PatternRepository stores analyzer output. A put fully replaces any
// prior pattern for the same (tenant, user, period start).
type PatternRepository interface {
	// Put creates or replaces the pattern for its period
	Put(ctx context.Context, pattern *model.UserPattern) error

	// Latest returns the most recent pattern for a user, or ErrNotFound
	Latest(ctx context.Context, tenantID, userID string) (*model.UserPattern, error)

	// ListLatest returns the most recent pattern of every user in the
	// tenant, ordered by user ID.
	ListLatest(ctx context.Context, tenantID string) ([]*model.UserPattern, error)
}
