package interfaces

import (
	"context"

	"github.com/shift-lab/argus/pkg/domain/model"
)

// StatusRepository stores the derived per-user status records. Writes go
// exclusively through the status projector.
type StatusRepository interface {
	// Get retrieves the status record for a user, or ErrNotFound
	Get(ctx context.Context, tenantID, userID string) (*model.UserStatus, error)

	// Put creates or replaces the status record
	Put(ctx context.Context, status *model.UserStatus) error

	// List returns all status records of a tenant, ordered by user ID
	List(ctx context.Context, tenantID string) ([]*model.UserStatus, error)
}
