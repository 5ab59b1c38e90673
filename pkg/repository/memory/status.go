package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
)

type statusKey struct {
	tenantID string
	userID   string
}

type statusRepository struct {
	mu       sync.RWMutex
	statuses map[statusKey]*model.UserStatus
}

func newStatusRepository() *statusRepository {
	return &statusRepository{
		statuses: make(map[statusKey]*model.UserStatus),
	}
}

func (r *statusRepository) Get(ctx context.Context, tenantID, userID string) (*model.UserStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, exists := r.statuses[statusKey{tenantID: tenantID, userID: userID}]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "status not found",
			goerr.V("tenant_id", tenantID), goerr.V("user_id", userID))
	}
	return status.Clone(), nil
}

func (r *statusRepository) Put(ctx context.Context, status *model.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := status.Clone()
	stored.UpdatedAt = time.Now().UTC()
	r.statuses[statusKey{tenantID: status.TenantID, userID: status.UserID}] = stored
	return nil
}

func (r *statusRepository) List(ctx context.Context, tenantID string) ([]*model.UserStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.UserStatus
	for key, status := range r.statuses {
		if key.tenantID != tenantID {
			continue
		}
		result = append(result, status.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}
