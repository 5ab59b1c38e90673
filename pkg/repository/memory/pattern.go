package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
)

type patternKey struct {
	tenantID    string
	userID      string
	periodStart string
}

type patternRepository struct {
	mu       sync.RWMutex
	patterns map[patternKey]*model.UserPattern
}

func newPatternRepository() *patternRepository {
	return &patternRepository{
		patterns: make(map[patternKey]*model.UserPattern),
	}
}

func keyOf(p *model.UserPattern) patternKey {
	return patternKey{
		tenantID:    p.TenantID,
		userID:      p.UserID,
		periodStart: p.PeriodStart.UTC().Format("2006-01-02"),
	}
}

func (r *patternRepository) Put(ctx context.Context, pattern *model.UserPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := pattern.Clone()
	stored.ComputedAt = time.Now().UTC()
	r.patterns[keyOf(pattern)] = stored
	return nil
}

func (r *patternRepository) Latest(ctx context.Context, tenantID, userID string) (*model.UserPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.UserPattern
	for key, p := range r.patterns {
		if key.tenantID != tenantID || key.userID != userID {
			continue
		}
		if latest == nil || p.PeriodStart.After(latest.PeriodStart) {
			latest = p
		}
	}
	if latest == nil {
		return nil, goerr.Wrap(ErrNotFound, "pattern not found",
			goerr.V("tenant_id", tenantID), goerr.V("user_id", userID))
	}
	return latest.Clone(), nil
}

func (r *patternRepository) ListLatest(ctx context.Context, tenantID string) ([]*model.UserPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*model.UserPattern)
	for key, p := range r.patterns {
		if key.tenantID != tenantID {
			continue
		}
		if cur, ok := latest[key.userID]; !ok || p.PeriodStart.After(cur.PeriodStart) {
			latest[key.userID] = p
		}
	}

	result := make([]*model.UserPattern, 0, len(latest))
	for _, p := range latest {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}
