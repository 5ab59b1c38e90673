package usecase

import (
	"fmt"
	"time"

	"github.com/shift-lab/argus/pkg/domain/interfaces"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/service/classifier"
	"github.com/shift-lab/argus/pkg/utils/lock"
)

// UseCases bundles the attendance pipeline operations over one
// repository and tenant registry.
type UseCases struct {
	repo    interfaces.Repository
	tenants *model.TenantRegistry

	// resolvers is keyed by tenant ID; tenants without an entry use a
	// rules-only resolver.
	resolvers map[string]*classifier.Resolver

	// userLocks is the per-(tenant,user) sequencing point shared by
	// ingestion, correction, and projection.
	userLocks *lock.KeyedMutex

	now func() time.Time
}

type Option func(*UseCases)

// WithResolver installs a tenant's classification resolver
func WithResolver(tenantID string, r *classifier.Resolver) Option {
	return func(uc *UseCases) {
		uc.resolvers[tenantID] = r
	}
}

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, tenants *model.TenantRegistry, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		tenants:   tenants,
		resolvers: make(map[string]*classifier.Resolver),
		userLocks: lock.NewKeyedMutex(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *UseCases) resolverFor(tenantID string) *classifier.Resolver {
	if r, ok := uc.resolvers[tenantID]; ok {
		return r
	}
	return classifier.NewResolver(nil)
}

func userLockKey(tenantID, userID string) string {
	return fmt.Sprintf("%s/%s", tenantID, userID)
}

// dayWindow returns the [start, end) bounds of the tenant-local day
// containing t. The day boundary is the tenant's rollover hour, so a
// 02:00 event with a 05:00 rollover still belongs to the previous day.
func dayWindow(tenant *model.Tenant, t time.Time) (time.Time, time.Time) {
	loc := tenant.Location()
	local := t.In(loc)

	start := time.Date(local.Year(), local.Month(), local.Day(), tenant.RolloverHour, 0, 0, 0, loc)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}
