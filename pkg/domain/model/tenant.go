package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Default tenant settings, applied where the configuration is silent
const (
	DefaultConfidenceThreshold = 0.7
	DefaultLongBreakHours      = 2.0
	DefaultNoCheckoutHours     = 10.0
	DefaultLateBufferMinutes   = 30
	DefaultRetentionDays       = 90
	DefaultAnalysisWindowDays  = 30
	DefaultMinSampleDays       = 3
	DefaultBreakMultiplier     = 1.5
)

// ChannelPurposeAttendance marks channels that carry attendance traffic
const ChannelPurposeAttendance = "attendance"

// ChannelRule describes how a mapped channel is processed
type ChannelRule struct {
	Purpose string
	// AIFirst requests AI classification before the rule matcher
	AIFirst bool
}

// ProviderConfig holds credentials and options for one LLM provider.
// Providers are tried in declaration order.
type ProviderConfig struct {
	// ID is one of "gemini", "openai", "claude"
	ID     string
	APIKey string
	Model  string
	// Gemini uses a GCP project/location instead of an API key
	Project  string
	Location string

	TimeoutSeconds int
}

// Tenant is an isolated customer boundary with its processing settings
type Tenant struct {
	ID       string
	Name     string
	Timezone string

	ConfidenceThreshold float64
	LongBreakHours      float64
	NoCheckoutHours     float64
	LateBufferMinutes   int
	BreakMultiplier     float64

	// RolloverHour is the local hour at which "today" resets
	RolloverHour int
	// AutoCheckoutHour synthesizes a checkout for users still active at
	// this local hour. Nil disables the policy (the default).
	AutoCheckoutHour *int

	RetentionDays      int
	AnalysisWindowDays int
	MinSampleDays      int

	Channels  map[string]ChannelRule
	Providers []ProviderConfig
}

// Location resolves the tenant timezone, falling back to UTC
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ChannelFor returns the processing rule for a channel, if mapped
func (t *Tenant) ChannelFor(channelID string) (ChannelRule, bool) {
	rule, ok := t.Channels[channelID]
	return rule, ok
}

// ErrTenantNotFound is returned when a tenant is not registered
var ErrTenantNotFound = goerr.New("tenant not found")

// TenantRegistry holds tenant configurations (settings only, no
// repository or use case instances).
type TenantRegistry struct {
	entries map[string]*Tenant
	order   []string
}

// NewTenantRegistry creates an empty registry
func NewTenantRegistry() *TenantRegistry {
	return &TenantRegistry{
		entries: make(map[string]*Tenant),
	}
}

// Register adds a tenant to the registry
func (r *TenantRegistry) Register(t *Tenant) {
	if _, exists := r.entries[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.entries[t.ID] = t
}

// Get retrieves a tenant by ID
func (r *TenantRegistry) Get(tenantID string) (*Tenant, error) {
	t, ok := r.entries[tenantID]
	if !ok {
		return nil, goerr.Wrap(ErrTenantNotFound, "tenant not found",
			goerr.V("tenant_id", tenantID))
	}
	return t, nil
}

// List returns all tenants in registration order
func (r *TenantRegistry) List() []*Tenant {
	result := make([]*Tenant, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.entries[id])
	}
	return result
}

// FindByChannel locates the tenant that maps the given channel
func (r *TenantRegistry) FindByChannel(channelID string) (*Tenant, ChannelRule, bool) {
	for _, id := range r.order {
		t := r.entries[id]
		if rule, ok := t.ChannelFor(channelID); ok {
			return t, rule, true
		}
	}
	return nil, ChannelRule{}, false
}
