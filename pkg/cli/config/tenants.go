package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Tenants holds CLI flags for the tenant configuration file
type Tenants struct {
	path string
}

// Flags returns CLI flags for tenant configuration
func (t *Tenants) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tenant-config",
			Usage:       "Path to the tenant configuration TOML file (required)",
			Required:    true,
			Sources:     cli.EnvVars("ARGUS_TENANT_CONFIG"),
			Destination: &t.path,
		},
	}
}

// Configure loads the tenant configuration file and builds the registry
func (t *Tenants) Configure() (*model.TenantRegistry, error) {
	cfg, err := LoadTenantConfiguration(t.path)
	if err != nil {
		return nil, err
	}
	return cfg.Registry(), nil
}

// TenantsConfig represents the tenant configuration file
type TenantsConfig struct {
	Tenants []TenantConfig `toml:"tenant"`
}

// TenantConfig represents one tenant section
type TenantConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"`

	ConfidenceThreshold *float64 `toml:"confidence_threshold"`
	LongBreakHours      *float64 `toml:"long_break_hours"`
	NoCheckoutHours     *float64 `toml:"no_checkout_hours"`
	LateBufferMinutes   *int     `toml:"late_buffer_minutes"`
	BreakMultiplier     *float64 `toml:"break_multiplier"`

	RolloverHour     int  `toml:"rollover_hour"`
	AutoCheckoutHour *int `toml:"auto_checkout_hour"`

	RetentionDays      *int `toml:"retention_days"`
	AnalysisWindowDays *int `toml:"analysis_window_days"`
	MinSampleDays      *int `toml:"min_sample_days"`

	Channels  []ChannelConfig  `toml:"channel"`
	Providers []ProviderConfig `toml:"provider"`
}

// ChannelConfig maps a chat channel onto a processing purpose
type ChannelConfig struct {
	ID      string `toml:"id"`
	Purpose string `toml:"purpose"`
	AIFirst bool   `toml:"ai_first"`
}

// ProviderConfig represents one LLM provider entry. Entries are tried
// in declaration order.
type ProviderConfig struct {
	ID             string `toml:"id"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Project        string `toml:"project"`
	Location       string `toml:"location"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Validate checks if the ChannelConfig is valid
func (c *ChannelConfig) Validate() error {
	if c.ID == "" {
		return goerr.New("channel id is required")
	}
	if c.Purpose == "" {
		return goerr.New("channel purpose is required", goerr.V("channel_id", c.ID))
	}
	return nil
}

// Validate checks if the ProviderConfig is valid
func (p *ProviderConfig) Validate() error {
	switch p.ID {
	case "gemini":
		if p.Project == "" {
			return goerr.New("gemini provider requires a project", goerr.V("provider", p.ID))
		}
	case "openai", "claude":
		if p.APIKey == "" {
			return goerr.New("provider requires an api_key", goerr.V("provider", p.ID))
		}
	default:
		return goerr.New("unknown provider", goerr.V("provider", p.ID))
	}
	return nil
}

// Validate checks if the TenantConfig is valid
func (t *TenantConfig) Validate() error {
	if t.ID == "" {
		return goerr.New("tenant id is required")
	}
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			return goerr.Wrap(err, "invalid timezone", goerr.V("tenant_id", t.ID), goerr.V("timezone", t.Timezone))
		}
	}
	if t.ConfidenceThreshold != nil && (*t.ConfidenceThreshold < 0 || *t.ConfidenceThreshold > 1) {
		return goerr.New("confidence_threshold must be between 0 and 1",
			goerr.V("tenant_id", t.ID), goerr.V("value", *t.ConfidenceThreshold))
	}
	if t.RolloverHour < 0 || t.RolloverHour > 23 {
		return goerr.New("rollover_hour must be between 0 and 23",
			goerr.V("tenant_id", t.ID), goerr.V("value", t.RolloverHour))
	}
	if t.AutoCheckoutHour != nil && (*t.AutoCheckoutHour < 0 || *t.AutoCheckoutHour > 23) {
		return goerr.New("auto_checkout_hour must be between 0 and 23",
			goerr.V("tenant_id", t.ID), goerr.V("value", *t.AutoCheckoutHour))
	}

	channelIDs := make(map[string]bool)
	for _, ch := range t.Channels {
		if err := ch.Validate(); err != nil {
			return goerr.Wrap(err, "invalid channel", goerr.V("tenant_id", t.ID))
		}
		if channelIDs[ch.ID] {
			return goerr.New("duplicate channel ID", goerr.V("tenant_id", t.ID), goerr.V("channel_id", ch.ID))
		}
		channelIDs[ch.ID] = true
	}

	for _, p := range t.Providers {
		if err := p.Validate(); err != nil {
			return goerr.Wrap(err, "invalid provider", goerr.V("tenant_id", t.ID))
		}
	}

	return nil
}

// Validate checks if the TenantsConfig is valid
func (c *TenantsConfig) Validate() error {
	if len(c.Tenants) == 0 {
		return goerr.New("at least one tenant is required")
	}

	tenantIDs := make(map[string]bool)
	channelOwners := make(map[string]string)
	for _, t := range c.Tenants {
		if err := t.Validate(); err != nil {
			return goerr.Wrap(err, "invalid tenant")
		}
		if tenantIDs[t.ID] {
			return goerr.New("duplicate tenant ID", goerr.V("tenant_id", t.ID))
		}
		tenantIDs[t.ID] = true

		// A channel maps to exactly one tenant
		for _, ch := range t.Channels {
			if owner, taken := channelOwners[ch.ID]; taken {
				return goerr.New("channel mapped to multiple tenants",
					goerr.V("channel_id", ch.ID),
					goerr.V("tenants", []string{owner, t.ID}))
			}
			channelOwners[ch.ID] = t.ID
		}
	}

	return nil
}

// LoadTenantConfiguration loads the tenant configuration from a TOML file
func LoadTenantConfiguration(path string) (*TenantsConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read tenant config file", goerr.V("path", path))
	}

	var config TenantsConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "tenant config validation failed", goerr.V("path", path))
	}

	return &config, nil
}

// Registry converts the configuration into a tenant registry, filling
// unset fields with the defaults.
func (c *TenantsConfig) Registry() *model.TenantRegistry {
	registry := model.NewTenantRegistry()
	for _, tc := range c.Tenants {
		registry.Register(tc.toTenant())
	}
	return registry
}

func (tc *TenantConfig) toTenant() *model.Tenant {
	t := &model.Tenant{
		ID:       tc.ID,
		Name:     tc.Name,
		Timezone: tc.Timezone,

		ConfidenceThreshold: floatOr(tc.ConfidenceThreshold, model.DefaultConfidenceThreshold),
		LongBreakHours:      floatOr(tc.LongBreakHours, model.DefaultLongBreakHours),
		NoCheckoutHours:     floatOr(tc.NoCheckoutHours, model.DefaultNoCheckoutHours),
		LateBufferMinutes:   intOr(tc.LateBufferMinutes, model.DefaultLateBufferMinutes),
		BreakMultiplier:     floatOr(tc.BreakMultiplier, model.DefaultBreakMultiplier),

		RolloverHour:     tc.RolloverHour,
		AutoCheckoutHour: tc.AutoCheckoutHour,

		RetentionDays:      intOr(tc.RetentionDays, model.DefaultRetentionDays),
		AnalysisWindowDays: intOr(tc.AnalysisWindowDays, model.DefaultAnalysisWindowDays),
		MinSampleDays:      intOr(tc.MinSampleDays, model.DefaultMinSampleDays),

		Channels: make(map[string]model.ChannelRule, len(tc.Channels)),
	}

	for _, ch := range tc.Channels {
		t.Channels[ch.ID] = model.ChannelRule{
			Purpose: ch.Purpose,
			AIFirst: ch.AIFirst,
		}
	}

	for _, p := range tc.Providers {
		t.Providers = append(t.Providers, model.ProviderConfig{
			ID:             p.ID,
			APIKey:         p.APIKey,
			Model:          p.Model,
			Project:        p.Project,
			Location:       p.Location,
			TimeoutSeconds: p.TimeoutSeconds,
		})
	}

	return t
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
