package classifier

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/shift-lab/argus/pkg/domain/model"
)

// BuildProviders constructs LLM clients from tenant provider
// configurations, preserving declaration order.
func BuildProviders(ctx context.Context, configs []model.ProviderConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(configs))
	for _, cfg := range configs {
		client, err := buildClient(ctx, cfg)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build LLM provider", goerr.V("provider", cfg.ID))
		}

		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		providers = append(providers, Provider{
			Name:    cfg.ID,
			Client:  client,
			Timeout: timeout,
		})
	}
	return providers, nil
}

func buildClient(ctx context.Context, cfg model.ProviderConfig) (gollem.LLMClient, error) {
	switch cfg.ID {
	case "gemini":
		if cfg.Project == "" {
			return nil, goerr.New("gemini provider requires a project")
		}
		location := cfg.Location
		if location == "" {
			location = "us-central1"
		}
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		return gemini.New(ctx, cfg.Project, location, opts...)

	case "openai":
		if cfg.APIKey == "" {
			return nil, goerr.New("openai provider requires an API key")
		}
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.New(ctx, cfg.APIKey, opts...)

	case "claude":
		if cfg.APIKey == "" {
			return nil, goerr.New("claude provider requires an API key")
		}
		var opts []claude.Option
		if cfg.Model != "" {
			opts = append(opts, claude.WithModel(cfg.Model))
		}
		return claude.New(ctx, cfg.APIKey, opts...)

	default:
		return nil, goerr.New("unknown LLM provider", goerr.V("provider", cfg.ID))
	}
}
