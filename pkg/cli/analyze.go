package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/shift-lab/argus/pkg/cli/config"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

func cmdAnalyze() *cli.Command {
	var tenantID string
	var tenantsCfg config.Tenants
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tenant",
			Usage:       "Analyze only the given tenant (default: all tenants)",
			Sources:     cli.EnvVars("ARGUS_ANALYZE_TENANT"),
			Destination: &tenantID,
		},
	}
	flags = append(flags, tenantsCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "analyze",
		Aliases: []string{"a"},
		Usage:   "Run pattern analysis once and exit",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			registry, err := tenantsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load tenant configurations")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo, registry)

			targets := registry.List()
			if tenantID != "" {
				tenant, err := registry.Get(tenantID)
				if err != nil {
					return err
				}
				targets = []*model.Tenant{tenant}
			}

			for _, tenant := range targets {
				logging.Default().Info("Analyzing patterns", "tenant_id", tenant.ID)
				if err := uc.AnalyzePatterns(ctx, tenant.ID); err != nil {
					return goerr.Wrap(err, "pattern analysis failed",
						goerr.V("tenant_id", tenant.ID))
				}
			}

			logging.Default().Info("Pattern analysis completed", "tenants", len(targets))
			return nil
		},
	}
}
