package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/shift-lab/argus/pkg/cli/config"
	httpctrl "github.com/shift-lab/argus/pkg/controller/http"
	"github.com/shift-lab/argus/pkg/service/classifier"
	"github.com/shift-lab/argus/pkg/service/worker"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var signingSecret string
	var analyzeInterval time.Duration
	var sweepInterval time.Duration
	var tenantsCfg config.Tenants
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ARGUS_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack signing secret for webhook verification (empty disables the webhook)",
			Sources:     cli.EnvVars("ARGUS_SLACK_SIGNING_SECRET"),
			Destination: &signingSecret,
		},
		&cli.DurationFlag{
			Name:        "analyze-interval",
			Usage:       "Interval between pattern analysis runs",
			Value:       time.Hour,
			Sources:     cli.EnvVars("ARGUS_ANALYZE_INTERVAL"),
			Destination: &analyzeInterval,
		},
		&cli.DurationFlag{
			Name:        "sweep-interval",
			Usage:       "Interval between anomaly sweeps and end-of-day checkout runs",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("ARGUS_SWEEP_INTERVAL"),
			Destination: &sweepInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, tenantsCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server with background workers",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Load tenant configurations and build registry
			registry, err := tenantsCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load tenant configurations")
			}

			// Initialize repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			// Build one classification resolver per tenant so provider
			// credentials stay isolated
			var ucOpts []usecase.Option
			for _, tenant := range registry.List() {
				if len(tenant.Providers) == 0 {
					logging.Default().Info("No LLM providers configured, rule matching only",
						"tenant_id", tenant.ID)
					continue
				}

				providers, err := classifier.BuildProviders(ctx, tenant.Providers)
				if err != nil {
					return goerr.Wrap(err, "failed to build LLM providers",
						goerr.V("tenant_id", tenant.ID))
				}
				ucOpts = append(ucOpts,
					usecase.WithResolver(tenant.ID, classifier.NewResolver(classifier.NewAIClassifier(providers))))
				logging.Default().Info("LLM classification enabled",
					"tenant_id", tenant.ID,
					"providers", len(providers),
				)
			}

			uc := usecase.New(repo, registry, ucOpts...)

			// Background workers
			analyzerWorker := worker.NewAnalyzerWorker(uc, registry, analyzeInterval)
			if err := analyzerWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start analyzer worker")
			}

			rolloverWorker := worker.NewRolloverWorker(uc, registry, sweepInterval)
			if err := rolloverWorker.Start(ctx); err != nil {
				analyzerWorker.Stop()
				return goerr.Wrap(err, "failed to start rollover worker")
			}

			// Create HTTP server options
			var httpOpts []httpctrl.Options
			if signingSecret != "" {
				webhookHandler := httpctrl.NewSlackWebhookHandler(uc, registry)
				httpOpts = append(httpOpts, httpctrl.WithSlackWebhook(webhookHandler, signingSecret))
				logging.Default().Info("Slack webhook handler enabled")
			} else {
				logging.Default().Warn("Slack signing secret not configured, webhook disabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, registry, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				analyzerWorker.Stop()
				rolloverWorker.Stop()
				return err

			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				rolloverWorker.Stop()
				analyzerWorker.Stop()

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
