// Command pulse is the operator CLI for the aggregation engine: on-demand
// reconciliation, stats and term inspection, offline event replay, and
// OpenAPI document generation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/pulse/internal/api"
	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/infrastructure"
)

var (
	logging config.LoggingConfig
	logger  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pulse",
		Short:         "Operate the pulse analysis aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logging.Finalize(); err != nil {
				return fmt.Errorf("logging: %w", err)
			}
			logger = logging.NewLogger(os.Stderr)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logging.Level, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logging.Format, "log-format", "", "log format (text, json)")

	cmd.AddCommand(reconcileCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(termsCmd())
	cmd.AddCommand(replayCmd())
	cmd.AddCommand(openapiCmd())

	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds the Postgres-backed domain from config.toml and PULSE_*
// overrides. No background passes are scheduled.
func connect() (*api.Domain, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	infra.Logger = logger

	return api.NewDomain(api.NewRuntime(cfg, infra)), nil
}
