package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hrsched/internal/app/server"
	"hrsched/internal/platform/config"
	"hrsched/internal/platform/db"
	"hrsched/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	serve := newServeCmd(&cfg)
	cmd := &cobra.Command{
		Use:           "hrsched",
		Short:         "Factory time off and attendance request service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		RunE: serve.RunE,
	}
	cmd.AddCommand(serve, newMigrateCmd(&cfg), newSeedCmd(&cfg))
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := server.New(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := db.Connect(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			version, err := db.MigrationVersion(cmd.Context(), pool)
			if err != nil {
				return err
			}
			slog.Info("migrations applied", "version", version)
			return nil
		},
	}
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var fixtures string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and load optional fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtures != "" {
				cfg.SeedFixturesFile = fixtures
			}
			pool, err := db.Connect(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Seed(cmd.Context(), pool, *cfg); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			slog.Info("seed complete", "fixtures", cfg.SeedFixturesFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML fixtures file (overrides SEED_FIXTURES_FILE)")
	return cmd
}
