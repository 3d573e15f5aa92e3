package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/cyberphone-ledger/internal/app"
	"github.com/ariefcatur/cyberphone-ledger/internal/config"
	"github.com/ariefcatur/cyberphone-ledger/internal/logging"
	"github.com/ariefcatur/cyberphone-ledger/internal/postgres"
	"github.com/ariefcatur/cyberphone-ledger/internal/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	var log *slog.Logger

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Administer the CyBerPhone commerce ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if b, _ := cmd.Flags().GetString("backend"); b != "" {
				cfg.StoreBackend = b
			}
			log = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, "text", "ledgerctl")
			return nil
		},
	}
	root.PersistentFlags().String("backend", "", "override STORE_BACKEND (postgres, redis, memory)")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.StoreBackend != config.BackendPostgres {
				return fmt.Errorf("migrate only applies to the %s backend", config.BackendPostgres)
			}
			db, err := postgres.Connect(cmd.Context(), cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("schema migrated")
			return nil
		},
	})

	var file string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert users, stores and products from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := seed.ParseFile(file)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, log, f)
		},
	}
	seedCmd.Flags().StringVarP(&file, "file", "f", "deploy/seed.yaml", "seed file")
	root.AddCommand(seedCmd)

	return root
}

func runSeed(ctx context.Context, cfg config.Config, log *slog.Logger, f seed.File) error {
	backend, err := app.Open(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer backend.Close()
	if err := seed.Apply(ctx, backend.Store, f); err != nil {
		return err
	}
	log.Info("seeded", "users", len(f.Users), "stores", len(f.Stores), "products", len(f.Products))
	return nil
}
