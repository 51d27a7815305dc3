package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// newMigrateCmd creates every table the Data Service needs, per
// SPEC_FULL.md §6's B3. dataservice.New already runs this DDL idempotently
// on every startup; this subcommand exists so an operator can run it once
// ahead of a multi-replica rollout instead of racing several processes'
// first CreateTableIfNotExists against each other.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the row store's tables if they do not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			db, dialect, err := store.Open(ctx, cfg.DatabaseURI)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			c := codec.New(domain.NewRegistry())
			if _, err := dataservice.New(ctx, db, dialect, c, logger); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}

			logger.Info("migrate complete")
			return nil
		},
	}
}
