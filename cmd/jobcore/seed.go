package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaydb/jobcore/internal/bootstrap"
	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// newSeedCmd bootstraps the System root and default admin User, then
// creates one sample Job/Task/Schedule so a fresh deployment has
// something to trigger immediately. Grounded on the teacher's
// cmd/seed/main.go, which seeded an httpbin-backed job the same way,
// minus its Postgres-specific raw SQL.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap the system user and a sample job",
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
			ds, err := dataservice.New(ctx, db, dialect, c, logger)
			if err != nil {
				return fmt.Errorf("data service: %w", err)
			}

			sys, err := bootstrap.EnsureSystemAndAdmin(ctx, ds, cfg.AdminDefaultUsername, cfg.AdminDefaultPassword, logger)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			jobs, err := ds.ListJobs(ctx)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			for _, j := range jobs {
				if j.Name == sampleJobName {
					logger.Info("sample job already seeded", "job_id", j.ID)
					return nil
				}
			}

			job, err := ds.SaveJob(ctx, domain.Job{SystemID: sys.ID, Name: sampleJobName, IsActive: true})
			if err != nil {
				return fmt.Errorf("create sample job: %w", err)
			}

			if _, err := ds.SaveTask(ctx, domain.Task{JobID: job.ID, Step: 1, Action: "http", Name: "ping", IsActive: true}); err != nil {
				return fmt.Errorf("create sample task: %w", err)
			}
			if _, err := ds.SaveTag(ctx, domain.Tag{JobID: job.ID, Name: "http.url", Value: "https://httpbin.org/get"}); err != nil {
				return fmt.Errorf("create sample url tag: %w", err)
			}
			if _, err := ds.SaveTag(ctx, domain.Tag{JobID: job.ID, Name: "http.method", Value: "GET"}); err != nil {
				return fmt.Errorf("create sample method tag: %w", err)
			}
			if _, err := ds.SaveSchedule(ctx, domain.Schedule{JobID: job.ID, Cron: "*/5 * * * *", IsActive: true}); err != nil {
				return fmt.Errorf("create sample schedule: %w", err)
			}

			logger.Info("seeded sample job", "job_id", job.ID)
			return nil
		},
	}
}

const sampleJobName = "sample-http-ping"
