package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/relaydb/jobcore/internal/action"
	"github.com/relaydb/jobcore/internal/bootstrap"
	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/executionserver"
	"github.com/relaydb/jobcore/internal/health"
	"github.com/relaydb/jobcore/internal/idgen"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/queue"
	"github.com/relaydb/jobcore/internal/scheduler"
	"github.com/relaydb/jobcore/internal/store"
)

// newScheduleCmd runs the Scheduler (C5) tick loop and one Execution
// Server's Worker Thread pool (C7/C8) in the same process, per spec.md
// §6's SERVER_TYPE=scheduler. Grounded on the teacher's
// cmd/scheduler/main.go.
func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the scheduler tick loop and an execution server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

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

			metrics.Register()
			checker := health.NewChecker(health.SQLPinger(db), logger, prometheus.DefaultRegisterer)
			if res := checker.Readiness(ctx); res.Status != "up" {
				return fmt.Errorf("database not ready: %v", res.Checks)
			}

			q := queue.New(cfg.QueueCapacity)
			actions := action.NewRegistry(logger)
			serverID := idgen.New()

			sched := scheduler.New(ds, q, logger, serverID, cfg.SchedulerTickInterval(), cfg.SchedulerLeaseTTL())
			execSrv := executionserver.New(ds, q, actions, logger, sys.ID, cfg.SchedulerProcessCount)

			metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
			go func() {
				logger.Info("metrics server started", "port", cfg.MetricsPort)
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server", "error", err)
				}
			}()

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				sched.Run(ctx)
			}()
			go func() {
				defer wg.Done()
				if err := execSrv.Run(ctx); err != nil {
					logger.Error("execution server", "error", err)
				}
			}()

			<-ctx.Done()
			stop()
			logger.Info("shutting down")
			wg.Wait()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", "error", err)
			}
			return nil
		},
	}
}
