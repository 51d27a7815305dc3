package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/relaydb/jobcore/internal/bootstrap"
	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/health"
	"github.com/relaydb/jobcore/internal/metrics"
	"github.com/relaydb/jobcore/internal/store"
	httptransport "github.com/relaydb/jobcore/internal/transport/http"
	"github.com/relaydb/jobcore/internal/transport/http/handler"
)

// newServeCmd runs the HTTP Transport (B2): the Job/User admin API plus
// health and metrics, per spec.md §6's SERVER_TYPE=web. Grounded on the
// teacher's cmd/server/main.go.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
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

			if _, err := bootstrap.EnsureSystemAndAdmin(ctx, ds, cfg.AdminDefaultUsername, cfg.AdminDefaultPassword, logger); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			metrics.Register()
			checker := health.NewChecker(health.SQLPinger(db), logger, prometheus.DefaultRegisterer)

			jobHandler := handler.NewJobHandler(ds, logger)
			userHandler := handler.NewUserHandler(ds, logger)
			healthHandler := handler.NewHealthHandler(checker)

			var jwtKey []byte
			if cfg.JWTSecret != "" {
				jwtKey = []byte(cfg.JWTSecret)
			}

			srv := &http.Server{
				Addr:    ":" + cfg.Port,
				Handler: httptransport.NewRouter(logger, jobHandler, userHandler, healthHandler, jwtKey),
			}
			metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

			go func() {
				logger.Info("http server started", "port", cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server", "error", err)
				}
			}()
			go func() {
				logger.Info("metrics server started", "port", cfg.MetricsPort)
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server", "error", err)
				}
			}()

			<-ctx.Done()
			stop()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown", "error", err)
			}
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", "error", err)
			}
			return nil
		},
	}
}
