// Command jobcore is the single entrypoint for the platform, replacing
// the teacher's three separate cmd/{server,scheduler,seed} binaries with
// cobra subcommands that share one config/logger construction path.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/relaydb/jobcore/config"
	ctxlog "github.com/relaydb/jobcore/internal/log"
)

func main() {
	root := &cobra.Command{
		Use:   "jobcore",
		Short: "Distributed job orchestration platform",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the slog.Logger used by every subcommand, grounded on
// the teacher's cmd/scheduler/main.go: tint for local terminals, JSON
// otherwise, both wrapped in the request-id-enriching ContextHandler.
func newLogger(debug bool, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if debug {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, newLogger(cfg.Debug, cfg.SlogLevel()), nil
}
