// Package main is the one-shot RideCast evaluation CLI.
//
// It runs a single evaluation cycle for every enabled rider (or one rider via
// --rider), delivering recommendations by email, then exits. The exit code is
// non-zero only for configuration or wiring failures; per-rider provider and
// delivery failures are logged and absorbed, because a partially degraded run
// still produces useful decisions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridecast/internal/commute"
	"ridecast/internal/config"
	"ridecast/internal/db"
	"ridecast/internal/external"
	"ridecast/internal/forecast"
	"ridecast/internal/notifications"
	"ridecast/internal/observability"
	"ridecast/internal/risk"
	"ridecast/internal/types"
)

func main() {
	riderID := flag.String("rider", "", "evaluate a single rider by ID instead of the full roster")
	runName := flag.String("run", "morning", "which scheduled run this is: morning or evening")
	flag.Parse()

	if err := run(*riderID, *runName); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(riderID, runName string) error {
	runLeg := types.Leg(runName)
	if runLeg != types.LegMorning && runLeg != types.LegEvening {
		return fmt.Errorf("invalid -run value %q: must be morning or evening", runName)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("ridecast evaluation starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"run", runLeg,
		"rider_filter", riderID != "",
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.RunTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	metrics := observability.NewMetrics(cfg.Observability.MetricNamespace)

	service, err := buildService(cfg, pool, logger, metrics)
	if err != nil {
		return err
	}

	var summary commute.Summary
	if riderID != "" {
		summary, err = service.RunOne(ctx, riderID, runLeg)
	} else {
		summary, err = service.RunAll(ctx, runLeg)
	}
	if err != nil {
		return err
	}

	logger.Info("ridecast evaluation finished",
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
	)
	return nil
}

// buildService wires the evaluation pipeline bottom-up: providers behind the
// resilient client, the aggregator, the evaluator, and the delivery path.
func buildService(
	cfg *config.Config,
	pool *pgxpool.Pool,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*commute.Service, error) {
	registry := external.NewClientRegistry(cfg, logger)

	aggregator := forecast.NewAggregator(
		registry.Providers,
		cfg.Forecast.MaxConcurrentFetches,
		logger,
		metrics,
	)

	renderer, err := notifications.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("building renderer: %w", err)
	}

	channel := notifications.NewEmailChannel(registry.Email, logger, metrics)

	var facts commute.FactSource
	if cfg.Feature.EnableFunFacts {
		facts = notifications.NewFactPicker(db.NewFunFactRepository(pool), logger)
	}

	return commute.NewService(
		db.NewRiderRepository(pool),
		aggregator,
		risk.NewEvaluator(logger),
		renderer,
		channel,
		facts,
		types.RealClock{},
		commute.Options{
			DeliverEmail: cfg.Feature.EnableEmail,
			PickFacts:    cfg.Feature.EnableFunFacts,
		},
		logger,
		metrics,
	), nil
}

// newLogger creates a structured slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
