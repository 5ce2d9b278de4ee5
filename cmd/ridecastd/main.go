// Package main is the RideCast scheduler daemon.
//
// It wraps the same evaluation cycle as the one-shot CLI in a gocron
// schedule: one run ahead of the ride in, one ahead of the ride back, at the
// cron expressions from configuration. Each run gets its own timeout; a
// SIGINT or SIGTERM drains the scheduler and exits cleanly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridecast/internal/commute"
	"ridecast/internal/config"
	"ridecast/internal/db"
	"ridecast/internal/external"
	"ridecast/internal/forecast"
	"ridecast/internal/notifications"
	"ridecast/internal/observability"
	"ridecast/internal/risk"
	"ridecast/internal/scheduler"
	"ridecast/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("ridecast daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"morning_cron", cfg.Schedule.MorningCron,
		"evening_cron", cfg.Schedule.EveningCron,
		"timezone", cfg.Schedule.Timezone,
	)

	scheduleTZ, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("loading schedule timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	metrics := observability.NewMetrics(cfg.Observability.MetricNamespace)

	service, err := buildService(cfg, pool, logger, metrics)
	if err != nil {
		return err
	}

	var pruner scheduler.HistoryPruner
	if cfg.Feature.EnableFunFacts {
		pruner = db.NewFunFactRepository(pool)
	}
	jobs := scheduler.NewJobs(service, pruner, cfg.Schedule, logger, metrics)

	sched := gocron.NewScheduler(scheduleTZ)
	if err := jobs.Register(sched); err != nil {
		return err
	}

	sched.StartAsync()
	logger.Info("scheduler started", "jobs", len(sched.Jobs()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown

	logger.Info("shutdown signal received, draining scheduler", "signal", sig.String())
	sched.Stop()
	logger.Info("daemon stopped cleanly")
	return nil
}

// buildService wires the evaluation pipeline bottom-up, identically to the
// one-shot CLI.
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
