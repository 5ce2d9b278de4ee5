// Package scheduler mounts the recurring RideCast jobs on a gocron scheduler:
// the morning and evening evaluation runs, plus nightly maintenance that
// prunes expired fact usage history. The daemon owns the scheduler lifecycle;
// this package only defines what runs and when.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"ridecast/internal/commute"
	"ridecast/internal/config"
	"ridecast/internal/observability"
	"ridecast/internal/types"
)

// CycleRunner runs one evaluation cycle across the roster. Implemented by
// commute.Service.
type CycleRunner interface {
	RunAll(ctx context.Context, run types.Leg) (commute.Summary, error)
}

// HistoryPruner deletes fact usage records older than a cutoff. Implemented
// by db.FunFactRepository. Nil disables the maintenance job.
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// factHistoryRetention matches the dedup horizon the fact picker consults,
// with headroom so a rotation window never loses its history mid-cycle.
const factHistoryRetention = 90 * 24 * time.Hour

// Jobs binds the evaluation pipeline to its cron schedule.
type Jobs struct {
	runner  CycleRunner
	pruner  HistoryPruner
	cfg     config.ScheduleConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewJobs creates the job set. pruner may be nil when fact history is not in
// use.
func NewJobs(
	runner CycleRunner,
	pruner HistoryPruner,
	cfg config.ScheduleConfig,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		runner:  runner,
		pruner:  pruner,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts every job on the scheduler. The scheduler is not started;
// the caller controls StartAsync and Stop.
func (j *Jobs) Register(s *gocron.Scheduler) error {
	if _, err := s.Cron(j.cfg.MorningCron).Tag("evaluation_morning").Do(j.RunCycle, types.LegMorning); err != nil {
		return fmt.Errorf("scheduler: mounting morning run: %w", err)
	}
	if _, err := s.Cron(j.cfg.EveningCron).Tag("evaluation_evening").Do(j.RunCycle, types.LegEvening); err != nil {
		return fmt.Errorf("scheduler: mounting evening run: %w", err)
	}
	if j.pruner != nil {
		if _, err := s.Cron(j.cfg.MaintenanceCron).Tag("maintenance").Do(j.RunMaintenance); err != nil {
			return fmt.Errorf("scheduler: mounting maintenance: %w", err)
		}
	}
	return nil
}

// RunCycle executes one scheduled evaluation run with its own timeout.
// Failures are logged, never propagated; the next scheduled run is the retry.
func (j *Jobs) RunCycle(run types.Leg) {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RunTimeout)
	defer cancel()

	j.logger.Info("scheduled run starting", "run", run)
	summary, err := j.runner.RunAll(ctx, run)
	if err != nil {
		j.logger.Error("scheduled run failed", "run", run, "error", err)
		return
	}
	j.logger.Info("scheduled run finished",
		"run", run,
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
	)
}

// RunMaintenance prunes fact usage history past the retention horizon.
func (j *Jobs) RunMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RunTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-factHistoryRetention)
	pruned, err := j.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("fact history pruning failed", "error", err)
		return
	}
	if pruned > 0 {
		j.logger.Info("pruned fact usage history", "count", pruned, "cutoff", cutoff)
	}
}
