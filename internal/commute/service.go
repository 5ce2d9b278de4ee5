// Package commute orchestrates one full evaluation cycle: walk the rider
// roster, collect forecasts for both legs, assess risk, render the
// recommendation, and deliver it. Collaborators arrive as interfaces so the
// cycle can be exercised end to end with fakes.
package commute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ridecast/internal/observability"
	"ridecast/internal/risk"
	"ridecast/internal/types"
)

// RiderSource provides the roster the cycle walks. Implemented by
// db.RiderRepository.
type RiderSource interface {
	ListEnabled(ctx context.Context) ([]*types.Rider, error)
	GetByID(ctx context.Context, id string) (*types.Rider, error)
}

// Collector gathers forecasts for one commute leg. Implemented by
// forecast.Aggregator.
type Collector interface {
	Collect(ctx context.Context, requests []types.LocationRequest, now time.Time) types.CollectionResult
}

// Deliverer sends a rendered recommendation to a rider. Implemented by
// notifications.EmailChannel.
type Deliverer interface {
	Deliver(ctx context.Context, rider *types.Rider, rec *types.Recommendation) error
}

// FactSource picks the footer fact for a cycle. Implemented by
// notifications.FactPicker. Nil disables the footer.
type FactSource interface {
	Pick(ctx context.Context, riderID string, now time.Time) (*types.FunFact, error)
}

// Options configures one Service.
type Options struct {
	// DeliverEmail is the process-wide email kill switch.
	DeliverEmail bool
	// PickFacts is the process-wide fun-fact kill switch.
	PickFacts bool
}

// Service runs evaluation cycles.
type Service struct {
	riders    RiderSource
	collector Collector
	evaluator *risk.Evaluator
	renderer  types.RecommendationRenderer
	channel   Deliverer
	facts     FactSource
	clock     types.Clock
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService wires a Service. riders, collector, evaluator, and renderer are
// required; channel and facts may be nil, which disables delivery and the
// footer respectively.
func NewService(
	riders RiderSource,
	collector Collector,
	evaluator *risk.Evaluator,
	renderer types.RecommendationRenderer,
	channel Deliverer,
	facts FactSource,
	clock types.Clock,
	opts Options,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		riders:    riders,
		collector: collector,
		evaluator: evaluator,
		renderer:  renderer,
		channel:   channel,
		facts:     facts,
		clock:     clock,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Summary totals one cycle run across the roster.
type Summary struct {
	Evaluated int
	Skipped   int
	Delivered int
	Failed    int
}

// RunAll evaluates every enabled rider. Per-rider failures are counted and
// logged, never fatal; only a roster read failure aborts the run.
func (s *Service) RunAll(ctx context.Context, run types.Leg) (Summary, error) {
	riders, err := s.riders.ListEnabled(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("commute: loading rider roster: %w", err)
	}

	var summary Summary
	for _, rider := range riders {
		outcome := s.runRider(ctx, rider, run)
		summary.add(outcome)
	}

	s.logger.Info("evaluation run finished",
		"run", run,
		"riders", len(riders),
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
	)
	return summary, nil
}

// RunOne evaluates a single rider by ID, for the CLI's --rider flag.
func (s *Service) RunOne(ctx context.Context, riderID string, run types.Leg) (Summary, error) {
	rider, err := s.riders.GetByID(ctx, riderID)
	if err != nil {
		return Summary{}, fmt.Errorf("commute: loading rider %s: %w", riderID, err)
	}

	var summary Summary
	summary.add(s.runRider(ctx, rider, run))
	return summary, nil
}

// cycleOutcome is what one rider's cycle produced.
type cycleOutcome struct {
	skipped   bool
	delivered bool
	failed    bool
}

func (s *Summary) add(o cycleOutcome) {
	switch {
	case o.skipped:
		s.Skipped++
	default:
		s.Evaluated++
		if o.delivered {
			s.Delivered++
		}
		if o.failed {
			s.Failed++
		}
	}
}

// runRider executes the full cycle for one rider: commute-day check, both
// legs collected and assessed, the round-trip decision, and delivery per the
// rider's notification settings.
func (s *Service) runRider(ctx context.Context, rider *types.Rider, run types.Leg) cycleOutcome {
	now := s.clock.Now().In(rider.TimezoneLocation())
	logger := s.logger.With("rider_id", rider.ID, "run", run)

	if !rider.CommutesOn(now.Weekday()) {
		logger.Info("skipping rider, not a commute day", "weekday", now.Weekday().String())
		s.recordCycle("skipped")
		return cycleOutcome{skipped: true}
	}

	morning := s.collector.Collect(ctx, legRequests(rider.Locations, rider.RideIn), now)
	evening := s.collector.Collect(ctx, legRequests(rider.Locations, rider.RideBack), now)

	morningAssess := s.evaluator.AssessLeg(types.LegMorning, morning)
	eveningAssess := s.evaluator.AssessLeg(types.LegEvening, evening)
	decision := s.evaluator.Decide(morningAssess, eveningAssess)

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(fmt.Sprintf("%t", decision.ShouldRide)).Inc()
	}
	logger.Info("commute decision",
		"should_ride", decision.ShouldRide,
		"overall_risk", decision.OverallRisk,
		"primary_concern", decision.PrimaryConcern,
		"morning_sources", len(morning.Succeeded),
		"evening_sources", len(evening.Succeeded),
	)

	report := &types.DayReport{
		Rider: rider,
		Date:  now,
		Morning: types.LegReport{
			Leg:        types.LegMorning,
			Window:     rider.RideIn,
			Collection: morning,
			Assessment: morningAssess,
		},
		Evening: types.LegReport{
			Leg:        types.LegEvening,
			Window:     rider.RideBack,
			Collection: evening,
			Assessment: eveningAssess,
		},
		Decision: decision,
	}

	if reason, suppressed := s.suppressionReason(rider, run, decision); suppressed {
		logger.Info("delivery suppressed", "reason", reason)
		if s.metrics != nil {
			s.metrics.EmailsSent.WithLabelValues("suppressed").Inc()
		}
		s.recordCycle("success")
		return cycleOutcome{}
	}

	if s.opts.PickFacts && s.facts != nil {
		fact, err := s.facts.Pick(ctx, rider.ID, now)
		if err != nil {
			logger.Warn("fun fact selection failed, sending without footer", "error", err)
		} else {
			report.FunFact = fact
		}
	}

	rec, err := s.renderer.Render(report)
	if err != nil {
		logger.Error("recommendation rendering failed", "error", err)
		s.recordCycle("error")
		return cycleOutcome{failed: true}
	}

	if err := s.channel.Deliver(ctx, rider, rec); err != nil {
		logger.Error("recommendation delivery failed", "error", err)
		s.recordCycle("error")
		return cycleOutcome{failed: true}
	}

	s.recordCycle("success")
	return cycleOutcome{delivered: true}
}

// legRequests pairs every rider location with the leg's hour window, the
// unit of work the collector fans out over.
func legRequests(locations []types.Location, window types.HourWindow) []types.LocationRequest {
	requests := make([]types.LocationRequest, 0, len(locations))
	for _, loc := range locations {
		requests = append(requests, types.LocationRequest{Location: loc, Window: window})
	}
	return requests
}

// suppressionReason decides whether this cycle's email stays unsent: the
// process-wide kill switch, the rider's morning-only setting on an evening
// run, or a no-ride verdict the rider asked not to hear about.
func (s *Service) suppressionReason(rider *types.Rider, run types.Leg, decision types.CommuteDecision) (string, bool) {
	if !s.opts.DeliverEmail || s.channel == nil {
		return "email disabled", true
	}
	if run == types.LegEvening && rider.Notifications.SendMorningOnly {
		return "rider receives morning emails only", true
	}
	if !decision.ShouldRide && !rider.Notifications.SendIfNoRide {
		return "rider opted out of no-ride emails", true
	}
	return "", false
}

func (s *Service) recordCycle(outcome string) {
	if s.metrics != nil {
		s.metrics.CyclesCompleted.WithLabelValues(outcome).Inc()
	}
}
