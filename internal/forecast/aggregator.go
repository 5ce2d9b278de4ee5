package forecast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ridecast/internal/observability"
	"ridecast/internal/types"
)

// DefaultConcurrencyLimit bounds simultaneous provider fetches when the
// caller does not configure one.
const DefaultConcurrencyLimit = 8

// Aggregator fans fetches out across every (request, provider) pair for a
// commute leg and merges the survivors. A failing provider is skipped, never
// fatal; which providers produced data and which did not is part of the
// result, because downstream evaluation needs to know result confidence.
type Aggregator struct {
	providers []types.ForecastProvider
	limit     int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewAggregator creates an Aggregator over the given providers. The provider
// list is fixed for the process lifetime; per-cycle inputs arrive via Collect.
func NewAggregator(
	providers []types.ForecastProvider,
	maxConcurrent int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConcurrencyLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		providers: providers,
		limit:     maxConcurrent,
		logger:    logger,
		metrics:   metrics,
	}
}

// Collect fetches every request from every provider and returns all
// successful forecasts plus the per-provider success/failure sets. Each
// (request, provider) fetch is independent; results merge under a single
// mutex. Cancellation mid-pass is safe: in-flight fetches abort, pending
// ones are skipped, and whatever was already gathered is returned.
func (a *Aggregator) Collect(
	ctx context.Context,
	requests []types.LocationRequest,
	now time.Time,
) types.CollectionResult {
	started := time.Now()

	var mu sync.Mutex
	var forecasts []types.LocationForecast
	succeeded := make(map[types.ProviderID]bool)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)

	for _, req := range requests {
		for _, provider := range a.providers {
			req := req
			provider := provider

			g.Go(func() error {
				// A canceled run treats pending fetches as not-found.
				if gCtx.Err() != nil {
					return nil
				}

				fetchStart := time.Now()
				fc, err := provider.Fetch(gCtx, req.Location, req.Window, now)
				elapsed := time.Since(fetchStart)

				if a.metrics != nil {
					a.metrics.ProviderDuration.
						WithLabelValues(string(provider.SourceID())).
						Observe(elapsed.Seconds())
				}

				if err != nil {
					a.recordFailure(provider.SourceID(), req.Location.Name, err)
					// Do not propagate to the errgroup; other fetches continue.
					return nil
				}

				if a.metrics != nil {
					a.metrics.ProviderFetches.
						WithLabelValues(string(provider.SourceID()), "success").Inc()
					if fc.UsedFallback {
						a.metrics.FallbacksUsed.
							WithLabelValues(string(provider.SourceID())).Inc()
					}
				}

				mu.Lock()
				forecasts = append(forecasts, types.LocationForecast{
					LocationName: req.Location.Name,
					Forecast:     *fc,
				})
				succeeded[provider.SourceID()] = true
				mu.Unlock()

				return nil
			})
		}
	}

	// No goroutine returns an error; Wait only synchronizes completion.
	_ = g.Wait()

	result := types.CollectionResult{Forecasts: forecasts}
	for _, provider := range a.providers {
		id := provider.SourceID()
		if succeeded[id] {
			result.Succeeded = append(result.Succeeded, id)
		} else {
			result.Failed = append(result.Failed, id)
		}
	}

	if a.metrics != nil {
		a.metrics.CollectionSize.Observe(float64(len(result.Forecasts)))
		a.metrics.CollectionDuration.Observe(time.Since(started).Seconds())
	}

	a.logger.Info("forecast collection finished",
		"requests", len(requests),
		"forecasts", len(result.Forecasts),
		"succeeded_sources", result.Succeeded,
		"failed_sources", result.Failed,
		"elapsed", time.Since(started),
	)

	return result
}

func (a *Aggregator) recordFailure(id types.ProviderID, location string, err error) {
	outcome := "error"
	if errors.Is(err, types.ErrNoForecast) {
		outcome = "no_data"
	}
	if a.metrics != nil {
		a.metrics.ProviderFetches.WithLabelValues(string(id), outcome).Inc()
	}
	a.logger.Warn("provider produced no forecast",
		"provider", id,
		"location", location,
		"outcome", outcome,
		"error", err,
	)
}
