package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// ForecastProvider is the capability every weather source adapter
// implements. Fetch returns the single best normalized forecast for the
// location and hour window, or an error wrapping ErrNoForecast when the
// provider has no usable data. Adapters never retry (the resilient client
// layers that on) and never crash on malformed upstream payloads.
type ForecastProvider interface {
	// SourceID returns the stable identifier for this provider.
	SourceID() ProviderID

	// Fetch retrieves and normalizes one forecast. The window is evaluated
	// relative to now, whose location fixes the timezone all hour math uses.
	// A nil error implies a non-nil forecast whose Instant is timezone-aware.
	Fetch(ctx context.Context, loc Location, window HourWindow, now time.Time) (*Forecast, error)
}

// RecommendationRenderer turns a structured day report into deliverable
// prose. The evaluation pipeline depends on this interface only, so a
// template-backed renderer and a generative one are interchangeable.
type RecommendationRenderer interface {
	Render(report *DayReport) (*Recommendation, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
