package external

import (
	"context"
	"log/slog"
	"time"

	"ridecast/internal/types"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stub implementations allow the application to boot in local/test mode
// without requiring real external service credentials. They log all
// actions and return predictable, safe default values.
// ---------------------------------------------------------------------------

// StubForecastProvider implements types.ForecastProvider by returning a
// deterministic mild forecast for the start of the requested window. Used
// when config.IsTestMode is true or APP_ENV=local.
type StubForecastProvider struct {
	id     types.ProviderID
	logger *slog.Logger
}

// NewStubForecastProvider creates a new StubForecastProvider.
func NewStubForecastProvider(id types.ProviderID, logger *slog.Logger) *StubForecastProvider {
	return &StubForecastProvider{id: id, logger: logger}
}

// SourceID returns the stable identifier for this provider.
func (s *StubForecastProvider) SourceID() types.ProviderID {
	return s.id
}

// Fetch returns clear-sky conditions pinned to the window start on the
// current day, so every downstream decision path sees rideable weather.
func (s *StubForecastProvider) Fetch(
	ctx context.Context,
	loc types.Location,
	window types.HourWindow,
	now time.Time,
) (*types.Forecast, error) {
	s.logger.InfoContext(ctx, "stub: Fetch called",
		"source", s.id,
		"location", loc.Name,
		"window", window.String(),
	)

	instant := time.Date(now.Year(), now.Month(), now.Day(), window.StartHour, 0, 0, 0, now.Location())

	return &types.Forecast{
		Source:          s.id,
		Instant:         instant,
		WillRain:        false,
		RainProbability: 5,
		PrecipitationMM: 0,
		WindSpeedKPH:    10,
		TemperatureC:    21,
	}, nil
}

// StubEmailProvider implements EmailProvider by logging the message instead
// of delivering it. Used when config.IsTestMode is true or APP_ENV=local.
type StubEmailProvider struct {
	logger *slog.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

// Send logs the would-be delivery and succeeds.
func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) error {
	s.logger.InfoContext(ctx, "stub: Send called",
		"to", types.RedactEmail(input.To),
		"subject", input.Subject,
		"body_bytes", len(input.BodyText),
	)
	return nil
}

// Compile-time assertions that stubs satisfy their interfaces.
var (
	_ types.ForecastProvider = (*StubForecastProvider)(nil)
	_ EmailProvider          = (*StubEmailProvider)(nil)
)
