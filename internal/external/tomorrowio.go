package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// tomorrowIOAPIBase is the default Tomorrow.io API base URL.
// Overridable in tests via TomorrowIOConfig.BaseURL.
const tomorrowIOAPIBase = "https://api.tomorrow.io/v4"

// tomorrowIOFields is the field list requested from the hourly timeline.
const tomorrowIOFields = "precipitationProbability,precipitationIntensity,temperature,windSpeed"

// rainProbabilityFloor is the probability (percent) at or above which a
// Tomorrow.io hour counts as rain even with zero measured intensity.
const rainProbabilityFloor = 30.0

// TomorrowIOConfig holds the configuration for creating a TomorrowIOClient.
type TomorrowIOConfig struct {
	APIKey   types.SecretString
	BaseURL  string // Override for testing; defaults to tomorrowIOAPIBase
	Enabled  bool
	Fallback forecast.ResolverPolicy
	Logger   *slog.Logger
}

// TomorrowIOClient implements types.ForecastProvider against the Tomorrow.io
// v4 hourly forecast timeline.
type TomorrowIOClient struct {
	base     *BaseClient
	apiKey   types.SecretString
	baseURL  string
	enabled  bool
	fallback forecast.ResolverPolicy
	logger   *slog.Logger
}

// NewTomorrowIOClient creates a TomorrowIOClient over a pre-configured
// BaseClient.
func NewTomorrowIOClient(base *BaseClient, cfg TomorrowIOConfig) *TomorrowIOClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = tomorrowIOAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TomorrowIOClient{
		base:     base,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		enabled:  cfg.Enabled,
		fallback: cfg.Fallback,
		logger:   logger,
	}
}

// SourceID returns the stable identifier for this provider.
func (c *TomorrowIOClient) SourceID() types.ProviderID {
	return types.ProviderTomorrowIO
}

// Fetch retrieves the hourly timeline and resolves the best entry for the
// hour window. Tomorrow.io metric units report wind in m/s, which is
// normalized to km/h here. An hour counts as rain when the probability
// reaches rainProbabilityFloor or any intensity is measured.
func (c *TomorrowIOClient) Fetch(
	ctx context.Context,
	loc types.Location,
	window types.HourWindow,
	now time.Time,
) (*types.Forecast, error) {
	if !c.enabled {
		c.logger.Info("provider disabled by configuration",
			"source", c.SourceID(),
			"location", loc.Name,
		)
		return nil, noForecast(c.SourceID(), "provider disabled")
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%v,%v", loc.Lat, loc.Lon))
	params.Set("apikey", c.apiKey.Unmask())
	params.Set("timesteps", "1h")
	params.Set("units", "metric")
	params.Set("fields", tomorrowIOFields)

	reqURL := c.baseURL + "/weather/forecast?" + params.Encode()

	var payload tomorrowIOResponse
	if err := fetchWeatherJSON(ctx, c.base, c.logger, c.SourceID(), reqURL, &payload); err != nil {
		return nil, err
	}

	return resolveForecast(c.logger, c.SourceID(), loc, window, now, c.fallback, c.normalize(payload))
}

// ---------------------------------------------------------------------------
// Response Shape
// ---------------------------------------------------------------------------

// tomorrowIOResponse is the subset of the forecast payload this adapter
// consumes. Hour timestamps arrive as RFC 3339 UTC strings.
type tomorrowIOResponse struct {
	Timelines struct {
		Hourly []tomorrowIOHour `json:"hourly"`
	} `json:"timelines"`
}

type tomorrowIOHour struct {
	Time   string            `json:"time"`
	Values *tomorrowIOValues `json:"values"`
}

type tomorrowIOValues struct {
	PrecipitationProbability *float64 `json:"precipitationProbability"`
	PrecipitationIntensity   *float64 `json:"precipitationIntensity"`
	Temperature              *float64 `json:"temperature"`
	WindSpeed                *float64 `json:"windSpeed"`
}

// normalize converts hourly timeline points into resolver entries, preserving
// upstream order. Timestamp, rain probability, temperature, and wind speed
// are required; an hour missing any of them, or carrying an unparseable
// timestamp, is dropped. Intensity defaults to zero when absent.
func (c *TomorrowIOClient) normalize(payload tomorrowIOResponse) []forecast.Entry {
	hours := payload.Timelines.Hourly
	entries := make([]forecast.Entry, 0, len(hours))
	for _, hour := range hours {
		if hour.Values == nil ||
			hour.Values.PrecipitationProbability == nil ||
			hour.Values.Temperature == nil ||
			hour.Values.WindSpeed == nil {
			c.logger.Debug("skipping hour with missing required fields",
				"source", c.SourceID(),
			)
			continue
		}

		instant, err := time.Parse(time.RFC3339, hour.Time)
		if err != nil {
			c.logger.Debug("skipping hour with unparseable timestamp",
				"source", c.SourceID(),
				"time", hour.Time,
			)
			continue
		}

		prob := *hour.Values.PrecipitationProbability
		intensity := 0.0
		if hour.Values.PrecipitationIntensity != nil {
			intensity = *hour.Values.PrecipitationIntensity
		}

		entries = append(entries, forecast.Entry{
			Instant:         instant,
			RainProbability: prob,
			PrecipitationMM: intensity,
			WindSpeedKPH:    types.MPSToKPH(*hour.Values.WindSpeed),
			TemperatureC:    *hour.Values.Temperature,
			WillRain:        prob >= rainProbabilityFloor || intensity > 0,
		})
	}
	return entries
}

// Compile-time assertion that TomorrowIOClient satisfies ForecastProvider.
var _ types.ForecastProvider = (*TomorrowIOClient)(nil)
