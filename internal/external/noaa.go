package external

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// noaaAPIBase is the default NOAA / National Weather Service API base URL.
// Overridable in tests via NOAAConfig.BaseURL. NOAA requires no API key but
// rejects requests without a User-Agent identifying the caller; the
// BaseClient injects it.
const noaaAPIBase = "https://api.weather.gov"

// NOAAConfig holds the configuration for creating a NOAAClient.
type NOAAConfig struct {
	BaseURL  string // Override for testing; defaults to noaaAPIBase
	Enabled  bool
	Fallback forecast.ResolverPolicy
	Logger   *slog.Logger
}

// NOAAClient implements types.ForecastProvider against the NWS API. Unlike
// the other providers it needs two sequential calls: the points endpoint
// resolves coordinates to a gridpoint, whose response carries the URL of the
// hourly forecast feed.
type NOAAClient struct {
	base     *BaseClient
	baseURL  string
	enabled  bool
	fallback forecast.ResolverPolicy
	logger   *slog.Logger
}

// NewNOAAClient creates a NOAAClient over a pre-configured BaseClient.
func NewNOAAClient(base *BaseClient, cfg NOAAConfig) *NOAAClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = noaaAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &NOAAClient{
		base:     base,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		enabled:  cfg.Enabled,
		fallback: cfg.Fallback,
		logger:   logger,
	}
}

// SourceID returns the stable identifier for this provider.
func (c *NOAAClient) SourceID() types.ProviderID {
	return types.ProviderNOAA
}

// Fetch resolves the gridpoint for the coordinates, retrieves its hourly
// forecast feed, and resolves the best entry for the hour window. The feed
// reports temperature in either unit, wind as prose ("10 mph", "10 to 15
// mph"), and no precipitation amounts at all.
func (c *NOAAClient) Fetch(
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

	// Step 1: coordinates to gridpoint metadata.
	pointURL := fmt.Sprintf("%s/points/%v,%v", c.baseURL, loc.Lat, loc.Lon)

	var point noaaPointResponse
	if err := fetchWeatherJSON(ctx, c.base, c.logger, c.SourceID(), pointURL, &point); err != nil {
		return nil, err
	}

	if point.Properties == nil || point.Properties.ForecastHourly == "" {
		c.logger.Warn("points response carried no hourly forecast URL",
			"source", c.SourceID(),
			"location", loc.Name,
		)
		return nil, noForecast(c.SourceID(), "gridpoint lookup returned no hourly feed")
	}

	// Step 2: the hourly series from the derived endpoint.
	var hourly noaaForecastResponse
	if err := fetchWeatherJSON(ctx, c.base, c.logger, c.SourceID(), point.Properties.ForecastHourly, &hourly); err != nil {
		return nil, err
	}

	if hourly.Properties == nil {
		return nil, noForecast(c.SourceID(), "hourly feed carried no periods")
	}

	return resolveForecast(c.logger, c.SourceID(), loc, window, now, c.fallback, c.normalize(hourly.Properties.Periods))
}

// ---------------------------------------------------------------------------
// Response Shapes
// ---------------------------------------------------------------------------

type noaaPointResponse struct {
	Properties *noaaPointProperties `json:"properties"`
}

type noaaPointProperties struct {
	ForecastHourly string `json:"forecastHourly"`
}

type noaaForecastResponse struct {
	Properties *noaaForecastProperties `json:"properties"`
}

type noaaForecastProperties struct {
	Periods []noaaPeriod `json:"periods"`
}

type noaaPeriod struct {
	StartTime                  string    `json:"startTime"`
	Temperature                *float64  `json:"temperature"`
	TemperatureUnit            string    `json:"temperatureUnit"`
	WindSpeed                  string    `json:"windSpeed"`
	ShortForecast              *string   `json:"shortForecast"`
	ProbabilityOfPrecipitation *noaaUnit `json:"probabilityOfPrecipitation"`
}

// noaaUnit is NWS's quantitative-value wrapper. Value is null when the
// station has no measurement for the period.
type noaaUnit struct {
	Value *float64 `json:"value"`
}

// normalize converts hourly periods into resolver entries, preserving
// upstream order. Timestamp, precipitation probability, temperature, wind
// speed, and the forecast text are required; a period missing any of them
// (including a null probability value) is dropped. The feed carries no
// precipitation amounts, so PrecipitationMM is always zero and rain
// detection falls to the forecast text.
func (c *NOAAClient) normalize(periods []noaaPeriod) []forecast.Entry {
	entries := make([]forecast.Entry, 0, len(periods))
	for _, period := range periods {
		if period.Temperature == nil || period.ShortForecast == nil ||
			period.ProbabilityOfPrecipitation == nil || period.ProbabilityOfPrecipitation.Value == nil {
			c.logger.Debug("skipping period with missing required fields",
				"source", c.SourceID(),
			)
			continue
		}

		instant, err := time.Parse(time.RFC3339, period.StartTime)
		if err != nil {
			c.logger.Debug("skipping period with unparseable start time",
				"source", c.SourceID(),
				"start_time", period.StartTime,
			)
			continue
		}

		windKPH, err := parseWindSpeedKPH(period.WindSpeed)
		if err != nil {
			c.logger.Debug("skipping period with unparseable wind speed",
				"source", c.SourceID(),
				"wind_speed", period.WindSpeed,
			)
			continue
		}

		tempC := *period.Temperature
		if strings.EqualFold(period.TemperatureUnit, "F") {
			tempC = types.FahrenheitToCelsius(tempC)
		}

		entries = append(entries, forecast.Entry{
			Instant:         instant,
			RainProbability: *period.ProbabilityOfPrecipitation.Value,
			PrecipitationMM: 0,
			WindSpeedKPH:    windKPH,
			TemperatureC:    tempC,
			WillRain:        strings.Contains(strings.ToLower(*period.ShortForecast), "rain"),
		})
	}
	return entries
}

// parseWindSpeedKPH converts NWS prose wind speed to km/h. Ranges like
// "10 to 15 mph" use the first numeric token; the unit is the last token.
func parseWindSpeedKPH(raw string) (float64, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return 0, fmt.Errorf("unrecognized wind speed %q", raw)
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized wind speed %q", raw)
	}

	switch strings.ToLower(fields[len(fields)-1]) {
	case "mph":
		return types.MPHToKPH(value), nil
	case "km/h", "kph":
		return value, nil
	default:
		return 0, fmt.Errorf("unrecognized wind speed unit in %q", raw)
	}
}

// Compile-time assertion that NOAAClient satisfies ForecastProvider.
var _ types.ForecastProvider = (*NOAAClient)(nil)
