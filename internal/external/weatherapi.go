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

// weatherAPIBase is the default WeatherAPI.com base URL.
// Overridable in tests via WeatherAPIConfig.BaseURL.
const weatherAPIBase = "https://api.weatherapi.com/v1"

// WeatherAPIConfig holds the configuration for creating a WeatherAPIClient.
type WeatherAPIConfig struct {
	APIKey   types.SecretString
	BaseURL  string // Override for testing; defaults to weatherAPIBase
	Enabled  bool
	Fallback forecast.ResolverPolicy
	Logger   *slog.Logger
}

// WeatherAPIClient implements types.ForecastProvider against the
// WeatherAPI.com forecast endpoint, which returns a full hourly series for
// the requested day in a single call.
type WeatherAPIClient struct {
	base     *BaseClient
	apiKey   types.SecretString
	baseURL  string
	enabled  bool
	fallback forecast.ResolverPolicy
	logger   *slog.Logger
}

// NewWeatherAPIClient creates a WeatherAPIClient over a pre-configured
// BaseClient.
func NewWeatherAPIClient(base *BaseClient, cfg WeatherAPIConfig) *WeatherAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = weatherAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WeatherAPIClient{
		base:     base,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		enabled:  cfg.Enabled,
		fallback: cfg.Fallback,
		logger:   logger,
	}
}

// SourceID returns the stable identifier for this provider.
func (c *WeatherAPIClient) SourceID() types.ProviderID {
	return types.ProviderWeatherAPI
}

// Fetch retrieves today's hourly forecast and resolves the best entry for
// the hour window. WeatherAPI already reports km/h, Celsius, and percentage
// probabilities; hours carry an epoch timestamp, so no local-time parsing
// is involved.
func (c *WeatherAPIClient) Fetch(
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
	params.Set("key", c.apiKey.Unmask())
	params.Set("q", fmt.Sprintf("%v,%v", loc.Lat, loc.Lon))
	params.Set("days", "1")
	params.Set("aqi", "no")
	params.Set("alerts", "no")

	reqURL := c.baseURL + "/forecast.json?" + params.Encode()

	var payload weatherAPIResponse
	if err := fetchWeatherJSON(ctx, c.base, c.logger, c.SourceID(), reqURL, &payload); err != nil {
		return nil, err
	}

	return resolveForecast(c.logger, c.SourceID(), loc, window, now, c.fallback, c.normalize(payload))
}

// ---------------------------------------------------------------------------
// Response Shape
// ---------------------------------------------------------------------------

// weatherAPIResponse is the subset of the forecast.json payload this adapter
// consumes. Pointer fields make absent keys detectable.
type weatherAPIResponse struct {
	Forecast struct {
		ForecastDay []weatherAPIDay `json:"forecastday"`
	} `json:"forecast"`
}

type weatherAPIDay struct {
	Hour []weatherAPIHour `json:"hour"`
}

type weatherAPIHour struct {
	TimeEpoch    *int64   `json:"time_epoch"`
	WillItRain   *int     `json:"will_it_rain"`
	ChanceOfRain *float64 `json:"chance_of_rain"`
	PrecipMM     *float64 `json:"precip_mm"`
	WindKPH      *float64 `json:"wind_kph"`
	TempC        *float64 `json:"temp_c"`
}

// normalize converts the first forecast day's hours into resolver entries,
// preserving upstream order. Timestamp, rain flag, rain probability,
// temperature, and wind speed are required; an hour missing any of them is
// dropped. Precipitation amount defaults to zero when absent.
func (c *WeatherAPIClient) normalize(payload weatherAPIResponse) []forecast.Entry {
	if len(payload.Forecast.ForecastDay) == 0 {
		return nil
	}

	hours := payload.Forecast.ForecastDay[0].Hour
	entries := make([]forecast.Entry, 0, len(hours))
	for _, hour := range hours {
		if hour.TimeEpoch == nil || hour.WillItRain == nil || hour.ChanceOfRain == nil ||
			hour.TempC == nil || hour.WindKPH == nil {
			c.logger.Debug("skipping hour with missing required fields",
				"source", c.SourceID(),
			)
			continue
		}

		precip := 0.0
		if hour.PrecipMM != nil {
			precip = *hour.PrecipMM
		}

		entries = append(entries, forecast.Entry{
			Instant:         time.Unix(*hour.TimeEpoch, 0).UTC(),
			RainProbability: *hour.ChanceOfRain,
			PrecipitationMM: precip,
			WindSpeedKPH:    *hour.WindKPH,
			TemperatureC:    *hour.TempC,
			WillRain:        *hour.WillItRain == 1,
		})
	}
	return entries
}

// Compile-time assertion that WeatherAPIClient satisfies ForecastProvider.
var _ types.ForecastProvider = (*WeatherAPIClient)(nil)
