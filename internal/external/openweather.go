package external

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// openWeatherAPIBase is the default OpenWeather API base URL.
// Overridable in tests via OpenWeatherConfig.BaseURL.
const openWeatherAPIBase = "https://api.openweathermap.org/data/2.5"

// OpenWeatherConfig holds the configuration for creating an OpenWeatherClient.
type OpenWeatherConfig struct {
	APIKey   types.SecretString
	BaseURL  string // Override for testing; defaults to openWeatherAPIBase
	Enabled  bool
	Fallback forecast.ResolverPolicy
	Logger   *slog.Logger
}

// OpenWeatherClient implements types.ForecastProvider against the OpenWeather
// 5-day/3-hour forecast API. All requests run through BaseClient for circuit
// breaking, retries, and error mapping.
type OpenWeatherClient struct {
	base     *BaseClient
	apiKey   types.SecretString
	baseURL  string
	enabled  bool
	fallback forecast.ResolverPolicy
	logger   *slog.Logger
}

// NewOpenWeatherClient creates an OpenWeatherClient over a pre-configured
// BaseClient.
func NewOpenWeatherClient(base *BaseClient, cfg OpenWeatherConfig) *OpenWeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openWeatherAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenWeatherClient{
		base:     base,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		enabled:  cfg.Enabled,
		fallback: cfg.Fallback,
		logger:   logger,
	}
}

// SourceID returns the stable identifier for this provider.
func (c *OpenWeatherClient) SourceID() types.ProviderID {
	return types.ProviderOpenWeather
}

// Fetch retrieves the 3-hourly forecast series for the location and resolves
// the best entry for the hour window. OpenWeather reports wind in m/s and
// rain probability as a 0..1 fraction; both are normalized here.
func (c *OpenWeatherClient) Fetch(
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
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey.Unmask())
	params.Set("units", "metric")

	reqURL := c.baseURL + "/forecast?" + params.Encode()

	var payload openWeatherResponse
	if err := fetchWeatherJSON(ctx, c.base, c.logger, c.SourceID(), reqURL, &payload); err != nil {
		return nil, err
	}

	return resolveForecast(c.logger, c.SourceID(), loc, window, now, c.fallback, c.normalize(payload))
}

// ---------------------------------------------------------------------------
// Response Shape
// ---------------------------------------------------------------------------

// openWeatherResponse is the subset of the forecast payload this adapter
// consumes. Pointer fields make absent keys detectable so slots missing
// required data are skipped rather than silently defaulted.
type openWeatherResponse struct {
	List []openWeatherSlot `json:"list"`
}

type openWeatherSlot struct {
	Dt   *int64           `json:"dt"`
	Main *openWeatherMain `json:"main"`
	Wind *openWeatherWind `json:"wind"`
	Pop  *float64         `json:"pop"`
	Rain *openWeatherRain `json:"rain"`
}

type openWeatherMain struct {
	Temp *float64 `json:"temp"`
}

type openWeatherWind struct {
	Speed *float64 `json:"speed"`
}

type openWeatherRain struct {
	ThreeHour *float64 `json:"3h"`
}

// normalize converts raw 3-hour slots into resolver entries, preserving
// upstream order. Timestamp, rain probability, temperature, and wind speed
// are required; a slot missing any of them is dropped. The rain volume key
// is legitimately absent on dry slots and defaults to zero.
func (c *OpenWeatherClient) normalize(payload openWeatherResponse) []forecast.Entry {
	entries := make([]forecast.Entry, 0, len(payload.List))
	for _, slot := range payload.List {
		if slot.Dt == nil || slot.Pop == nil ||
			slot.Main == nil || slot.Main.Temp == nil ||
			slot.Wind == nil || slot.Wind.Speed == nil {
			c.logger.Debug("skipping slot with missing required fields",
				"source", c.SourceID(),
			)
			continue
		}

		precip := 0.0
		if slot.Rain != nil && slot.Rain.ThreeHour != nil {
			precip = *slot.Rain.ThreeHour
		}

		entries = append(entries, forecast.Entry{
			Instant:         time.Unix(*slot.Dt, 0).UTC(),
			RainProbability: *slot.Pop * 100,
			PrecipitationMM: precip,
			WindSpeedKPH:    types.MPSToKPH(*slot.Wind.Speed),
			TemperatureC:    *slot.Main.Temp,
			WillRain:        precip > 0,
		})
	}
	return entries
}

// Compile-time assertion that OpenWeatherClient satisfies ForecastProvider.
var _ types.ForecastProvider = (*OpenWeatherClient)(nil)
