package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// maxForecastBodyBytes bounds how much of an upstream payload is read.
// NOAA's hourly feed is the largest at roughly 100KB.
const maxForecastBodyBytes = 4 << 20

// maxErrorSnippetBytes bounds how much of a rejected payload lands in logs.
const maxErrorSnippetBytes = 2048

// fetchWeatherJSON performs a GET through the resilient client and decodes
// the JSON payload into out. Transport-level failures (retry exhaustion,
// open breaker, timeouts) arrive pre-mapped from BaseClient.Do and pass
// through unchanged. Terminal rejections and shape mismatches are logged
// with the offending payload context and mapped here; neither is retried.
func fetchWeatherJSON(
	ctx context.Context,
	base *BaseClient,
	logger *slog.Logger,
	source types.ProviderID,
	reqURL string,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to create %s request", source),
			err,
		)
	}

	resp, err := base.Do(req)
	if err != nil {
		if _, ok := err.(*types.AppError); ok {
			return err
		}
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s request failed", source),
			err,
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxForecastBodyBytes))
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("failed to read %s response body", source),
			err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("provider request rejected",
			"source", source,
			"status", resp.StatusCode,
			"url", redactURL(req.URL),
			"body", payloadSnippet(body),
		)
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamRejected,
			fmt.Sprintf("%s returned status %d", source, resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}

	if err := json.Unmarshal(body, out); err != nil {
		logger.Warn("provider payload did not match expected shape",
			"source", source,
			"url", redactURL(req.URL),
			"error", err,
			"body", payloadSnippet(body),
		)
		return types.NewAppError(
			types.ErrCodeUpstreamRejected,
			fmt.Sprintf("%s returned a malformed payload", source),
			err,
		)
	}

	return nil
}

// payloadSnippet trims an upstream body for log output.
func payloadSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippetBytes {
		s = s[:maxErrorSnippetBytes] + "...(truncated)"
	}
	return s
}

// sensitiveQueryKeys are credential-bearing query parameters. The weather
// APIs authenticate via the query string rather than headers, and
// url.Redacted only strips userinfo, so these need explicit masking.
var sensitiveQueryKeys = map[string]struct{}{
	"appid":  {},
	"key":    {},
	"apikey": {},
}

// redactURL returns a log-safe rendering of the request URL with credential
// query parameters masked.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	masked := false
	for k := range q {
		if _, ok := sensitiveQueryKeys[strings.ToLower(k)]; ok {
			q.Set(k, "REDACTED")
			masked = true
		}
	}
	if !masked {
		return u.Redacted()
	}
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.Redacted()
}

// noForecast wraps types.ErrNoForecast with provider context. Every "no
// usable data" outcome funnels through here so callers can test the one
// sentinel regardless of which adapter produced it.
func noForecast(source types.ProviderID, reason string) error {
	return fmt.Errorf("%s: %s: %w", source, reason, types.ErrNoForecast)
}

// resolveForecast runs the shared window resolution over normalized entries
// and assembles the final forecast. All four adapters share this tail; they
// differ only in request construction and payload normalization.
func resolveForecast(
	logger *slog.Logger,
	source types.ProviderID,
	loc types.Location,
	window types.HourWindow,
	now time.Time,
	policy forecast.ResolverPolicy,
	entries []forecast.Entry,
) (*types.Forecast, error) {
	if len(entries) == 0 {
		logger.Info("provider returned no usable entries",
			"source", source,
			"location", loc.Name,
		)
		return nil, noForecast(source, "no usable entries in payload")
	}

	res := forecast.Resolve(entries, window, now, policy)
	if res.Entry == nil {
		logger.Info("no forecast entry matched the requested window",
			"source", source,
			"location", loc.Name,
			"window", window.String(),
			"entries", len(entries),
		)
		return nil, noForecast(source, "no entry within requested window")
	}

	fc := forecast.BuildForecast(source, res)
	if res.UsedFallback && res.OffsetHours != nil {
		logger.Info("forecast window fallback used",
			"source", source,
			"location", loc.Name,
			"window", window.String(),
			"offset_hours", *res.OffsetHours,
		)
	}

	logger.Debug("forecast resolved",
		"source", source,
		"location", loc.Name,
		"instant", fc.Instant,
		"rain_probability_pct", fc.RainProbability,
		"wind_kph", fc.WindSpeedKPH,
		"temp_c", fc.TemperatureC,
	)

	return fc, nil
}
