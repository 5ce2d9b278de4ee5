package external

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// testFallbackPolicy is the default resolver policy used by adapter tests.
var testFallbackPolicy = forecast.ResolverPolicy{EnableFallback: true, FallbackWindowHours: 3}

// discardLogger returns a logger for tests that do not inspect log output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newAdapterBase creates a BaseClient for adapter tests: single attempt, no
// sleeps, so failures are deterministic and fast.
func newAdapterBase(t *testing.T) *BaseClient {
	t.Helper()
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-adapter",
		RetryPolicy{Enabled: false},
		"RideCast-Test/1.0",
		WithSleepFunc(noopSleep),
	)
}

func TestFetchWeatherJSON_DecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"hourly","count":3}`))
	}))
	defer server.Close()

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := fetchWeatherJSON(context.Background(), newAdapterBase(t), discardLogger(), types.ProviderOpenWeather, server.URL, &out)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if out.Name != "hourly" || out.Count != 3 {
		t.Errorf("payload not decoded: %+v", out)
	}
}

func TestFetchWeatherJSON_RejectedStatusMapsToAppError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer server.Close()

	var out struct{}
	err := fetchWeatherJSON(context.Background(), newAdapterBase(t), discardLogger(), types.ProviderWeatherAPI, server.URL, &out)
	if err == nil {
		t.Fatal("expected error for 401 response, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamRejected {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamRejected, appErr.Code)
	}
	if status, ok := appErr.Details["status"].(int); !ok || status != http.StatusUnauthorized {
		t.Errorf("expected status detail 401, got %v", appErr.Details["status"])
	}
}

func TestFetchWeatherJSON_MalformedPayloadMapsToAppError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer server.Close()

	var out struct{}
	err := fetchWeatherJSON(context.Background(), newAdapterBase(t), discardLogger(), types.ProviderNOAA, server.URL, &out)
	if err == nil {
		t.Fatal("expected error for malformed payload, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamRejected {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamRejected, appErr.Code)
	}
}

func TestFetchWeatherJSON_TransportErrorPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var out struct{}
	err := fetchWeatherJSON(context.Background(), newAdapterBase(t), discardLogger(), types.ProviderTomorrowIO, server.URL, &out)
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamProvider {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamProvider, appErr.Code)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "masks appid",
			in:   "https://api.openweathermap.org/data/2.5/forecast?appid=secret123&lat=40.7&units=metric",
			want: "https://api.openweathermap.org/data/2.5/forecast?appid=REDACTED&lat=40.7&units=metric",
		},
		{
			name: "masks key",
			in:   "https://api.weatherapi.com/v1/forecast.json?days=1&key=topsecret",
			want: "https://api.weatherapi.com/v1/forecast.json?days=1&key=REDACTED",
		},
		{
			name: "masks apikey",
			in:   "https://api.tomorrow.io/v4/weather/forecast?apikey=tok&timesteps=1h",
			want: "https://api.tomorrow.io/v4/weather/forecast?apikey=REDACTED&timesteps=1h",
		},
		{
			name: "leaves non-sensitive params",
			in:   "https://api.weather.gov/points/40.7,-74.0",
			want: "https://api.weather.gov/points/40.7,-74.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			if err != nil {
				t.Fatalf("bad test URL: %v", err)
			}
			if got := redactURL(u); got != tt.want {
				t.Errorf("redactURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPayloadSnippet_TruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("x", maxErrorSnippetBytes+500)
	got := payloadSnippet([]byte(long))

	if !strings.HasSuffix(got, "...(truncated)") {
		t.Error("expected truncation marker on long payload")
	}
	if len(got) > maxErrorSnippetBytes+len("...(truncated)") {
		t.Errorf("snippet too long: %d bytes", len(got))
	}

	short := "short body"
	if got := payloadSnippet([]byte(short + "\n")); got != short {
		t.Errorf("expected trimmed short body, got %q", got)
	}
}

func TestNoForecast_WrapsSentinel(t *testing.T) {
	err := noForecast(types.ProviderNOAA, "no entry within requested window")

	if !errors.Is(err, types.ErrNoForecast) {
		t.Error("expected noForecast to wrap types.ErrNoForecast")
	}
	if !strings.Contains(err.Error(), "noaa") {
		t.Errorf("expected provider context in message, got %q", err.Error())
	}
}
