package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ridecast/internal/types"
)

func newTestNOAA(t *testing.T, serverURL string, enabled bool) *NOAAClient {
	t.Helper()
	return NewNOAAClient(newAdapterBase(t), NOAAConfig{
		BaseURL:  serverURL,
		Enabled:  enabled,
		Fallback: testFallbackPolicy,
		Logger:   discardLogger(),
	})
}

// noaaPeriodJSON renders one hourly period. pop is raw JSON so tests can
// inject null.
func noaaPeriodJSON(at time.Time, pop string, temp float64, unit, wind, short string) string {
	return fmt.Sprintf(
		`{"startTime": %q, "temperature": %v, "temperatureUnit": %q, "windSpeed": %q, "shortForecast": %q, "probabilityOfPrecipitation": {"unitCode": "wmoUnit:percent", "value": %s}}`,
		at.Format(time.RFC3339), temp, unit, wind, short, pop,
	)
}

// newNOAAServer serves the two-step flow: the points endpoint hands back a
// forecastHourly URL pointing at the same server, which then serves the
// provided periods payload.
func newNOAAServer(t *testing.T, periodsJSON string) *httptest.Server {
	t.Helper()

	const hourlyPath = "/gridpoints/OKX/33,35/forecast/hourly"

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "RideCast-Test/1.0" {
			t.Errorf("expected identifying User-Agent on %s, got %q", r.URL.Path, ua)
		}
		switch r.URL.Path {
		case "/points/40.7,-74":
			fmt.Fprintf(w, `{"properties": {"forecastHourly": %q}}`, server.URL+hourlyPath)
		case hourlyPath:
			fmt.Fprintf(w, `{"properties": {"periods": [%s]}}`, periodsJSON)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server
}

func TestNOAAFetch_Success(t *testing.T) {
	server := newNOAAServer(t,
		noaaPeriodJSON(testDay.Add(8*time.Hour), "40", 50, "F", "10 mph", "Light Rain")+","+
			noaaPeriodJSON(testDay.Add(9*time.Hour), "10", 52, "F", "5 mph", "Partly Sunny"),
	)
	defer server.Close()

	client := newTestNOAA(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}

	if fc.Source != types.ProviderNOAA {
		t.Errorf("expected source noaa, got %s", fc.Source)
	}
	if !fc.Instant.Equal(testDay.Add(8 * time.Hour)) {
		t.Errorf("expected the 08:00 period, got %v", fc.Instant)
	}
	if !approxEqual(fc.RainProbability, 40) {
		t.Errorf("expected probability 40, got %v", fc.RainProbability)
	}
	if !approxEqual(fc.TemperatureC, 10) {
		t.Errorf("expected 50F converted to 10C, got %v", fc.TemperatureC)
	}
	if !approxEqual(fc.WindSpeedKPH, types.MPHToKPH(10)) {
		t.Errorf("expected wind %v kph, got %v", types.MPHToKPH(10), fc.WindSpeedKPH)
	}
	if !fc.WillRain {
		t.Error("expected WillRain true for a rainy forecast text")
	}
	// The feed carries no quantitative precipitation.
	if fc.PrecipitationMM != 0 {
		t.Errorf("expected 0mm precipitation, got %v", fc.PrecipitationMM)
	}
}

func TestNOAAFetch_WindRangeAndCelsiusPassthrough(t *testing.T) {
	server := newNOAAServer(t,
		noaaPeriodJSON(testDay.Add(8*time.Hour), "15", 12, "C", "10 to 15 mph", "Mostly Cloudy"),
	)
	defer server.Close()

	client := newTestNOAA(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}

	// Ranges take the low end.
	if !approxEqual(fc.WindSpeedKPH, types.MPHToKPH(10)) {
		t.Errorf("expected wind %v kph from range, got %v", types.MPHToKPH(10), fc.WindSpeedKPH)
	}
	if !approxEqual(fc.TemperatureC, 12) {
		t.Errorf("expected Celsius temperature untouched, got %v", fc.TemperatureC)
	}
	if fc.WillRain {
		t.Error("expected WillRain false for a dry forecast text")
	}
}

func TestNOAAFetch_NullProbabilitySkipsPeriod(t *testing.T) {
	server := newNOAAServer(t,
		noaaPeriodJSON(testDay.Add(8*time.Hour), "null", 50, "F", "10 mph", "Sunny")+","+
			noaaPeriodJSON(testDay.Add(9*time.Hour), "20", 51, "F", "10 mph", "Sunny"),
	)
	defer server.Close()

	client := newTestNOAA(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}
	if !fc.Instant.Equal(testDay.Add(9 * time.Hour)) {
		t.Errorf("expected the period with a measured probability, got %v", fc.Instant)
	}
}

func TestNOAAFetch_UnparseableWindSkipsPeriod(t *testing.T) {
	server := newNOAAServer(t,
		noaaPeriodJSON(testDay.Add(8*time.Hour), "20", 50, "F", "calm", "Sunny")+","+
			noaaPeriodJSON(testDay.Add(9*time.Hour), "20", 51, "F", "5 mph", "Sunny"),
	)
	defer server.Close()

	client := newTestNOAA(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}
	if !fc.Instant.Equal(testDay.Add(9 * time.Hour)) {
		t.Errorf("expected the period with parseable wind, got %v", fc.Instant)
	}
}

func TestNOAAFetch_MissingHourlyURLReturnsNoForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {}}`))
	}))
	defer server.Close()

	client := newTestNOAA(t, server.URL, true)

	_, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if !errors.Is(err, types.ErrNoForecast) {
		t.Errorf("expected ErrNoForecast without an hourly feed URL, got: %v", err)
	}
}

func TestNOAAFetch_DisabledSkipsNetworkCall(t *testing.T) {
	client := newTestNOAA(t, "http://127.0.0.1:0", false)

	_, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if !errors.Is(err, types.ErrNoForecast) {
		t.Errorf("expected ErrNoForecast from a disabled provider, got: %v", err)
	}
}

func TestParseWindSpeedKPH(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{name: "simple mph", raw: "10 mph", want: types.MPHToKPH(10)},
		{name: "range takes low end", raw: "10 to 15 mph", want: types.MPHToKPH(10)},
		{name: "km/h passthrough", raw: "15 km/h", want: 15},
		{name: "kph passthrough", raw: "8 kph", want: 8},
		{name: "bare number has no unit", raw: "10", wantErr: true},
		{name: "non-numeric value", raw: "calm mph", wantErr: true},
		{name: "unknown unit", raw: "10 knots", wantErr: true},
		{name: "empty string", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWindSpeedKPH(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.raw, err)
			}
			if !approxEqual(got, tt.want) {
				t.Errorf("parseWindSpeedKPH(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
