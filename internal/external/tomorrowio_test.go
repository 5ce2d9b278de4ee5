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

func newTestTomorrowIO(t *testing.T, serverURL string, enabled bool) *TomorrowIOClient {
	t.Helper()
	return NewTomorrowIOClient(newAdapterBase(t), TomorrowIOConfig{
		APIKey:   "tio-test-key",
		BaseURL:  serverURL,
		Enabled:  enabled,
		Fallback: testFallbackPolicy,
		Logger:   discardLogger(),
	})
}

func tomorrowIOHourJSON(at time.Time, prob, intensity, temp, wind float64) string {
	return fmt.Sprintf(
		`{"time": %q, "values": {"precipitationProbability": %v, "precipitationIntensity": %v, "temperature": %v, "windSpeed": %v}}`,
		at.Format(time.RFC3339), prob, intensity, temp, wind,
	)
}

func TestTomorrowIOFetch_Success(t *testing.T) {
	payload := fmt.Sprintf(`{"timelines": {"hourly": [%s, %s]}}`,
		tomorrowIOHourJSON(testDay.Add(8*time.Hour), 45, 0, 11, 10),
		tomorrowIOHourJSON(testDay.Add(15*time.Hour), 5, 0, 19, 3),
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather/forecast" {
			t.Errorf("expected path /weather/forecast, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("location") != "40.7,-74" {
			t.Errorf("expected location=40.7,-74, got %s", q.Get("location"))
		}
		if q.Get("apikey") != "tio-test-key" {
			t.Errorf("expected apikey to carry the API key, got %s", q.Get("apikey"))
		}
		if q.Get("timesteps") != "1h" {
			t.Errorf("expected timesteps=1h, got %s", q.Get("timesteps"))
		}
		if q.Get("units") != "metric" {
			t.Errorf("expected units=metric, got %s", q.Get("units"))
		}
		if q.Get("fields") != tomorrowIOFields {
			t.Errorf("expected the full field list, got %s", q.Get("fields"))
		}
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestTomorrowIO(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}

	if fc.Source != types.ProviderTomorrowIO {
		t.Errorf("expected source tomorrowio, got %s", fc.Source)
	}
	// Probability 45 crosses the rain floor even with zero intensity.
	if !fc.WillRain {
		t.Error("expected WillRain true at 45% probability")
	}
	if !approxEqual(fc.RainProbability, 45) {
		t.Errorf("expected probability 45, got %v", fc.RainProbability)
	}
	// Metric windSpeed arrives in m/s.
	if !approxEqual(fc.WindSpeedKPH, types.MPSToKPH(10)) {
		t.Errorf("expected wind %v kph, got %v", types.MPSToKPH(10), fc.WindSpeedKPH)
	}
	if !approxEqual(fc.TemperatureC, 11) {
		t.Errorf("expected 11C, got %v", fc.TemperatureC)
	}
}

func TestTomorrowIOFetch_RainFromIntensityAlone(t *testing.T) {
	payload := fmt.Sprintf(`{"timelines": {"hourly": [%s]}}`,
		tomorrowIOHourJSON(testDay.Add(8*time.Hour), 10, 0.2, 14, 4),
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestTomorrowIO(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}
	if !fc.WillRain {
		t.Error("expected WillRain true with measured intensity below the probability floor")
	}
	if !approxEqual(fc.PrecipitationMM, 0.2) {
		t.Errorf("expected 0.2mm intensity, got %v", fc.PrecipitationMM)
	}
}

func TestTomorrowIOFetch_NoRainBelowFloor(t *testing.T) {
	payload := fmt.Sprintf(`{"timelines": {"hourly": [%s]}}`,
		tomorrowIOHourJSON(testDay.Add(8*time.Hour), 29.9, 0, 21, 2),
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestTomorrowIO(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}
	if fc.WillRain {
		t.Error("expected WillRain false just under the probability floor")
	}
}

func TestTomorrowIOFetch_SkipsUnusableHours(t *testing.T) {
	// First hour: garbage timestamp. Second: missing windSpeed. Third: complete.
	payload := fmt.Sprintf(`{"timelines": {"hourly": [
		{"time": "not-a-timestamp", "values": {"precipitationProbability": 10, "temperature": 10, "windSpeed": 1}},
		{"time": %q, "values": {"precipitationProbability": 10, "temperature": 10}},
		%s
	]}}`,
		testDay.Add(8*time.Hour).Format(time.RFC3339),
		tomorrowIOHourJSON(testDay.Add(9*time.Hour), 12, 0, 16, 5),
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := newTestTomorrowIO(t, server.URL, true)

	fc, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("expected forecast, got error: %v", err)
	}
	if !fc.Instant.Equal(testDay.Add(9 * time.Hour)) {
		t.Errorf("expected the complete 09:00 hour, got %v", fc.Instant)
	}
}

func TestTomorrowIOFetch_EmptyTimelineReturnsNoForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timelines": {"hourly": []}}`))
	}))
	defer server.Close()

	client := newTestTomorrowIO(t, server.URL, true)

	_, err := client.Fetch(context.Background(), testLocation, testWindow, testDay.Add(6*time.Hour))
	if !errors.Is(err, types.ErrNoForecast) {
		t.Errorf("expected ErrNoForecast for empty timeline, got: %v", err)
	}
}
