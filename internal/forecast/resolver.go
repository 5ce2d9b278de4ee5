// Package forecast implements the window-resolution and multi-provider
// aggregation stages of the acquisition pipeline. The resolver picks the best
// hourly candidate for a requested window; the aggregator fans fetches out
// across providers and locations and merges whatever survives.
package forecast

import (
	"time"

	"ridecast/internal/types"
)

// Entry is one raw, time-stamped hourly candidate extracted by a provider
// adapter before window resolution. Units are already normalized (kph, mm,
// Celsius); candidates whose rain probability was absent upstream never
// become entries, because absence means unknown, not 0%.
type Entry struct {
	Instant         time.Time
	RainProbability float64
	PrecipitationMM float64
	WindSpeedKPH    float64
	TemperatureC    float64
	WillRain        bool
}

// ResolverPolicy is the slice of resilience configuration the resolver reads.
type ResolverPolicy struct {
	EnableFallback      bool
	FallbackWindowHours int
}

// Resolution describes how a candidate was chosen. Entry is nil when neither
// pass found a usable candidate. OffsetHours is set iff UsedFallback is true:
// negative means hours before the window start, positive means hours after
// its end, truncated to whole hours.
type Resolution struct {
	Entry        *Entry
	UsedFallback bool
	OffsetHours  *int
}

// Resolve finds the best entry for the target hour window relative to now.
//
// Pass one scans entries in their given order (providers emit them
// chronologically, so first match means earliest), skips anything strictly
// before now, and returns the first entry whose hour in now's timezone falls
// inside the window, both bounds inclusive.
//
// Pass two runs only when fallback is enabled: the target window is anchored
// to today (or tomorrow, when today's window has fully elapsed), expanded by
// FallbackWindowHours on both sides, and the future entry closest to the
// window midpoint wins. Equidistant candidates resolve to the earlier one in
// input order.
//
// Providers emit forecasts at irregular granularities, so bounded, recorded
// degradation here beats failing the whole source.
func Resolve(entries []Entry, window types.HourWindow, now time.Time, policy ResolverPolicy) Resolution {
	loc := now.Location()

	// Exact pass.
	for i := range entries {
		if entries[i].Instant.Before(now) {
			continue
		}
		if window.Contains(entries[i].Instant.In(loc).Hour()) {
			return Resolution{Entry: &entries[i]}
		}
	}

	if !policy.EnableFallback {
		return Resolution{}
	}

	// Fallback pass. Anchor the window to today; if it has already fully
	// elapsed, search tomorrow's window instead.
	year, month, day := now.Date()
	targetStart := time.Date(year, month, day, window.StartHour, 0, 0, 0, loc)
	targetEnd := time.Date(year, month, day, window.EndHour, 59, 59, 999999000, loc)
	if targetEnd.Before(now) {
		targetStart = targetStart.AddDate(0, 0, 1)
		targetEnd = targetEnd.AddDate(0, 0, 1)
	}

	band := time.Duration(policy.FallbackWindowHours) * time.Hour
	fallbackStart := targetStart.Add(-band)
	fallbackEnd := targetEnd.Add(band)
	targetCenter := targetStart.Add(targetEnd.Sub(targetStart) / 2)

	var best *Entry
	var bestOffset int
	minDistance := time.Duration(-1)

	for i := range entries {
		instant := entries[i].Instant
		if instant.Before(now) {
			continue
		}
		if instant.Before(fallbackStart) || instant.After(fallbackEnd) {
			continue
		}

		distance := instant.Sub(targetCenter)
		if distance < 0 {
			distance = -distance
		}
		if minDistance >= 0 && distance >= minDistance {
			continue
		}

		minDistance = distance
		best = &entries[i]
		switch {
		case instant.Before(targetStart):
			bestOffset = -int(targetStart.Sub(instant) / time.Hour)
		case instant.After(targetEnd):
			bestOffset = int(instant.Sub(targetEnd) / time.Hour)
		default:
			bestOffset = 0
		}
	}

	if best == nil {
		return Resolution{}
	}

	offset := bestOffset
	return Resolution{Entry: best, UsedFallback: true, OffsetHours: &offset}
}

// BuildForecast converts a resolution into the canonical forecast record for
// the given source. Callers must not pass an empty resolution.
func BuildForecast(source types.ProviderID, res Resolution) *types.Forecast {
	e := res.Entry
	return &types.Forecast{
		WillRain:            e.WillRain,
		RainProbability:     e.RainProbability,
		PrecipitationMM:     e.PrecipitationMM,
		WindSpeedKPH:        e.WindSpeedKPH,
		TemperatureC:        e.TemperatureC,
		Source:              source,
		Instant:             e.Instant,
		UsedFallback:        res.UsedFallback,
		FallbackOffsetHours: res.OffsetHours,
	}
}
