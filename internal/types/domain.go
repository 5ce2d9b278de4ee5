package types

import (
	"fmt"
	"strings"
	"time"
)

// Location is a named geographic point a rider commutes through.
type Location struct {
	Name string  `json:"name" db:"name" validate:"required,min=1,max=120"`
	Lat  float64 `json:"lat" db:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" db:"lon" validate:"gte=-180,lte=180"`
}

// HourWindow is an inclusive [StartHour, EndHour] range in 24-hour local
// time describing when a commute leg occurs. EndHour is expected to be
// greater than StartHour under normal configuration, but consumers must
// tolerate inverted windows without crashing.
type HourWindow struct {
	StartHour int `json:"start_hour" db:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int `json:"end_hour" db:"end_hour" validate:"gte=0,lte=23"`
}

// Contains reports whether the given hour falls inside the window, both
// bounds inclusive.
func (w HourWindow) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// String renders the window as "7-9" for logs.
func (w HourWindow) String() string {
	return fmt.Sprintf("%d-%d", w.StartHour, w.EndHour)
}

// LocationRequest pairs a location with the hour window a commute leg
// occupies. It is the unit of work handed to the forecast aggregator.
type LocationRequest struct {
	Location Location   `json:"location"`
	Window   HourWindow `json:"window"`
}

// Forecast is the canonical normalized weather sample: one provider's view
// of one location at one instant. Every adapter converts its native response
// shape into this record. Instances are created once per fetch and treated
// as immutable; they live only for the duration of one evaluation cycle and
// are never persisted.
type Forecast struct {
	WillRain        bool       `json:"will_rain"`
	RainProbability float64    `json:"rain_probability_pct"`
	PrecipitationMM float64    `json:"precipitation_mm"`
	WindSpeedKPH    float64    `json:"wind_speed_kph"`
	TemperatureC    float64    `json:"temperature_c"`
	Source          ProviderID `json:"source_id"`

	// Instant is always timezone-aware (carries an explicit location) so
	// samples from different providers compare correctly.
	Instant time.Time `json:"forecast_instant"`

	// UsedFallback marks a sample found outside the exact requested window.
	// FallbackOffsetHours is set iff UsedFallback is true: negative means
	// hours before the window start, positive means hours after its end.
	UsedFallback        bool `json:"used_fallback"`
	FallbackOffsetHours *int `json:"fallback_offset_hours,omitempty"`
}

// TemperatureF returns the sample temperature converted to Fahrenheit.
func (f *Forecast) TemperatureF() float64 {
	return CelsiusToFahrenheit(f.TemperatureC)
}

// WindSpeedMPH returns the sample wind speed converted to miles per hour.
func (f *Forecast) WindSpeedMPH() float64 {
	return KPHToMPH(f.WindSpeedKPH)
}

// LocationForecast ties a normalized forecast to the location it was
// fetched for. The aggregator emits these.
type LocationForecast struct {
	LocationName string   `json:"location_name"`
	Forecast     Forecast `json:"forecast"`
}

// CollectionResult is the aggregator's complete output for one commute leg:
// every successful (location, forecast) pair plus the per-provider
// success/failure sets. The source sets are data, not just log lines,
// because downstream evaluation needs to know result confidence.
type CollectionResult struct {
	Forecasts []LocationForecast `json:"forecasts"`
	Succeeded []ProviderID       `json:"succeeded_sources"`
	Failed    []ProviderID       `json:"failed_sources"`
}

// HasData reports whether at least one provider produced a forecast.
func (c *CollectionResult) HasData() bool {
	return len(c.Forecasts) > 0
}

// RiskFactor is one human-readable threshold breach together with the
// severity that produced it. Severity rides along so the round-trip decision
// can pick the single worst factor across both legs.
type RiskFactor struct {
	Level       RiskLevel `json:"level"`
	Description string    `json:"description"`
}

// RiskAssessment is the categorized risk for one commute leg, derived from
// the worst case across the leg's forecasts. Derived, never stored.
type RiskAssessment struct {
	Leg             Leg       `json:"leg"`
	RainRisk        RiskLevel `json:"rain_risk"`
	WindRisk        RiskLevel `json:"wind_risk"`
	TemperatureRisk RiskLevel `json:"temperature_risk"`
	Overall         RiskLevel `json:"overall"`

	// Factors lists each threshold breach in evaluation order
	// (rain, wind, temperature).
	Factors []RiskFactor `json:"factors"`

	// RainProbability is the highest rain probability observed across the
	// leg's forecasts; the round-trip rules key off it.
	RainProbability float64 `json:"rain_probability_pct"`

	// HasData is false when no provider produced a forecast for this leg.
	// A data-less leg must degrade to the safe default, never to clear skies.
	HasData bool `json:"has_data"`
}

// CommuteDecision is the round-trip verdict over both legs.
// Invariant: ShouldRide is false whenever either leg's overall risk is high
// or either leg's rain probability exceeds the unsafe threshold.
type CommuteDecision struct {
	ShouldRide     bool           `json:"should_ride"`
	OverallRisk    RiskLevel      `json:"overall_risk"`
	PrimaryConcern string         `json:"primary_concern"`
	Morning        RiskAssessment `json:"morning"`
	Evening        RiskAssessment `json:"evening"`
}

// LegReport bundles everything one commute leg produced: the requested
// window, the aggregated forecasts with source sets, and the assessment.
type LegReport struct {
	Leg        Leg              `json:"leg"`
	Window     HourWindow       `json:"window"`
	Collection CollectionResult `json:"collection"`
	Assessment RiskAssessment   `json:"assessment"`
}

// DayReport is the full output of one evaluation cycle for one rider,
// consumed by the recommendation renderer and the audit log.
type DayReport struct {
	Rider    *Rider          `json:"rider"`
	Date     time.Time       `json:"date"`
	Morning  LegReport       `json:"morning"`
	Evening  LegReport       `json:"evening"`
	Decision CommuteDecision `json:"decision"`

	// FunFact is the footer fact chosen for this cycle's email, if any.
	FunFact *FunFact `json:"fun_fact,omitempty"`
}

// Recommendation is rendered prose ready for delivery: a subject line plus
// HTML and plaintext bodies.
type Recommendation struct {
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`
}

// SendInput is the transport-level payload for one outbound email. Content
// arrives pre-rendered; the delivery provider only addresses and transmits it.
type SendInput struct {
	To       string
	ToName   string
	Subject  string
	BodyHTML string
	BodyText string
}

// WeatherPreferences carries a rider's personal comfort limits. They are
// surfaced in the rendered recommendation; the decision thresholds stay
// fixed so every rider gets the same safety floor.
type WeatherPreferences struct {
	MaxRainChance int `json:"max_rain_chance" db:"max_rain_chance" validate:"gte=0,lte=100"`
	MinTempF      int `json:"min_temp_f" db:"min_temp_f"`
	MaxWindMPH    int `json:"max_wind_mph" db:"max_wind_mph" validate:"gte=0"`
}

// NotificationSettings controls when a rider hears from the system.
type NotificationSettings struct {
	SendMorningOnly    bool `json:"send_morning_only" db:"send_morning_only"`
	SendIfNoRide       bool `json:"send_if_no_ride" db:"send_if_no_ride"`
	AdvanceNoticeHours int  `json:"advance_notice_hours" db:"advance_notice_hours" validate:"gte=0,lte=24"`
}

// Rider is the core profile entity: who commutes, where, when, and how they
// want to be told about it.
type Rider struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
	BackupEmail string `json:"backup_email,omitempty" db:"backup_email"`
	Enabled     bool   `json:"enabled" db:"enabled"`

	// Timezone is the IANA zone all of this rider's hour math happens in.
	Timezone string `json:"timezone" db:"timezone"`

	RideIn   HourWindow `json:"ride_in_hours" db:"-"`
	RideBack HourWindow `json:"ride_back_hours" db:"-"`

	Locations []Location `json:"locations" db:"-"`

	Preferences   WeatherPreferences   `json:"weather_preferences" db:"-"`
	Notifications NotificationSettings `json:"notification_settings" db:"-"`

	VehicleType string   `json:"vehicle_type" db:"vehicle_type"`
	CommuteDays []string `json:"commute_days" db:"commute_days"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// CommutesOn reports whether the rider commutes on the given weekday.
// A rider with no configured days commutes on weekdays only.
func (r *Rider) CommutesOn(day time.Weekday) bool {
	if len(r.CommuteDays) == 0 {
		return day != time.Saturday && day != time.Sunday
	}
	name := day.String()
	for _, d := range r.CommuteDays {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// TimezoneLocation resolves the rider's IANA timezone, falling back to UTC
// if the zone name fails to load.
func (r *Rider) TimezoneLocation() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FunFact is one footer fact delivered to a rider, recorded for
// deduplication. ContentHash is the SHA-256 of the lowercased, trimmed
// content.
type FunFact struct {
	ID          string       `json:"id" db:"id"`
	RiderID     string       `json:"rider_id" db:"rider_id"`
	Content     string       `json:"content" db:"content"`
	ContentHash string       `json:"content_hash" db:"content_hash"`
	Category    FactCategory `json:"category" db:"category"`
	UsedAt      time.Time    `json:"used_at" db:"used_at"`
}
