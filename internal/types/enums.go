package types

// ProviderID identifies one external weather data source.
type ProviderID string

const (
	ProviderOpenWeather ProviderID = "openweather"
	ProviderWeatherAPI  ProviderID = "weatherapi"
	ProviderTomorrowIO  ProviderID = "tomorrowio"
	ProviderNOAA        ProviderID = "noaa"
)

// AllProviderIDs lists every known provider in canonical order.
var AllProviderIDs = []ProviderID{
	ProviderOpenWeather,
	ProviderWeatherAPI,
	ProviderTomorrowIO,
	ProviderNOAA,
}

// Valid reports whether the provider ID is one of the known sources.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderOpenWeather, ProviderWeatherAPI, ProviderTomorrowIO, ProviderNOAA:
		return true
	}
	return false
}

// RiskLevel categorizes the severity of a single weather factor or of a
// whole commute leg.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Severity returns the ordinal rank of the level (minimal=0 .. high=3).
// Unknown values rank highest so that a corrupted level never downgrades
// a decision.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskMinimal:
		return 0
	case RiskLow:
		return 1
	case RiskModerate:
		return 2
	case RiskHigh:
		return 3
	default:
		return 3
	}
}

// MaxRiskLevel returns the most severe of the given levels.
// Returns RiskMinimal when called with no arguments.
func MaxRiskLevel(levels ...RiskLevel) RiskLevel {
	max := RiskMinimal
	for _, l := range levels {
		if l.Severity() > max.Severity() {
			max = l
		}
	}
	return max
}

// Leg identifies one direction of the round-trip commute.
type Leg string

const (
	LegMorning Leg = "morning"
	LegEvening Leg = "evening"
)

// FactCategory groups fun facts for rotation so consecutive emails vary.
type FactCategory string

const (
	FactQuotes      FactCategory = "quotes"
	FactSafetyTips  FactCategory = "safety_tips"
	FactHistory     FactCategory = "motorcycle_history"
	FactTechnical   FactCategory = "technical_facts"
	FactRidingTips  FactCategory = "riding_tips"
	FactInspiration FactCategory = "inspiration"
)

// AllFactCategories lists every fact category in rotation order.
var AllFactCategories = []FactCategory{
	FactQuotes,
	FactSafetyTips,
	FactHistory,
	FactTechnical,
	FactRidingTips,
	FactInspiration,
}
