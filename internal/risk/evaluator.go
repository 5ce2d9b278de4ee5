// Package risk categorizes normalized weather samples against fixed
// motorcycle safety thresholds and renders the round-trip ride decision.
// Thresholds are not rider-configurable: personal comfort preferences shape
// the rendered recommendation, never the decision floor.
package risk

import (
	"fmt"
	"log/slog"

	"ridecast/internal/types"
)

// Motorcycle safety thresholds. Rain is percent probability, wind is miles
// per hour, temperature is degrees Fahrenheit. Every boundary is inclusive
// on the riskier side.
const (
	RainLowPct      = 20.0
	RainModeratePct = 50.0
	RainHighPct     = 80.0

	WindLowMPH      = 15.0
	WindModerateMPH = 25.0
	WindHighMPH     = 35.0

	TempColdLimitF   = 35.0
	TempCoolComfortF = 50.0
	TempHotLimitF    = 95.0

	// EveningRainCommitPct is the evening rain probability at which the
	// round trip is refused outright. Riding in commits the rider to riding
	// home; a wet return leg strands the bike at work.
	EveningRainCommitPct = 30.0
)

// noDataFactor is the factor attached to a leg no provider produced data for.
const noDataFactor = "No forecast data available"

// Evaluator converts aggregated forecasts into categorized per-leg risk and
// the final round-trip decision. It is deterministic: the same inputs always
// produce the same assessment, independent of any narrative generation
// downstream.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// AssessLeg categorizes one commute leg from its collected forecasts. The
// leg is judged on its worst case: the highest rain probability and wind
// speed across sources, and the average temperature. A leg with no data at
// all assesses as overall high so the decision degrades to not riding,
// never to assumed clear skies.
func (e *Evaluator) AssessLeg(leg types.Leg, collection types.CollectionResult) types.RiskAssessment {
	if !collection.HasData() {
		e.logger.Warn("no forecast data for leg", "leg", leg)
		return types.RiskAssessment{
			Leg:             leg,
			RainRisk:        types.RiskMinimal,
			WindRisk:        types.RiskMinimal,
			TemperatureRisk: types.RiskMinimal,
			Overall:         types.RiskHigh,
			Factors: []types.RiskFactor{
				{Level: types.RiskHigh, Description: noDataFactor},
			},
			HasData: false,
		}
	}

	var maxRainPct, maxWindMPH, tempSumF float64
	for _, lf := range collection.Forecasts {
		fc := lf.Forecast
		maxRainPct = max(maxRainPct, fc.RainProbability)
		maxWindMPH = max(maxWindMPH, fc.WindSpeedMPH())
		tempSumF += fc.TemperatureF()
	}
	avgTempF := tempSumF / float64(len(collection.Forecasts))

	rainLevel, rainFactor := rainRisk(maxRainPct)
	windLevel, windFactor := windRisk(maxWindMPH)
	tempLevel, tempFactor := temperatureRisk(avgTempF)

	factors := make([]types.RiskFactor, 0, 3)
	if rainFactor != "" {
		factors = append(factors, types.RiskFactor{Level: rainLevel, Description: rainFactor})
	}
	if windFactor != "" {
		factors = append(factors, types.RiskFactor{Level: windLevel, Description: windFactor})
	}
	if tempFactor != "" {
		factors = append(factors, types.RiskFactor{Level: tempLevel, Description: tempFactor})
	}

	assessment := types.RiskAssessment{
		Leg:             leg,
		RainRisk:        rainLevel,
		WindRisk:        windLevel,
		TemperatureRisk: tempLevel,
		Overall:         types.MaxRiskLevel(rainLevel, windLevel, tempLevel),
		Factors:         factors,
		RainProbability: maxRainPct,
		HasData:         true,
	}

	e.logger.Debug("leg assessed",
		"leg", leg,
		"overall", assessment.Overall,
		"max_rain_pct", maxRainPct,
		"max_wind_mph", maxWindMPH,
		"avg_temp_f", avgTempF,
	)
	return assessment
}

// rainRisk categorizes the worst rain probability seen on a leg. The factor
// string is empty when nothing breached.
func rainRisk(pct float64) (types.RiskLevel, string) {
	switch {
	case pct >= RainHighPct:
		return types.RiskHigh, fmt.Sprintf("Heavy rain risk (%.0f%%)", pct)
	case pct >= RainModeratePct:
		return types.RiskModerate, fmt.Sprintf("Moderate rain risk (%.0f%%)", pct)
	case pct >= RainLowPct:
		return types.RiskLow, fmt.Sprintf("Light rain possible (%.0f%%)", pct)
	default:
		return types.RiskMinimal, ""
	}
}

// windRisk categorizes the worst sustained wind seen on a leg.
func windRisk(mph float64) (types.RiskLevel, string) {
	switch {
	case mph >= WindHighMPH:
		return types.RiskHigh, fmt.Sprintf("Dangerous winds (%.0f mph)", mph)
	case mph >= WindModerateMPH:
		return types.RiskModerate, fmt.Sprintf("Strong winds (%.0f mph)", mph)
	case mph >= WindLowMPH:
		return types.RiskLow, fmt.Sprintf("Moderate winds (%.0f mph)", mph)
	default:
		return types.RiskMinimal, ""
	}
}

// temperatureRisk categorizes the leg's average temperature. Both extremes
// are high risk even with full gear; the band between the cold limit and the
// comfort floor is rideable with caution.
func temperatureRisk(f float64) (types.RiskLevel, string) {
	switch {
	case f <= TempColdLimitF:
		return types.RiskHigh, fmt.Sprintf("Dangerously cold (%.0f°F)", f)
	case f >= TempHotLimitF:
		return types.RiskHigh, fmt.Sprintf("Dangerously hot (%.0f°F)", f)
	case f <= TempCoolComfortF:
		return types.RiskModerate, fmt.Sprintf("Cold conditions (%.0f°F)", f)
	default:
		return types.RiskMinimal, ""
	}
}
