package risk

import (
	"ridecast/internal/types"
)

// noConcern is reported when no factor breached on either leg.
const noConcern = "None identified"

// Decide renders the round-trip verdict from both leg assessments. A ride
// commits the rider to both legs, so the rules weigh the evening return more
// heavily than the morning run, in priority order:
//
//  1. Either leg assessed overall high refuses the ride.
//  2. Evening rain probability at or above EveningRainCommitPct refuses the
//     ride even when the morning is clear.
//  3. Rain probability above RainModeratePct on either leg refuses the ride.
//
// Otherwise the ride is on.
func (e *Evaluator) Decide(morning, evening types.RiskAssessment) types.CommuteDecision {
	critical := criticalFactors(morning, evening)

	overall := types.MaxRiskLevel(morning.Overall, evening.Overall)
	if len(critical) > 0 {
		overall = types.RiskHigh
	}

	shouldRide := true
	switch {
	case morning.Overall == types.RiskHigh || evening.Overall == types.RiskHigh:
		shouldRide = false
	case evening.RainProbability >= EveningRainCommitPct:
		shouldRide = false
	case morning.RainProbability > RainModeratePct || evening.RainProbability > RainModeratePct:
		shouldRide = false
	}

	decision := types.CommuteDecision{
		ShouldRide:     shouldRide,
		OverallRisk:    overall,
		PrimaryConcern: primaryConcern(critical, morning, evening),
		Morning:        morning,
		Evening:        evening,
	}

	e.logger.Debug("round-trip decision",
		"should_ride", decision.ShouldRide,
		"overall_risk", decision.OverallRisk,
		"primary_concern", decision.PrimaryConcern,
	)
	return decision
}

// criticalFactors collects round-trip conditions that individually force the
// overall risk to high regardless of the per-leg categorization.
func criticalFactors(morning, evening types.RiskAssessment) []types.RiskFactor {
	var critical []types.RiskFactor

	if evening.RainProbability >= RainModeratePct {
		critical = append(critical, types.RiskFactor{
			Level:       types.RiskHigh,
			Description: "Evening rain will trap you at work",
		})
	}
	if morning.RainRisk == types.RiskHigh || evening.RainRisk == types.RiskHigh {
		critical = append(critical, types.RiskFactor{
			Level:       types.RiskHigh,
			Description: "Heavy rain forecast",
		})
	}
	if morning.WindRisk == types.RiskHigh || evening.WindRisk == types.RiskHigh {
		critical = append(critical, types.RiskFactor{
			Level:       types.RiskHigh,
			Description: "Dangerous wind conditions",
		})
	}
	return critical
}

// primaryConcern picks the single worst factor across the round trip.
// Critical round-trip factors outrank leg factors; between the two legs,
// ties break to the evening return.
func primaryConcern(critical []types.RiskFactor, morning, evening types.RiskAssessment) string {
	var best types.RiskFactor
	found := false
	for _, group := range [][]types.RiskFactor{critical, evening.Factors, morning.Factors} {
		for _, f := range group {
			if !found || f.Level.Severity() > best.Level.Severity() {
				best = f
				found = true
			}
		}
	}
	if !found {
		return noConcern
	}
	return best.Description
}
