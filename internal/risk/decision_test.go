package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ridecast/internal/types"
)

func TestDecide_ClearDayRides(t *testing.T) {
	e := newTestEvaluator()

	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(0, 5, 70)))
	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(0, 5, 70)))

	d := e.Decide(morning, evening)

	assert.True(t, d.ShouldRide)
	assert.Equal(t, types.RiskMinimal, d.OverallRisk)
	assert.Equal(t, "None identified", d.PrimaryConcern)
}

func TestDecide_EveningRainOutweighsClearMorning(t *testing.T) {
	e := newTestEvaluator()

	// Morning is fine; the 60% evening return is not.
	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(10, 5, 65)))
	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(60, 10, 60)))

	d := e.Decide(morning, evening)

	assert.False(t, d.ShouldRide)
	assert.Equal(t, types.RiskHigh, d.OverallRisk)
	assert.Equal(t, "Evening rain will trap you at work", d.PrimaryConcern)
	assert.Contains(t, d.PrimaryConcern, "rain")
}

func TestDecide_NeverRidesWithHighLeg(t *testing.T) {
	e := newTestEvaluator()

	clear := legData(sampleAt(0, 5, 70))
	dangerousWind := legData(sampleAt(0, 40, 70))
	dangerousCold := legData(sampleAt(0, 5, 20))
	heavyRain := legData(sampleAt(85, 5, 70))

	legs := []types.CollectionResult{clear, dangerousWind, dangerousCold, heavyRain}

	for _, m := range legs {
		for _, ev := range legs {
			morning := e.AssessLeg(types.LegMorning, m)
			evening := e.AssessLeg(types.LegEvening, ev)
			d := e.Decide(morning, evening)

			if morning.Overall == types.RiskHigh || evening.Overall == types.RiskHigh {
				assert.False(t, d.ShouldRide,
					"rode with a high leg: morning=%v evening=%v", morning.Overall, evening.Overall)
			}
		}
	}
}

func TestDecide_EveningCommitThreshold(t *testing.T) {
	e := newTestEvaluator()

	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(0, 5, 70)))

	// At the threshold the ride is refused.
	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(30, 5, 70)))
	d := e.Decide(morning, evening)
	assert.False(t, d.ShouldRide)
	assert.Equal(t, types.RiskLow, d.OverallRisk)

	// Just under it the ride is on.
	evening = e.AssessLeg(types.LegEvening, legData(sampleAt(29, 5, 70)))
	d = e.Decide(morning, evening)
	assert.True(t, d.ShouldRide)
}

func TestDecide_MorningRainToleratedToFifty(t *testing.T) {
	e := newTestEvaluator()

	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(10, 5, 70)))

	// The morning leg tolerates more rain than the evening commit threshold.
	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(45, 5, 70)))
	assert.True(t, e.Decide(morning, evening).ShouldRide)

	morning = e.AssessLeg(types.LegMorning, legData(sampleAt(50, 5, 70)))
	assert.True(t, e.Decide(morning, evening).ShouldRide)

	morning = e.AssessLeg(types.LegMorning, legData(sampleAt(51, 5, 70)))
	assert.False(t, e.Decide(morning, evening).ShouldRide)
}

func TestDecide_CriticalFactorsEscalateOverall(t *testing.T) {
	e := newTestEvaluator()

	clear := e.AssessLeg(types.LegEvening, legData(sampleAt(0, 5, 70)))

	// Heavy morning rain: the leg itself is high and the round-trip factor
	// outranks the leg factor as the primary concern.
	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(85, 5, 70)))
	d := e.Decide(morning, clear)
	assert.False(t, d.ShouldRide)
	assert.Equal(t, types.RiskHigh, d.OverallRisk)
	assert.Equal(t, "Heavy rain forecast", d.PrimaryConcern)

	// Dangerous evening wind.
	morning = e.AssessLeg(types.LegMorning, legData(sampleAt(0, 5, 70)))
	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(0, 40, 70)))
	d = e.Decide(morning, evening)
	assert.False(t, d.ShouldRide)
	assert.Equal(t, types.RiskHigh, d.OverallRisk)
	assert.Equal(t, "Dangerous wind conditions", d.PrimaryConcern)
}

func TestDecide_NoDataLegRefusesRide(t *testing.T) {
	e := newTestEvaluator()

	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(0, 5, 70)))
	evening := e.AssessLeg(types.LegEvening, legData())

	d := e.Decide(morning, evening)

	assert.False(t, d.ShouldRide)
	assert.Equal(t, types.RiskHigh, d.OverallRisk)
	assert.Equal(t, "No forecast data available", d.PrimaryConcern)
}

func TestDecide_ConcernTieBreaksToEvening(t *testing.T) {
	e := newTestEvaluator()

	// Both legs carry one moderate factor; the evening one wins.
	morning := e.AssessLeg(types.LegMorning, legData(sampleAt(0, 5, 45)))
	evening := e.AssessLeg(types.LegEvening, legData(sampleAt(0, 30, 70)))

	d := e.Decide(morning, evening)

	assert.True(t, d.ShouldRide)
	assert.Equal(t, types.RiskModerate, d.OverallRisk)
	assert.Equal(t, "Strong winds (30 mph)", d.PrimaryConcern)
}
