package types

// CelsiusToFahrenheit converts a temperature in Celsius to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return (c * 9 / 5) + 32
}

// FahrenheitToCelsius converts a temperature in Fahrenheit to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// KPHToMPH converts kilometers per hour to miles per hour.
func KPHToMPH(kph float64) float64 {
	return kph * 0.621371
}

// MPHToKPH converts miles per hour to kilometers per hour.
func MPHToKPH(mph float64) float64 {
	return mph / 0.621371
}

// MPSToKPH converts meters per second to kilometers per hour.
func MPSToKPH(mps float64) float64 {
	return mps * 3.6
}

// MilitaryToStandard converts a 24-hour clock hour to its 12-hour form.
func MilitaryToStandard(hour int) int {
	switch {
	case hour == 0:
		return 12
	case hour > 12:
		return hour - 12
	default:
		return hour
	}
}
