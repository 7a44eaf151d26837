package classify

// Rothfusz regression coefficients (Fahrenheit form). The regression is only
// valid above 80°F and 40% relative humidity; below that the heat index is
// approximately the air temperature.
const (
	hiC1 = -42.379
	hiC2 = 2.04901523
	hiC3 = 10.14333127
	hiC4 = -0.22475541
	hiC5 = -6.83783e-3
	hiC6 = -5.481717e-2
	hiC7 = 1.22874e-3
	hiC8 = 8.5282e-4
	hiC9 = -1.99e-6
)

// HeatIndexC computes the NWS heat index for a temperature in Celsius and a
// relative humidity percentage, returning Celsius.
func HeatIndexC(tempC, humidityPct float64) float64 {
	tempF := tempC*9/5 + 32
	if tempF < 80 || humidityPct < 40 {
		return tempC
	}

	rh := humidityPct
	hiF := hiC1 +
		hiC2*tempF +
		hiC3*rh +
		hiC4*tempF*rh +
		hiC5*tempF*tempF +
		hiC6*rh*rh +
		hiC7*tempF*tempF*rh +
		hiC8*tempF*rh*rh +
		hiC9*tempF*tempF*rh*rh

	return (hiF - 32) * 5 / 9
}
