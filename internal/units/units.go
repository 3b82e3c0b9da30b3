// Package units provides shared constants and conversions between the
// internal units (meters, meters/second, nautical miles for ADS-B ranges)
// and the units exposed by the API.
package units

// Speed unit identifiers accepted by the API.
const (
	MPS   = "mps"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
	Knots = "kt"
)

// Conversion factors. Aviation feeds report altitude in feet, ground speed
// in knots, and range in nautical miles; everything is normalized to metric
// at the boundary.
const (
	MetersPerNauticalMile = 1852.0
	MetersPerFoot         = 0.3048
	MpsPerKnot            = 0.514444
)

// ValidSpeedUnits contains all speed unit values the API accepts.
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH, Knots}

// IsValidSpeedUnit checks if the given unit is one the API accepts.
func IsValidSpeedUnit(unit string) bool {
	for _, u := range ValidSpeedUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ValidSpeedUnitsString returns a comma-separated list for error messages.
func ValidSpeedUnitsString() string {
	return "mps, mph, kmph, kph, kt"
}

// ConvertSpeed converts a speed in meters per second to the target unit.
// Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS / MpsPerKnot
	default:
		return speedMPS
	}
}

// KnotsToMps converts a ground speed report to meters per second.
func KnotsToMps(kt float64) float64 {
	return kt * MpsPerKnot
}

// FeetToMeters converts a barometric altitude report to meters.
func FeetToMeters(ft float64) float64 {
	return ft * MetersPerFoot
}

// NauticalMilesToMeters converts a range to meters.
func NauticalMilesToMeters(nm float64) float64 {
	return nm * MetersPerNauticalMile
}
