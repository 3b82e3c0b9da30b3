package adsb

import "math"

// EarthRadiusNm is the mean Earth radius in nautical miles, the
// conventional value for aviation great-circle math.
const EarthRadiusNm = 3440.065

// HaversineNm returns the great-circle distance in nautical miles between
// two lat/lon points in degrees.
func HaversineNm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusNm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InitialBearingDeg returns the initial great-circle bearing from point 1
// to point 2, degrees clockwise from true north in [0, 360).
func InitialBearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}

// AngularDiffDeg returns the absolute difference between two angles in
// degrees, folded into [0, 180].
func AngularDiffDeg(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d < -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return math.Abs(d)
}
