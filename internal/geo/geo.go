// Package geo implements great-circle distance checks for session geofences.
package geo

import "math"

const earthRadiusMeters = 6371e3

type Point struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// WithinRadius reports whether point lies inside the circle around center.
// The boundary is inclusive. The rounded distance in meters is returned for display.
func WithinRadius(point, center Point, radiusMeters float64) (bool, int) {
	d := Distance(point, center)
	return d <= radiusMeters, int(math.Round(d))
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude) &&
		p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
