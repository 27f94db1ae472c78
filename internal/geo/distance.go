// Package geo provides coordinate types, distances and the E7 integer
// encoding used by location history exports.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for spherical distances.
const EarthRadiusMeters = 6371008.8

// LatLng is a coordinate in decimal degrees.
type LatLng struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b LatLng) float64 {
	if a == b {
		return 0
	}
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// E7 encodes decimal degrees as the export's integer degrees × 10^7.
func E7(deg float64) int64 {
	return int64(math.Round(deg * 1e7))
}
