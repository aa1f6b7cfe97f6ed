package matching

import (
	"math"

	"commodity-matching/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm computes the great-circle distance between two points
// using the haversine formula.
func DistanceKm(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// locationsCompatible reports whether two locations are hard-filter compatible:
// same top-level region and within the configured maximum distance.
func locationsCompatible(a, b domain.Location, maxDistanceKm float64) bool {
	if a.Region != b.Region {
		return false
	}
	return DistanceKm(a, b) <= maxDistanceKm
}

// proximityFactor normalizes distance against the configured maximum:
// 1.0 at zero distance, linearly down to 0.0 at the maximum.
func proximityFactor(a, b domain.Location, maxDistanceKm float64) float64 {
	d := DistanceKm(a, b)
	if d >= maxDistanceKm {
		return 0
	}
	return 1 - d/maxDistanceKm
}
