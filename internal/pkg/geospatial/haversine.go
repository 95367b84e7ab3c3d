package geospatial

import (
	"math"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0

	// MetersPerDegreeLat is the flat-earth length of one degree of latitude.
	MetersPerDegreeLat = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Distance is Haversine over two coordinates.
func Distance(a, b domain.Coordinate) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / MetersPerDegreeLat
	lonDelta := radiusMeters / (MetersPerDegreeLat * math.Cos(toRad(lat)))

	return domain.Bounds{
		MinLat: lat - latDelta,
		MinLon: lon - lonDelta,
		MaxLat: lat + latDelta,
		MaxLon: lon + lonDelta,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
