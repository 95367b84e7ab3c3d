package geospatial

import (
	"math"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// SearchRadius converts the vertical span of a region into a ground radius
// in meters. Half the latitude delta is used so the circle touches the top and
// bottom edges of the viewport. Returns 0 when the span is unusable.
func SearchRadius(r domain.Region) float64 {
	d := r.LatitudeDelta
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d / 2 * MetersPerDegreeLat
}

// Center returns the centre of the region.
func Center(r domain.Region) domain.Coordinate {
	return domain.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// RegionBounds returns the box covered by the region.
func RegionBounds(r domain.Region) domain.Bounds {
	return domain.Bounds{
		MinLat: r.Latitude - r.LatitudeDelta/2,
		MinLon: r.Longitude - r.LongitudeDelta/2,
		MaxLat: r.Latitude + r.LatitudeDelta/2,
		MaxLon: r.Longitude + r.LongitudeDelta/2,
	}
}
