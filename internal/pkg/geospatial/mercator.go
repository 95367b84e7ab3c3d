package geospatial

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/wroge/wgs84"
)

// MaxMercatorLat is the latitude limit of the Web Mercator projection.
const MaxMercatorLat = 85.05112878

var (
	ErrInvalidViewport = errors.New("invalid viewport")
	ErrUnprojectable   = errors.New("coordinate cannot be projected")
)

// MercatorProjector maps coordinates onto a width x height pixel viewport
// using Web Mercator (EPSG:3857), the projection used by map tile renderers.
type MercatorProjector struct {
	transform  func(a, b, c float64) (float64, float64, float64)
	minX, maxY float64
	scaleX     float64
	scaleY     float64
}

// NewMercatorProjector builds a projector for the given region rendered at
// width x height pixels.
func NewMercatorProjector(r domain.Region, width, height float64) (*MercatorProjector, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: screen size %.0fx%.0f", ErrInvalidViewport, width, height)
	}
	if r.LatitudeDelta <= 0 || r.LongitudeDelta <= 0 {
		return nil, fmt.Errorf("%w: non-positive span", ErrInvalidViewport)
	}

	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)

	b := RegionBounds(r)
	top := math.Min(b.MaxLat, MaxMercatorLat)
	bottom := math.Max(b.MinLat, -MaxMercatorLat)

	minX, maxY, _ := f(b.MinLon, top, 0)
	maxX, minY, _ := f(b.MaxLon, bottom, 0)
	if maxX <= minX || maxY <= minY {
		return nil, fmt.Errorf("%w: degenerate bounds", ErrInvalidViewport)
	}

	return &MercatorProjector{
		transform: f,
		minX:      minX,
		maxY:      maxY,
		scaleX:    width / (maxX - minX),
		scaleY:    height / (maxY - minY),
	}, nil
}

// PointForCoordinate returns the pixel position of c. Points outside the
// viewport get coordinates outside [0,width]x[0,height].
func (p *MercatorProjector) PointForCoordinate(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScreenPoint{}, err
	}
	if !c.Valid() || math.Abs(c.Latitude) > MaxMercatorLat {
		return domain.ScreenPoint{}, fmt.Errorf("%w: %.6f,%.6f", ErrUnprojectable, c.Latitude, c.Longitude)
	}

	x, y, _ := p.transform(c.Longitude, c.Latitude, 0)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return domain.ScreenPoint{}, fmt.Errorf("%w: %.6f,%.6f", ErrUnprojectable, c.Latitude, c.Longitude)
	}

	return domain.ScreenPoint{
		X: (x - p.minX) * p.scaleX,
		Y: (p.maxY - y) * p.scaleY,
	}, nil
}
