package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/neargrid/internal/core/clustering"
	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
	"github.com/samirrijal/neargrid/internal/pkg/geospatial"
	"github.com/samirrijal/neargrid/internal/pkg/metrics"
	"github.com/samirrijal/neargrid/internal/pkg/telemetry"
)

// MapCachePrefix prefixes cached nearby-thread lookups.
const MapCachePrefix = "map:threads:"

// MapConfig tunes map queries.
type MapConfig struct {
	ThresholdPx     float64
	MaxRadiusMeters float64
	MaxMarkers      int
	CacheTTLSeconds int
}

func (c MapConfig) withDefaults() MapConfig {
	if c.ThresholdPx <= 0 {
		c.ThresholdPx = clustering.DefaultThresholdPx
	}
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = 50000
	}
	if c.MaxMarkers <= 0 {
		c.MaxMarkers = 300
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 30
	}
	return c
}

// ClusterQuery describes the viewport a client is rendering.
type ClusterQuery struct {
	Region      domain.Region
	Width       float64
	Height      float64
	ThresholdPx float64
	Limit       int
}

// ClusterResult is one clustering pass for a viewport.
type ClusterResult struct {
	Center       domain.Coordinate `json:"center"`
	RadiusMeters float64           `json:"radius_meters"`
	MarkerCount  int               `json:"marker_count"`
	Clusters     []domain.Cluster  `json:"clusters"`
}

// MapService answers map viewport queries.
type MapService struct {
	threads ports.ThreadRepository
	cache   ports.CacheService
	cfg     MapConfig
	tracer  trace.Tracer
}

// NewMapService creates a new MapService.
func NewMapService(threads ports.ThreadRepository, cache ports.CacheService, cfg MapConfig) *MapService {
	return &MapService{
		threads: threads,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		tracer:  otel.Tracer("neargrid/usecases/map"),
	}
}

// SearchArea returns the centre and ground radius of a viewport.
func (s *MapService) SearchArea(r domain.Region) (domain.Coordinate, float64) {
	return geospatial.Center(r), geospatial.SearchRadius(r)
}

// Clusters loads the threads around a viewport and clusters their markers
// the way the client will render them.
func (s *MapService) Clusters(ctx context.Context, q ClusterQuery) (*ClusterResult, error) {
	if err := validateRegion(q.Region); err != nil {
		return nil, err
	}
	if q.Width <= 0 || q.Height <= 0 || q.Width > 10000 || q.Height > 10000 {
		return nil, fmt.Errorf("%w: width and height must be between 1 and 10000 pixels", domain.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "MapService.Clusters")
	defer span.End()

	center, radius := s.SearchArea(q.Region)
	radius = math.Min(math.Max(radius, 1), s.cfg.MaxRadiusMeters)

	limit := q.Limit
	if limit <= 0 || limit > s.cfg.MaxMarkers {
		limit = s.cfg.MaxMarkers
	}

	threads, err := s.nearby(ctx, center.Latitude, center.Longitude, radius, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load threads: %w", err)
	}

	markers := make([]domain.Marker, len(threads))
	for i, t := range threads {
		markers[i] = t.Marker()
	}

	projector, err := geospatial.NewMercatorProjector(q.Region, q.Width, q.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	threshold := q.ThresholdPx
	if threshold <= 0 {
		threshold = s.cfg.ThresholdPx
	}

	start := time.Now()
	clusters, err := clustering.ByScreen(ctx, projector, markers, clustering.Options{ThresholdPx: threshold})
	if err != nil {
		return nil, err
	}
	metrics.ClusteringDuration.Observe(time.Since(start).Seconds())
	metrics.ClustersReturned.Observe(float64(len(clusters)))

	span.SetAttributes(
		attribute.Int(telemetry.MetricMarkersPerRegion, len(markers)),
		attribute.Int(telemetry.MetricClustersPerRegion, len(clusters)),
		attribute.Float64(telemetry.MetricSearchRadius, radius),
	)

	return &ClusterResult{
		Center:       center,
		RadiusMeters: radius,
		MarkerCount:  len(markers),
		Clusters:     clusters,
	}, nil
}

// Nearby returns threads within radiusMeters of a point, closest first.
func (s *MapService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Thread, error) {
	if !(domain.Coordinate{Latitude: lat, Longitude: lon}).Valid() {
		return nil, fmt.Errorf("%w: coordinate out of range", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > s.cfg.MaxMarkers {
		limit = s.cfg.MaxMarkers
	}
	radiusMeters = math.Min(radiusMeters, s.cfg.MaxRadiusMeters)
	return s.nearby(ctx, lat, lon, radiusMeters, limit)
}

func (s *MapService) nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Thread, error) {
	cacheKey := fmt.Sprintf("%s%.4f:%.4f:%.0f:%d", MapCachePrefix, lat, lon, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var threads []domain.Thread
			if err := json.Unmarshal(data, &threads); err == nil {
				metrics.CacheHits.WithLabelValues("map_threads").Inc()
				return threads, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("map_threads").Inc()
	}

	threads, err := s.threads.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	for i := range threads {
		if threads[i].Distance == nil {
			d := geospatial.Haversine(lat, lon, threads[i].Location.Latitude, threads[i].Location.Longitude)
			threads[i].Distance = &d
		}
	}

	if s.cache != nil {
		if data, err := json.Marshal(threads); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cfg.CacheTTLSeconds)
		}
	}

	return threads, nil
}

func validateRegion(r domain.Region) error {
	if !geospatial.Center(r).Valid() {
		return fmt.Errorf("%w: region centre out of range", domain.ErrInvalidInput)
	}
	if !(r.LatitudeDelta > 0 && r.LatitudeDelta <= 180) || !(r.LongitudeDelta > 0 && r.LongitudeDelta <= 360) {
		return fmt.Errorf("%w: region deltas must be positive", domain.ErrInvalidInput)
	}
	return nil
}
