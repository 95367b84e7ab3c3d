// Package clustering groups map markers that overlap on screen.
//
// Clustering works in pixel space: every marker is projected through the
// map's current projection and markers whose projections fall within a
// threshold of a cluster's anchor are merged. A pass is stateless; callers
// re-run it whenever the visible region settles and drop results of passes
// that were superseded.
package clustering

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

const (
	// DefaultThresholdPx is the pixel distance under which markers merge.
	DefaultThresholdPx = 35.0
	// DefaultConcurrency bounds in-flight projection calls.
	DefaultConcurrency = 16
)

var errProjectionPanic = errors.New("projector panicked")

// Projector maps a geographic coordinate to a screen position.
type Projector interface {
	PointForCoordinate(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error)
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc func(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error)

// PointForCoordinate calls f.
func (f ProjectorFunc) PointForCoordinate(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error) {
	return f(ctx, c)
}

// Options tune a clustering pass.
type Options struct {
	ThresholdPx float64
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.ThresholdPx <= 0 || math.IsNaN(o.ThresholdPx) {
		o.ThresholdPx = DefaultThresholdPx
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

type projected struct {
	marker domain.Marker
	point  domain.ScreenPoint
	ok     bool
}

type group struct {
	anchor  domain.ScreenPoint
	members []domain.Marker
	// fallback groups hold a marker whose projection failed; they never absorb others.
	fallback bool
}

// ByScreen partitions markers into clusters by on-screen proximity.
//
// Markers with invalid coordinates are dropped. A marker whose projection
// fails becomes its own cluster at its raw coordinate. The only error
// returned is ctx.Err() when the pass was cancelled.
func ByScreen(ctx context.Context, p Projector, markers []domain.Marker, opts Options) ([]domain.Cluster, error) {
	opts = opts.withDefaults()

	valid := make([]domain.Marker, 0, len(markers))
	for _, m := range markers {
		if m.Coordinate().Valid() {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return []domain.Cluster{}, nil
	}

	points, err := project(ctx, p, valid, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	return greedy(points, opts.ThresholdPx), nil
}

// project gathers one projection per marker. Individual failures are kept
// as ok=false rather than failing the batch.
func project(ctx context.Context, p Projector, markers []domain.Marker, limit int) ([]projected, error) {
	out := make([]projected, len(markers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, m := range markers {
		out[i].marker = m
		g.Go(func() error {
			pt, err := safeProject(gctx, p, m.Coordinate())
			if err != nil || math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
				return nil
			}
			out[i].point = pt
			out[i].ok = true
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// safeProject turns a panicking projector into a failed projection.
func safeProject(ctx context.Context, p Projector, c domain.Coordinate) (pt domain.ScreenPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errProjectionPanic
		}
	}()
	return p.PointForCoordinate(ctx, c)
}

func greedy(points []projected, threshold float64) []domain.Cluster {
	groups := make([]*group, 0, len(points))

	for _, pp := range points {
		if !pp.ok {
			groups = append(groups, &group{members: []domain.Marker{pp.marker}, fallback: true})
			continue
		}

		var target *group
		for _, g := range groups {
			if g.fallback {
				continue
			}
			if math.Hypot(pp.point.X-g.anchor.X, pp.point.Y-g.anchor.Y) < threshold {
				target = g
				break
			}
		}

		if target == nil {
			groups = append(groups, &group{anchor: pp.point, members: []domain.Marker{pp.marker}})
			continue
		}
		target.members = append(target.members, pp.marker)
	}

	clusters := make([]domain.Cluster, len(groups))
	for i, g := range groups {
		clusters[i] = toCluster(g.members)
	}
	return clusters
}

func toCluster(members []domain.Marker) domain.Cluster {
	if len(members) == 1 {
		return domain.Cluster{
			Latitude:  members[0].Latitude,
			Longitude: members[0].Longitude,
			Members:   members,
		}
	}

	var sumLat, sumLon float64
	for _, m := range members {
		sumLat += m.Latitude
		sumLon += m.Longitude
	}
	n := float64(len(members))
	return domain.Cluster{
		Latitude:  sumLat / n,
		Longitude: sumLon / n,
		Members:   members,
	}
}
