package clustering

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// linear projects 1 degree of longitude/latitude to 1 pixel on x/y.
func linear(fail map[domain.Coordinate]bool) Projector {
	return ProjectorFunc(func(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error) {
		if fail[c] {
			return domain.ScreenPoint{}, errors.New("projection failed")
		}
		return domain.ScreenPoint{X: c.Longitude, Y: c.Latitude}, nil
	})
}

func marker(id string, lat, lon float64) domain.Marker {
	return domain.Marker{ID: id, Latitude: lat, Longitude: lon}
}

func ids(c domain.Cluster) []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.ID
	}
	return out
}

func TestByScreen_Empty(t *testing.T) {
	clusters, err := ByScreen(context.Background(), linear(nil), nil, Options{})
	require.NoError(t, err)
	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)
}

func TestByScreen_PartitionsInput(t *testing.T) {
	markers := []domain.Marker{
		marker("a", 0, 0),
		marker("b", 10, 10),
		marker("c", 0, 80),
		marker("d", 5, 85),
		marker("e", 60, 60),
		marker("f", 61, 0),
	}

	clusters, err := ByScreen(context.Background(), linear(nil), markers, Options{ThresholdPx: 35})
	require.NoError(t, err)

	var seen []string
	for _, c := range clusters {
		require.NotEmpty(t, c.Members)
		seen = append(seen, ids(c)...)
	}
	sort.Strings(seen)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, seen)
	assert.Len(t, clusters, 4)
	assert.Equal(t, []string{"a", "b"}, ids(clusters[0]))
	assert.Equal(t, []string{"c", "d"}, ids(clusters[1]))
}

// Evenly spaced collinear markers merge monotonically as the threshold
// grows. This does not hold in general, see
// TestByScreen_ThresholdNotMonotonicInGeneral.
func TestByScreen_CollinearThresholdMonotonic(t *testing.T) {
	markers := []domain.Marker{
		marker("a", 0, 0),
		marker("b", 0, 20),
		marker("c", 0, 40),
		marker("d", 0, 200),
		marker("e", 0, 230),
	}

	prev := math.MaxInt
	for _, th := range []float64{5, 10, 35, 100, 1000} {
		clusters, err := ByScreen(context.Background(), linear(nil), markers, Options{ThresholdPx: th})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(clusters), prev, "threshold %.0f", th)
		prev = len(clusters)
	}
	assert.Equal(t, 1, prev)
}

// With first-member anchors a larger threshold can yield more clusters:
// at 13px b joins a, which leaves c and e with no anchor in range; at 10px b
// anchors its own cluster and picks up both.
func TestByScreen_ThresholdNotMonotonicInGeneral(t *testing.T) {
	markers := []domain.Marker{
		marker("a", 0, 0),
		marker("b", 0, 12),
		marker("c", 9, 12),
		marker("e", -9, 12),
	}

	tight, err := ByScreen(context.Background(), linear(nil), markers, Options{ThresholdPx: 10})
	require.NoError(t, err)
	require.Len(t, tight, 2)
	assert.Equal(t, []string{"a"}, ids(tight[0]))
	assert.Equal(t, []string{"b", "c", "e"}, ids(tight[1]))

	loose, err := ByScreen(context.Background(), linear(nil), markers, Options{ThresholdPx: 13})
	require.NoError(t, err)
	require.Len(t, loose, 3)
	assert.Equal(t, []string{"a", "b"}, ids(loose[0]))
	assert.Equal(t, []string{"c"}, ids(loose[1]))
	assert.Equal(t, []string{"e"}, ids(loose[2]))
}

func TestByScreen_DefaultThreshold(t *testing.T) {
	markers := []domain.Marker{marker("a", 0, 0), marker("b", 0, 34), marker("c", 0, 35)}

	clusters, err := ByScreen(context.Background(), linear(nil), markers, Options{})
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a", "b"}, ids(clusters[0]))
	assert.Equal(t, []string{"c"}, ids(clusters[1]))
}

func TestByScreen_SingletonFallback(t *testing.T) {
	bad := marker("bad", 1, 1)
	markers := []domain.Marker{marker("a", 0, 0), bad, marker("b", 2, 2)}

	fail := map[domain.Coordinate]bool{bad.Coordinate(): true}
	clusters, err := ByScreen(context.Background(), linear(fail), markers, Options{ThresholdPx: 35})
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	assert.Equal(t, []string{"a", "b"}, ids(clusters[0]))
	assert.Equal(t, []string{"bad"}, ids(clusters[1]))
	assert.Equal(t, 1.0, clusters[1].Latitude)
	assert.Equal(t, 1.0, clusters[1].Longitude)
}

func TestByScreen_PanickingProjector(t *testing.T) {
	p := ProjectorFunc(func(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error) {
		panic("boom")
	})
	clusters, err := ByScreen(context.Background(), p, []domain.Marker{marker("a", 0, 0), marker("b", 0, 0)}, Options{})
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
}

func TestByScreen_Centroid(t *testing.T) {
	markers := []domain.Marker{marker("a", 10, 20), marker("b", 12, 22), marker("c", 11, 27)}

	clusters, err := ByScreen(context.Background(), linear(nil), markers, Options{ThresholdPx: 35})
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	assert.InDelta(t, 11.0, clusters[0].Latitude, 1e-9)
	assert.InDelta(t, 23.0, clusters[0].Longitude, 1e-9)
	assert.Equal(t, 3, clusters[0].Count())
}

func TestByScreen_SingleKeepsOwnCoordinate(t *testing.T) {
	clusters, err := ByScreen(context.Background(), linear(nil), []domain.Marker{marker("a", 37.5, 127.1)}, Options{})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 37.5, clusters[0].Latitude)
	assert.Equal(t, 127.1, clusters[0].Longitude)
}

func TestByScreen_ExcludesInvalidCoordinates(t *testing.T) {
	markers := []domain.Marker{
		marker("nan", math.NaN(), 0),
		marker("lat", 95, 0),
		marker("lon", 0, -181),
		marker("ok", 0, 0),
	}
	clusters, err := ByScreen(context.Background(), linear(nil), markers, Options{})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"ok"}, ids(clusters[0]))
}

func TestByScreen_OrderSensitiveAnchor(t *testing.T) {
	a, b, c := marker("a", 0, 0), marker("b", 0, 30), marker("c", 0, 60)

	forward, err := ByScreen(context.Background(), linear(nil), []domain.Marker{a, b, c}, Options{ThresholdPx: 35})
	require.NoError(t, err)
	require.Len(t, forward, 2)
	assert.Equal(t, []string{"a", "b"}, ids(forward[0]))
	assert.Equal(t, []string{"c"}, ids(forward[1]))

	reverse, err := ByScreen(context.Background(), linear(nil), []domain.Marker{c, b, a}, Options{ThresholdPx: 35})
	require.NoError(t, err)
	require.Len(t, reverse, 2)
	assert.Equal(t, []string{"c", "b"}, ids(reverse[0]))
	assert.Equal(t, []string{"a"}, ids(reverse[1]))
}

func TestByScreen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := ProjectorFunc(func(ctx context.Context, c domain.Coordinate) (domain.ScreenPoint, error) {
		cancel()
		<-ctx.Done()
		return domain.ScreenPoint{}, ctx.Err()
	})

	markers := make([]domain.Marker, 50)
	for i := range markers {
		markers[i] = marker("m", float64(i), float64(i))
	}

	clusters, err := ByScreen(ctx, p, markers, Options{Concurrency: 4})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, clusters)
}
