package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

func TestBuildThreads(t *testing.T) {
	m := &Manifest{
		Threads: []ThreadEntry{
			{ID: "fixed", AuthorID: "u1", Content: "pintxos", Latitude: 43.263, Longitude: -2.935},
			{AuthorID: "u2", Content: "  guggenheim  ", Latitude: 43.2687, Longitude: -2.934},
			{Content: "nowhere", Latitude: 91, Longitude: 0},
			{Content: "   ", Latitude: 1, Longitude: 1},
		},
		Scatter: []ScatterEntry{
			{Name: "bilbao", Latitude: 43.263, Longitude: -2.935, LatitudeDelta: 0.1, LongitudeDelta: 0.1, Count: 10, Seed: 7},
		},
	}

	threads := buildThreads(m)
	require.Len(t, threads, 12)
	assert.Equal(t, "fixed", threads[0].ID)
	assert.Equal(t, "guggenheim", threads[1].Content)
	assert.NotEmpty(t, threads[1].ID)

	for _, th := range threads[2:] {
		assert.Equal(t, "seed", th.AuthorID)
		assert.InDelta(t, 43.263, th.Location.Latitude, 0.05)
		assert.InDelta(t, -2.935, th.Location.Longitude, 0.05)
	}

	again := buildThreads(m)
	for i := range threads {
		assert.Equal(t, threads[i].ID, again[i].ID, "ids must be stable across runs")
		assert.Equal(t, threads[i].Location, again[i].Location)
	}
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffid,author_id,content,latitude,longitude,reaction_count\n" +
		"a,u1,hello,43.26,-2.93,4\n" +
		"b,u1,bad lat,north,-2.93,0\n" +
		",u2,\"quoted, content\",43.27,-2.94,\n"

	entries, err := readCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ThreadEntry{ID: "a", AuthorID: "u1", Content: "hello", Latitude: 43.26, Longitude: -2.93, ReactionCount: 4}, entries[0])
	assert.Equal(t, "quoted, content", entries[1].Content)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := readCSV(strings.NewReader("content,latitude\nx,1\n"))
	assert.ErrorContains(t, err, "longitude")
}

type recordingRepo struct {
	mu      sync.Mutex
	batches [][]domain.Thread
	err     error
}

func (r *recordingRepo) UpsertBatch(ctx context.Context, threads []domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, threads)
	return r.err
}

func TestUpsertAll_Batches(t *testing.T) {
	threads := buildThreads(&Manifest{Scatter: []ScatterEntry{
		{Name: "load", Latitude: 40, Longitude: -3, LatitudeDelta: 1, LongitudeDelta: 1, Count: 1234, Seed: 1},
	}})
	require.Len(t, threads, 1234)

	repo := &recordingRepo{}
	require.NoError(t, upsertAll(context.Background(), repo, threads))

	total := 0
	for _, b := range repo.batches {
		assert.LessOrEqual(t, len(b), batchSize)
		total += len(b)
	}
	assert.Len(t, repo.batches, 3)
	assert.Equal(t, 1234, total)
}

func TestUpsertAll_Error(t *testing.T) {
	threads := buildThreads(&Manifest{Threads: []ThreadEntry{{Content: "x", Latitude: 1, Longitude: 1}}})
	repo := &recordingRepo{err: errors.New("db down")}
	assert.ErrorContains(t, upsertAll(context.Background(), repo, threads), "db down")
}
