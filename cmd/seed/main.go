package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/neargrid/internal/adapters/postgres"
	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/pkg/config"
	"github.com/samirrijal/neargrid/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the threads to load. Threads may be given inline, read from
// CSV files, or scattered at random over a region for load testing.
type Manifest struct {
	Source  string         `json:"source"`
	Threads []ThreadEntry  `json:"threads"`
	CSV     []string       `json:"csv,omitempty"`
	Scatter []ScatterEntry `json:"scatter,omitempty"`
}

type ThreadEntry struct {
	ID            string  `json:"id,omitempty"`
	AuthorID      string  `json:"author_id"`
	Content       string  `json:"content"`
	ImageURL      string  `json:"image_url,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ReactionCount int     `json:"reaction_count,omitempty"`
	CommentCount  int     `json:"comment_count,omitempty"`
}

// ScatterEntry places Count threads uniformly inside a region. The same Seed
// always produces the same threads, so re-running the loader updates rather
// than duplicates them.
type ScatterEntry struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
	Count          int     `json:"count"`
	AuthorID       string  `json:"author_id"`
	Seed           int64   `json:"seed"`
}

const batchSize = 500

// seedNamespace derives stable thread ids for entries without one.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://neargrid.dev/seed"))

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("neargrid-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "neargrid-seed")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	manifestPath := "seed.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	for _, path := range manifest.CSV {
		entries, err := readCSVFile(path)
		if err != nil {
			log.Fatalf("csv %s: %v", path, err)
		}
		manifest.Threads = append(manifest.Threads, entries...)
	}

	threads := buildThreads(manifest)
	slog.Info("seeding threads", "source", manifest.Source, "threads", len(threads))

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := upsertAll(ctx, postgres.NewThreadRepo(db), threads); err != nil {
		log.Fatalf("seed: %v", err)
	}
	slog.Info("seed complete", "threads", len(threads))
}

type batchUpserter interface {
	UpsertBatch(ctx context.Context, threads []domain.Thread) error
}

// upsertAll writes threads in batches, four batches at a time.
func upsertAll(ctx context.Context, repo batchUpserter, threads []domain.Thread) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(threads); start += batchSize {
		end := min(start+batchSize, len(threads))
		chunk := threads[start:end]
		g.Go(func() error {
			if err := repo.UpsertBatch(ctx, chunk); err != nil {
				return fmt.Errorf("threads %d-%d: %w", start, end, err)
			}
			slog.Debug("batch written", "from", start, "to", end)
			return nil
		})
	}
	return g.Wait()
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &m, nil
}

// ---------------------------------------------------------------------------
// Thread assembly
// ---------------------------------------------------------------------------

// buildThreads turns manifest entries into threads, skipping entries with no
// content or an invalid location.
func buildThreads(m *Manifest) []domain.Thread {
	var out []domain.Thread
	for _, e := range m.Threads {
		t, ok := threadFromEntry(e)
		if !ok {
			slog.Warn("skipping thread entry", "id", e.ID, "latitude", e.Latitude, "longitude", e.Longitude)
			continue
		}
		out = append(out, t)
	}
	for _, s := range m.Scatter {
		out = append(out, scatter(s)...)
	}
	return out
}

func threadFromEntry(e ThreadEntry) (domain.Thread, bool) {
	loc := domain.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
	content := strings.TrimSpace(e.Content)
	if !loc.Valid() || content == "" {
		return domain.Thread{}, false
	}
	id := e.ID
	if id == "" {
		key := fmt.Sprintf("%s|%s|%.6f|%.6f", e.AuthorID, content, e.Latitude, e.Longitude)
		id = uuid.NewSHA1(seedNamespace, []byte(key)).String()
	}
	author := e.AuthorID
	if author == "" {
		author = "seed"
	}
	return domain.Thread{
		ID:            id,
		AuthorID:      author,
		Content:       content,
		ImageURL:      e.ImageURL,
		Location:      loc,
		ReactionCount: e.ReactionCount,
		CommentCount:  e.CommentCount,
	}, true
}

func scatter(s ScatterEntry) []domain.Thread {
	rng := rand.New(rand.NewSource(s.Seed))
	author := s.AuthorID
	if author == "" {
		author = "seed"
	}
	out := make([]domain.Thread, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		loc := domain.Coordinate{
			Latitude:  s.Latitude + (rng.Float64()-0.5)*s.LatitudeDelta,
			Longitude: s.Longitude + (rng.Float64()-0.5)*s.LongitudeDelta,
		}
		if !loc.Valid() {
			continue
		}
		key := fmt.Sprintf("scatter|%s|%d|%d", s.Name, s.Seed, i)
		out = append(out, domain.Thread{
			ID:            uuid.NewSHA1(seedNamespace, []byte(key)).String(),
			AuthorID:      author,
			Content:       fmt.Sprintf("%s #%d", s.Name, i+1),
			Location:      loc,
			ReactionCount: rng.Intn(50),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

func readCSVFile(path string) ([]ThreadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSV(f)
}

// readCSV parses rows with a header naming at least content, latitude and
// longitude. id, author_id, image_url and reaction_count are optional.
func readCSV(r io.Reader) ([]ThreadEntry, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"content", "latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []ThreadEntry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lat, err := strconv.ParseFloat(getField(record, cols, "latitude"), 64)
		if err != nil {
			slog.Warn("skipping csv row", "line", line, "error", err)
			continue
		}
		lon, err := strconv.ParseFloat(getField(record, cols, "longitude"), 64)
		if err != nil {
			slog.Warn("skipping csv row", "line", line, "error", err)
			continue
		}
		reactions, _ := strconv.Atoi(getField(record, cols, "reaction_count"))
		out = append(out, ThreadEntry{
			ID:            getField(record, cols, "id"),
			AuthorID:      getField(record, cols, "author_id"),
			Content:       getField(record, cols, "content"),
			ImageURL:      getField(record, cols, "image_url"),
			Latitude:      lat,
			Longitude:     lon,
			ReactionCount: reactions,
		})
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
