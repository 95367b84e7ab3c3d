package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/pkg/geospatial"
)

// ThreadRepo implements ports.ThreadRepository with pgx and PostGIS.
type ThreadRepo struct {
	db *DB
}

// NewThreadRepo creates a new ThreadRepo.
func NewThreadRepo(db *DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

const threadColumns = `
	id, author_id, content, COALESCE(image_url, ''),
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	reaction_count, comment_count, created_at`

func scanThread(row pgx.Row, extra ...any) (*domain.Thread, error) {
	var t domain.Thread
	dest := []any{
		&t.ID, &t.AuthorID, &t.Content, &t.ImageURL,
		&t.Location.Latitude, &t.Location.Longitude,
		&t.ReactionCount, &t.CommentCount, &t.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a thread and fills in its generated id and timestamp.
func (r *ThreadRepo) Create(ctx context.Context, t *domain.Thread) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO threads (author_id, content, image_url, location)
		VALUES ($1, $2, NULLIF($3, ''), ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography)
		RETURNING id, created_at
	`, t.AuthorID, t.Content, t.ImageURL, t.Location.Longitude, t.Location.Latitude).
		Scan(&t.ID, &t.CreatedAt)
}

// UpsertBatch inserts many threads using pgx.Batch. Threads carry their own ids.
func (r *ThreadRepo) UpsertBatch(ctx context.Context, threads []domain.Thread) error {
	batch := &pgx.Batch{}
	for _, t := range threads {
		batch.Queue(`
			INSERT INTO threads (id, author_id, content, image_url, location, reaction_count, comment_count)
			VALUES ($1, $2, $3, NULLIF($4, ''), ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content, image_url = EXCLUDED.image_url, location = EXCLUDED.location,
			    reaction_count = EXCLUDED.reaction_count, comment_count = EXCLUDED.comment_count
		`, t.ID, t.AuthorID, t.Content, t.ImageURL, t.Location.Longitude, t.Location.Latitude,
			t.ReactionCount, t.CommentCount)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range threads {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a thread by UUID.
func (r *ThreadRepo) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	t, err := scanThread(r.db.Pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = $1`, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return t, nil
}

// FindNearby returns threads within radiusMeters using PostGIS ST_DWithin,
// closest first. A bounding-box && test runs first so the GIST index does
// the coarse cut.
func (r *ThreadRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Thread, error) {
	box := searchBounds(lat, lon, radiusMeters)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+threadColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM threads
		WHERE location && ST_MakeEnvelope($5, $6, $7, $8, 4326)::geography
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit, box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []domain.Thread{}
	for rows.Next() {
		var dist float64
		t, err := scanThread(rows, &dist)
		if err != nil {
			return nil, err
		}
		t.Distance = &dist
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

// searchBounds is the envelope used to pre-filter FindNearby. Boxes that
// would wrap the antimeridian or reach a pole fall back to the whole world.
func searchBounds(lat, lon, radiusMeters float64) domain.Bounds {
	b := geospatial.BoundingBox(lat, lon, radiusMeters)
	world := domain.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	if math.IsNaN(b.MinLon) || math.IsInf(b.MinLon, 0) || b.MinLon < -180 || b.MaxLon > 180 {
		b.MinLon, b.MaxLon = world.MinLon, world.MaxLon
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return world
	}
	return b
}
