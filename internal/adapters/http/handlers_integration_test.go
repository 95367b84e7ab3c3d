//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/neargrid/internal/adapters/http"
	"github.com/samirrijal/neargrid/internal/adapters/postgres"
	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/usecases"
	"github.com/samirrijal/neargrid/internal/pkg/config"
	"github.com/samirrijal/neargrid/internal/pkg/querycache"
)

// setupTestDB connects to the database named by NEARGRID_DATABASE_* and
// expects the migrations to have been applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("neargrid-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	threads := postgres.NewThreadRepo(db)
	comments := postgres.NewCommentRepo(db)
	return &handler.Dependencies{
		Map:     usecases.NewMapService(threads, nil, usecases.MapConfig{}),
		Threads: usecases.NewThreadService(threads, nil, nil),
		Comments: usecases.NewCommentService(comments,
			usecases.NewDirectSubmitter(comments, nil, "integration"), nil, querycache.New(), "integration"),
		DB: db,
	}
}

// seedThread inserts a thread at a point and returns its id.
func seedThread(t *testing.T, db *postgres.DB, lat, lon float64) string {
	var id string
	if err := db.Pool.QueryRow(context.Background(), `
		INSERT INTO threads (author_id, content, location)
		VALUES ('it-author', 'integration thread', ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography)
		RETURNING id
	`, lat, lon).Scan(&id); err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM threads WHERE id = $1`, id)
	})
	return id
}

func integrationApp(db *postgres.DB) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, setupTestDeps(db))
	return app
}

func TestClusters_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := setupTestDB(t)

	// Two threads a few meters apart and one across the estuary.
	seedThread(t, db, 43.26300, -2.93500)
	seedThread(t, db, 43.26302, -2.93502)
	seedThread(t, db, 43.28000, -2.90000)

	req := httptest.NewRequest("GET", "/v1/map/clusters?lat=43.263&lon=-2.935&lat_delta=0.05&lon_delta=0.05&width=400&height=800", nil)
	resp, err := integrationApp(db).Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res usecases.ClusterResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.MarkerCount < 3 {
		t.Fatalf("expected at least the 3 seeded markers, got %d", res.MarkerCount)
	}
	if len(res.Clusters) >= res.MarkerCount {
		t.Errorf("expected nearby markers to merge, got %d clusters for %d markers", len(res.Clusters), res.MarkerCount)
	}
}

func TestComments_Integration_PostListDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := setupTestDB(t)
	threadID := seedThread(t, db, 43.2630, -2.9350)
	app := integrationApp(db)
	base := "/v1/threads/" + threadID + "/comments"

	var ids []string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", base, strings.NewReader(fmt.Sprintf(`{"author_id":"it","content":"comment %d"}`, i)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("post %d: expected 201, got %d", i, resp.StatusCode)
		}
		var c domain.Comment
		if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	resp, err := app.Test(httptest.NewRequest("GET", base+"?limit=2", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	var page domain.CommentPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Comments) != 2 || !page.HasMore || page.Comments[0].ID != ids[2] {
		t.Fatalf("unexpected first page %+v", page)
	}

	var count int
	if err := db.Pool.QueryRow(context.Background(), `SELECT comment_count FROM threads WHERE id = $1`, threadID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected comment_count 3, got %d", count)
	}

	resp, err = app.Test(httptest.NewRequest("DELETE", base+"/"+ids[0], nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("DELETE", base+"/"+ids[0], nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestReady_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := setupTestDB(t)

	resp, err := integrationApp(db).Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCommentRepo_Integration_CreateWithIDIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := setupTestDB(t)
	threadID := seedThread(t, db, 43.263, -2.935)
	repo := postgres.NewCommentRepo(db)
	ctx := context.Background()

	id := "0b3e8c59-7d6a-4f3e-9a51-5e2f1c7d9b10"
	_, _ = db.Pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)

	first := domain.Comment{ID: id, ThreadID: threadID, AuthorID: "it-author", Content: "retried"}
	if err := repo.Create(ctx, &first); err != nil {
		t.Fatalf("first create: %v", err)
	}
	again := domain.Comment{ID: id, ThreadID: threadID, AuthorID: "it-author", Content: "retried"}
	if err := repo.Create(ctx, &again); err != nil {
		t.Fatalf("repeated create: %v", err)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("expected stored created_at %v, got %v", first.CreatedAt, again.CreatedAt)
	}

	var rows, count int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE id = $1`, id).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if err := db.Pool.QueryRow(ctx, `SELECT comment_count FROM threads WHERE id = $1`, threadID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if rows != 1 || count != 1 {
		t.Errorf("expected one row and comment_count 1, got rows=%d count=%d", rows, count)
	}
}

func TestCommentRepo_Integration_UnknownIDsAreNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := setupTestDB(t)
	ctx := context.Background()
	threads := postgres.NewThreadRepo(db)
	comments := postgres.NewCommentRepo(db)

	if _, err := threads.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID malformed id: expected ErrNotFound, got %v", err)
	}
	missing := domain.Comment{ThreadID: "5d0f6a3c-2b1e-4c8d-9f7a-000000000000", AuthorID: "it-author", Content: "orphan"}
	if err := comments.Create(ctx, &missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Create on missing thread: expected ErrNotFound, got %v", err)
	}
	if err := comments.Delete(ctx, "not-a-uuid", "also-not"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete malformed ids: expected ErrNotFound, got %v", err)
	}
	if _, err := comments.ListByThread(ctx, "not-a-uuid", nil, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ListByThread malformed id: expected ErrNotFound, got %v", err)
	}
}
