package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/neargrid/internal/pkg/config"
	"github.com/samirrijal/neargrid/internal/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("neargrid-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up", "down":
		files, err := migrationFiles(migrationsFS, os.Args[1])
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		if err := apply(ctx, pool, files); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// migrationFiles returns the embedded files for direction in the order they
// must run: ascending for up, descending for down.
func migrationFiles(fsys fs.FS, direction string) ([]string, error) {
	files, err := fs.Glob(fsys, "migrations/*."+direction+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	for _, f := range files {
		data, err := migrationsFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Info("migration applied", "file", strings.TrimPrefix(f, "migrations/"))
	}
	slog.Info("all migrations applied", "count", len(files))
	return nil
}
