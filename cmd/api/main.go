package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/neargrid/internal/adapters/http"
	natsadapter "github.com/samirrijal/neargrid/internal/adapters/nats"
	"github.com/samirrijal/neargrid/internal/adapters/postgres"
	temporaladapter "github.com/samirrijal/neargrid/internal/adapters/temporal"
	"github.com/samirrijal/neargrid/internal/adapters/valkey"
	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
	"github.com/samirrijal/neargrid/internal/core/usecases"
	"github.com/samirrijal/neargrid/internal/pkg/config"
	"github.com/samirrijal/neargrid/internal/pkg/logging"
	"github.com/samirrijal/neargrid/internal/pkg/querycache"
	"github.com/samirrijal/neargrid/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("neargrid-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "neargrid-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each API process tags the events it publishes so it can skip its own
	// echoes when they come back from JetStream.
	origin := uuid.NewString()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: db, DocsPath: os.Getenv("NEARGRID_DOCS_PATH")}

	// Cache
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Repos
	threadRepo := postgres.NewThreadRepo(db)
	commentRepo := postgres.NewCommentRepo(db)

	// Comment submission: through the Temporal saga when enabled, otherwise
	// straight to Postgres.
	var submitter ports.CommentSubmitter = usecases.NewDirectSubmitter(commentRepo, publisher, origin)
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer tc.Close()
		submitter = temporaladapter.NewSubmitter(tc, cfg.Temporal.TaskQueue, origin)
		slog.Info("comments submitted via temporal", "task_queue", cfg.Temporal.TaskQueue)
	}

	// Use cases
	store := querycache.New(
		querycache.WithStaleTime(time.Duration(cfg.Comments.CacheTTLSeconds)*time.Second),
		querycache.WithMaxEntries(cfg.Comments.CacheMaxEntries),
	)
	deps.Map = usecases.NewMapService(threadRepo, cache, usecases.MapConfig{
		ThresholdPx:     cfg.Map.ClusterThresholdPx,
		MaxRadiusMeters: cfg.Map.MaxRadiusM,
		MaxMarkers:      cfg.Map.MaxMarkers,
		CacheTTLSeconds: cfg.Map.CacheTTLSeconds,
	})
	deps.Threads = usecases.NewThreadService(threadRepo, publisher, cache)
	deps.Comments = usecases.NewCommentService(commentRepo, submitter, publisher, store, origin)

	// Keep the comment cache in step with other instances.
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("comment event subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeCommentEvents(ctx, func(ctx context.Context, ev *domain.CommentEvent) error {
			return deps.Comments.ApplyEvent(ctx, ev)
		})
		if err != nil {
			slog.Warn("subscribe comment events", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "NearGrid API",
		Immutable:    true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, http://localhost:8081",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "origin", origin)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
