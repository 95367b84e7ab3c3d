package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/neargrid/internal/adapters/nats"
	"github.com/samirrijal/neargrid/internal/adapters/postgres"
	"github.com/samirrijal/neargrid/internal/pkg/config"
	"github.com/samirrijal/neargrid/internal/pkg/logging"
	"github.com/samirrijal/neargrid/internal/pkg/telemetry"
	"github.com/samirrijal/neargrid/internal/workflows"
)

func main() {
	cfg, err := config.Load("neargrid-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "neargrid-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	activities := &workflows.CommentActivities{Comments: postgres.NewCommentRepo(db)}
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, comment events will not be published", "error", err)
	} else {
		defer p.Close()
		activities.Publisher = p
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PublishCommentWorkflow)
	w.RegisterActivity(activities)

	slog.Info("comment worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
