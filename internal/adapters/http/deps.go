package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neargrid/internal/core/usecases"
)

// Pinger is a backing service the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Map      *usecases.MapService
	Threads  *usecases.ThreadService
	Comments *usecases.CommentService
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	// DocsPath is the OpenAPI document served at /docs/openapi.yaml.
	DocsPath string
}
