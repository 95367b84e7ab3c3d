package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/neargrid/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// NearbySunset is when the flat /v1/map/nearby listing goes away.
var NearbySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/map/nearby", SunsetDate: NearbySunset, Alternative: "/v1/map/clusters"},
	}))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Get("/map/clusters", timeout.NewWithContext(ClustersHandler(deps), requestTimeout))
	v1.Get("/map/clusters.geojson", timeout.NewWithContext(ClustersGeoJSONHandler(deps), requestTimeout))
	v1.Get("/map/search-area", timeout.NewWithContext(SearchAreaHandler(deps), requestTimeout))
	v1.Get("/map/nearby", timeout.NewWithContext(NearbyThreadsHandler(deps), requestTimeout))

	v1.Post("/threads", timeout.NewWithContext(CreateThreadHandler(deps), requestTimeout))
	v1.Get("/threads/:id", timeout.NewWithContext(GetThreadHandler(deps), requestTimeout))
	v1.Get("/threads/:id/comments", timeout.NewWithContext(ListCommentsHandler(deps), requestTimeout))
	v1.Post("/threads/:id/comments", timeout.NewWithContext(PostCommentHandler(deps), requestTimeout))
	v1.Delete("/threads/:id/comments/:commentId", timeout.NewWithContext(DeleteCommentHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.DocsPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
