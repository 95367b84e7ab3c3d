package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on successful GET requests
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() >= 400 {
			return err
		}

		// Don't override if already set
		if existing := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); existing != "" {
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10" // Very short for system checks

	case path == "/metrics":
		return "no-cache" // Metrics are real-time

	case path == "/graphql":
		return "private, max-age=0"

	case strings.HasSuffix(path, "/comments"):
		return "no-cache" // Comments change optimistically under the client

	case strings.HasPrefix(path, "/v1/map/"):
		return "public, max-age=30" // Matches the nearby-thread cache TTL

	case strings.HasPrefix(path, "/v1/threads/"):
		return "public, max-age=60"

	case path == "/docs" || strings.HasPrefix(path, "/docs/"):
		return "public, max-age=3600"

	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=60"
	}
	return ""
}
