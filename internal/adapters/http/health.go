package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

const readyTimeout = 3 * time.Second

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": Version,
		})
	}
}

// readinessCheck probes one backing service. A nil probe means the service
// is not configured.
type readinessCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) error
}

func (d *Dependencies) readinessChecks() []readinessCheck {
	checks := []readinessCheck{{name: "database", required: true}}
	if d.DB != nil {
		checks[0].probe = d.DB.Ping
	}

	nats := readinessCheck{name: "nats"}
	if d.NATS != nil {
		nc := d.NATS
		nats.probe = func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}

	cache := readinessCheck{name: "cache"}
	if d.Cache != nil {
		cache.probe = d.Cache.Ping
	}
	return append(checks, nats, cache)
}

// ReadyHandler checks DB, NATS, and cache connectivity. The database is
// required; NATS and the cache only fail readiness when configured and down.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()

		results := make(map[string]string)
		ready := true
		for _, chk := range deps.readinessChecks() {
			switch {
			case chk.probe == nil:
				results[chk.name] = "not configured"
				if chk.required {
					ready = false
				}
			default:
				if err := chk.probe(ctx); err != nil {
					results[chk.name] = "error: " + err.Error()
					ready = false
				} else {
					results[chk.name] = "ok"
				}
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
