package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const apiVersion = "1.0.0"

// HealthHandler reports liveness with the number of trips held in memory.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"service": "tripline",
			"version": apiVersion,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
		}
		if deps.Timelines != nil {
			body["trips_loaded"] = deps.Timelines.TripCount()
		}
		return c.JSON(body)
	}
}

type readinessCheck struct {
	name     string
	optional bool
	run      func(ctx context.Context) string
}

// ReadyHandler fails while the trip services are missing or a configured
// NATS or Valkey connection is down. An unconfigured NATS or Valkey is
// reported but does not fail readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := []readinessCheck{
		{name: "timelines", run: func(context.Context) string {
			if deps.Timelines == nil || deps.Segments == nil || deps.Poller == nil {
				return "not configured"
			}
			return "ok"
		}},
		{name: "nats", optional: deps.NATS == nil, run: func(context.Context) string {
			switch {
			case deps.NATS == nil:
				return "not configured"
			case !deps.NATS.IsConnected():
				return "disconnected"
			}
			return "ok"
		}},
		{name: "route_cache", optional: deps.Cache == nil, run: func(ctx context.Context) string {
			if deps.Cache == nil {
				return "not configured"
			}
			if err := deps.Cache.Ping(ctx); err != nil {
				return "error: " + err.Error()
			}
			return "ok"
		}},
	}

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			res := chk.run(ctx)
			results[chk.name] = res
			if res != "ok" && !chk.optional {
				ready = false
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
