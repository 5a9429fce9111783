package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/tripline/internal/pkg/metrics"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = maxWait + 15*time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", apiVersion)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	read := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, readTimeout) }
	write := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, writeTimeout) }

	trips := v1.Group("/trips/:hash")
	trips.Get("/", read(GetTripHandler(deps)))
	trips.Post("/", write(CreateTripHandler(deps)))
	trips.Post("/refresh", read(RefreshTripHandler(deps)))
	trips.Get("/days", read(ListDaysHandler(deps)))
	trips.Get("/days/:day", read(GetDayHandler(deps)))
	trips.Get("/days/:day/map", read(MapPointsHandler(deps)))
	trips.Get("/days/:day/legs", read(LegsHandler(deps)))
	trips.Put("/selected-day", read(SelectDayHandler(deps)))
	trips.Get("/unplaceable", read(UnplaceableHandler(deps)))
	trips.Get("/favourites", read(GetFavouritesHandler(deps)))
	trips.Put("/favourites", read(PutFavouritesHandler(deps)))
	trips.Post("/segments", write(CreateSegmentHandler(deps)))
	trips.Patch("/segments/:index/time", write(EditSegmentTimeHandler(deps)))
	trips.Delete("/segments/:index", write(DeleteSegmentHandler(deps)))
	trips.Get("/generation", read(GenerationStatusHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.OpenAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
