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

	"github.com/samirrijal/tripline/internal/adapters/backend"
	"github.com/samirrijal/tripline/internal/adapters/http"
	natsadapter "github.com/samirrijal/tripline/internal/adapters/nats"
	"github.com/samirrijal/tripline/internal/adapters/valkey"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/core/usecases"
	"github.com/samirrijal/tripline/internal/pkg/config"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("tripline-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

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

	// Trip backend and routing service
	repo := backend.NewTimelineRepository(backend.TimelineConfig{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      time.Duration(cfg.Backend.Timeout) * time.Second,
		PollInterval: time.Duration(cfg.Backend.PollIntervalMs) * time.Millisecond,
	})
	routing := backend.NewRouteProvider(backend.RoutingConfig{
		BaseURL: cfg.Routing.BaseURL,
		Profile: cfg.Routing.Profile,
		Timeout: time.Duration(cfg.Routing.Timeout) * time.Second,
	})

	// Shared route-leg cache
	var shared ports.CacheService
	var cache *valkey.Cache
	if cfg.RouteCache.Shared {
		cache, err = valkey.New(cfg.Valkey.Addr, "tripline:")
		if err != nil {
			slog.Warn("valkey unavailable, route cache is process-local", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			shared = cache
		}
	}

	// NATS: timeline events out, generation observations in
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, timeline events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	var source ports.GenerationStatusSource = repo
	if cfg.Poller.Source == "nats" {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats generation source: %v", err)
		}
		defer sub.Close()
		source = sub
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	poller := usecases.NewGenerationPoller(source, usecases.PollerConfig{MaxAttempts: cfg.Poller.MaxAttempts})
	defer poller.Close()

	timelines := usecases.NewTimelineService(repo, routing, shared, publisher, usecases.TimelineServiceConfig{
		RouteTTL: time.Duration(cfg.RouteCache.TTLSeconds) * time.Second,
	})
	segments := usecases.NewSegmentService(repo, poller, timelines, usecases.SegmentServiceConfig{})

	deps := &http.Dependencies{
		Timelines: timelines,
		Segments:  segments,
		Poller:    poller,
		NATS:      natsConn,
		Cache:     cache,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Tripline API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "generation_source", cfg.Poller.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
