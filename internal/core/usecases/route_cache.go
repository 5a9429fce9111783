package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/pkg/geospatial"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/metrics"
	"github.com/samirrijal/tripline/internal/pkg/telemetry"
)

// RouteCacheConfig configures a RouteCache.
type RouteCacheConfig struct {
	// Namespace scopes shared-tier keys, usually the trip hash.
	Namespace string
	// TTL applies to the shared tier only.
	TTL time.Duration
}

// RouteCache memoizes travel legs by coordinate pair. Entries live until
// Clear, which the owning session calls when its snapshot is replaced.
type RouteCache struct {
	provider ports.RouteProvider
	shared   ports.CacheService
	cfg      RouteCacheConfig
	logger   *slog.Logger

	mu         sync.Mutex
	legs       map[string]domain.RouteLeg
	sharedKeys map[string]struct{}
}

// NewRouteCache creates a RouteCache. shared may be nil.
func NewRouteCache(provider ports.RouteProvider, shared ports.CacheService, cfg RouteCacheConfig) *RouteCache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &RouteCache{
		provider:   provider,
		shared:     shared,
		cfg:        cfg,
		logger:     logging.Component("route-cache"),
		legs:       make(map[string]domain.RouteLeg),
		sharedKeys: make(map[string]struct{}),
	}
}

// LegKey is the cache key of the leg from a to b, with coordinates rounded to
// six decimals.
func LegKey(a, b domain.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f-%.6f,%.6f", norm(a.Lat), norm(a.Lon), norm(b.Lat), norm(b.Lon))
}

func norm(v float64) float64 {
	v = geospatial.Round6(v)
	if v == 0 {
		return 0 // drop negative zero
	}
	return v
}

// ResolveLegs delivers the leg between every pair of consecutive waypoints.
// Cached legs are delivered immediately; the rest are fetched in a single
// provider call and delivered one by one as they are cached.
func (c *RouteCache) ResolveLegs(ctx context.Context, waypoints []domain.GeoPoint, onLegReady func(legIndex int, leg domain.RouteLeg)) error {
	if len(waypoints) < 2 {
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "RouteCache.ResolveLegs")
	defer span.End()
	span.SetAttributes(attribute.Int("waypoints", len(waypoints)))

	missing := make(map[int]bool)
	for i := 0; i < len(waypoints)-1; i++ {
		if leg, ok := c.lookup(ctx, LegKey(waypoints[i], waypoints[i+1])); ok {
			onLegReady(i, leg)
			continue
		}
		missing[i] = true
	}
	if len(missing) == 0 {
		return nil
	}
	span.SetAttributes(attribute.Int("uncached_legs", len(missing)))

	// Chain the uncached legs into one request. reqIdx[k] is the waypoint
	// index behind request waypoint k.
	var reqIdx []int
	for i := 0; i < len(waypoints)-1; i++ {
		if !missing[i] {
			continue
		}
		if n := len(reqIdx); n == 0 || reqIdx[n-1] != i {
			reqIdx = append(reqIdx, i)
		}
		reqIdx = append(reqIdx, i+1)
	}
	req := make([]domain.GeoPoint, len(reqIdx))
	for k, idx := range reqIdx {
		req[k] = waypoints[idx]
	}

	start := time.Now()
	route, err := c.provider.ComputeRoute(ctx, req)
	metrics.RouteProviderDuration.Observe(time.Since(start).Seconds())
	if err == nil && (route == nil || len(route.Legs) != len(req)-1) {
		got := 0
		if route != nil {
			got = len(route.Legs)
		}
		err = fmt.Errorf("expected %d legs, got %d", len(req)-1, got)
	}
	metrics.RouteProviderCalls.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return &domain.TransportError{Op: "compute route", Err: err}
	}

	for k, leg := range route.Legs {
		from, to := reqIdx[k], reqIdx[k+1]
		c.store(ctx, LegKey(req[k], req[k+1]), leg)
		if to == from+1 && missing[from] {
			onLegReady(from, leg)
		}
	}
	return nil
}

// Clear drops every cached leg, including the shared-tier keys this cache wrote.
func (c *RouteCache) Clear(ctx context.Context) {
	c.mu.Lock()
	keys := c.sharedKeys
	c.legs = make(map[string]domain.RouteLeg)
	c.sharedKeys = make(map[string]struct{})
	c.mu.Unlock()

	if c.shared == nil {
		return
	}
	for k := range keys {
		if err := c.shared.Delete(ctx, k); err != nil {
			c.logger.Warn("shared leg delete failed", "key", k, "error", err)
		}
	}
}

// Len returns the number of legs held in memory.
func (c *RouteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.legs)
}

func (c *RouteCache) lookup(ctx context.Context, key string) (domain.RouteLeg, bool) {
	c.mu.Lock()
	leg, ok := c.legs[key]
	c.mu.Unlock()
	if ok {
		metrics.CacheHits.WithLabelValues("route_memory").Inc()
		return leg, true
	}
	metrics.CacheMisses.WithLabelValues("route_memory").Inc()

	if c.shared == nil {
		return domain.RouteLeg{}, false
	}
	data, err := c.shared.Get(ctx, c.sharedKey(key))
	if err != nil {
		metrics.CacheMisses.WithLabelValues("route_shared").Inc()
		return domain.RouteLeg{}, false
	}
	if err := json.Unmarshal(data, &leg); err != nil {
		metrics.CacheMisses.WithLabelValues("route_shared").Inc()
		return domain.RouteLeg{}, false
	}
	metrics.CacheHits.WithLabelValues("route_shared").Inc()

	c.mu.Lock()
	c.legs[key] = leg
	c.sharedKeys[c.sharedKey(key)] = struct{}{}
	c.mu.Unlock()
	return leg, true
}

func (c *RouteCache) store(ctx context.Context, key string, leg domain.RouteLeg) {
	c.mu.Lock()
	c.legs[key] = leg
	c.mu.Unlock()

	if c.shared == nil {
		return
	}
	data, err := json.Marshal(leg)
	if err != nil {
		return
	}
	sk := c.sharedKey(key)
	if err := c.shared.Set(ctx, sk, data, int(c.cfg.TTL.Seconds())); err != nil {
		c.logger.Warn("shared leg write failed", "key", sk, "error", err)
		return
	}
	c.mu.Lock()
	c.sharedKeys[sk] = struct{}{}
	c.mu.Unlock()
}

func (c *RouteCache) sharedKey(key string) string {
	return "routes:leg:" + c.cfg.Namespace + ":" + key
}
