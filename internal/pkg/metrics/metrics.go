package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tripline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Generation polling
	GenerationPollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "generation",
		Name:      "poll_attempts_total",
		Help:      "Non-generated status observations across all poll sessions",
	})

	GenerationPollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "generation",
		Name:      "poll_outcomes_total",
		Help:      "Terminal poll session states",
	}, []string{"state"})

	// Route legs
	RouteProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "routing",
		Name:      "provider_calls_total",
		Help:      "Route provider requests by result",
	}, []string{"result"})

	RouteProviderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tripline",
		Subsystem: "routing",
		Name:      "provider_duration_seconds",
		Help:      "Route provider request latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"tier"})

	// Timeline
	SegmentMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "timeline",
		Name:      "segment_mutations_total",
		Help:      "Segment create/edit/delete operations by result",
	}, []string{"op", "result"})

	TimelineRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripline",
		Subsystem: "timeline",
		Name:      "refreshes_total",
		Help:      "Full timeline re-fetches by result",
	}, []string{"result"})

	UnplaceableItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripline",
		Subsystem: "timeline",
		Name:      "unplaceable_items",
		Help:      "Segments without a resolvable date in the last merged snapshot",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripline",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Result maps an error to a "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
