package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tripline/internal/adapters/valkey"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Timelines *usecases.TimelineService
	Segments  *usecases.SegmentService
	Poller    *usecases.GenerationPoller
	NATS      *nats.Conn
	Cache     *valkey.Cache

	// OpenAPIPath overrides DefaultOpenAPIPath.
	OpenAPIPath string
}
