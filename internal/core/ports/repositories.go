package ports

import (
	"context"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// GenerationStatusSource streams generation observations for a trip. The
// channel is closed when ctx is cancelled or the source gives up; a transport
// failure is delivered as a status with Err set.
type GenerationStatusSource interface {
	ObserveGenerationStatus(ctx context.Context, tripHash string) (<-chan domain.GenerationStatus, error)
}

// TimelineRepository is the authoritative trip backend.
type TimelineRepository interface {
	GenerationStatusSource

	FetchTimeline(ctx context.Context, tripHash string) (*domain.Timeline, error)
	CreateTimeline(ctx context.Context, profile domain.TripProfile) (*domain.Timeline, error)
	// CreateOrEditSegment creates a segment, or replaces the one at
	// profile.SegmentIndex.
	CreateOrEditSegment(ctx context.Context, profile domain.SegmentProfile) (bool, error)
	DeleteSegment(ctx context.Context, tripHash string, index int) (bool, error)
}

// RouteProvider computes travel legs between ordered waypoints.
type RouteProvider interface {
	ComputeRoute(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error)
}
