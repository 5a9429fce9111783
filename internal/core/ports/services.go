package ports

import (
	"context"
)

// TimelineEvent is broadcast after a trip's snapshot changes.
type TimelineEvent struct {
	TripHash string `json:"trip_hash"`
	Kind     string `json:"kind"` // "refreshed" | "generation"
	Days     int    `json:"days,omitempty"`
	State    string `json:"state,omitempty"`
}

// EventPublisher publishes timeline events to a message broker.
type EventPublisher interface {
	PublishTimelineEvent(ctx context.Context, event TimelineEvent) error
}

// CacheService provides shared byte caching with TTL.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
