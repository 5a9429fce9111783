package backend

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tripline/internal/core/domain"
)

const defaultPollInterval = 2 * time.Second

// TimelineConfig configures a TimelineRepository.
type TimelineConfig struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// TimelineRepository implements ports.TimelineRepository against the trip
// backend REST API.
type TimelineRepository struct {
	c            *client
	pollInterval time.Duration
}

// NewTimelineRepository creates a TimelineRepository.
func NewTimelineRepository(cfg TimelineConfig, opts ...Option) *TimelineRepository {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &TimelineRepository{
		c:            newClient("backend", cfg.BaseURL, cfg.Timeout, opts...),
		pollInterval: interval,
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

type generationResponse struct {
	Generated bool `json:"generated"`
}

func tripPath(tripHash string, parts ...string) string {
	p := "/trips/" + url.PathEscape(tripHash)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (r *TimelineRepository) FetchTimeline(ctx context.Context, tripHash string) (*domain.Timeline, error) {
	var t domain.Timeline
	if err := r.c.do(ctx, fasthttp.MethodGet, tripPath(tripHash, "timeline"), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TimelineRepository) CreateTimeline(ctx context.Context, profile domain.TripProfile) (*domain.Timeline, error) {
	var t domain.Timeline
	if err := r.c.do(ctx, fasthttp.MethodPost, tripPath(profile.TripHash, "timeline"), profile, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateOrEditSegment posts a new segment, or puts the full segment at
// profile.SegmentIndex.
func (r *TimelineRepository) CreateOrEditSegment(ctx context.Context, profile domain.SegmentProfile) (bool, error) {
	method, path := fasthttp.MethodPost, tripPath(profile.TripHash, "segments")
	if profile.SegmentIndex != nil {
		method, path = fasthttp.MethodPut, tripPath(profile.TripHash, "segments", strconv.Itoa(*profile.SegmentIndex))
	}
	var res successResponse
	if err := r.c.do(ctx, method, path, profile, &res); err != nil {
		return false, err
	}
	return res.Success, nil
}

func (r *TimelineRepository) DeleteSegment(ctx context.Context, tripHash string, index int) (bool, error) {
	var res successResponse
	if err := r.c.do(ctx, fasthttp.MethodDelete, tripPath(tripHash, "segments", strconv.Itoa(index)), nil, &res); err != nil {
		return false, err
	}
	return res.Success, nil
}

// GenerationStatus reads the current generation flag once.
func (r *TimelineRepository) GenerationStatus(ctx context.Context, tripHash string) (bool, error) {
	var res generationResponse
	if err := r.c.do(ctx, fasthttp.MethodGet, tripPath(tripHash, "generation"), nil, &res); err != nil {
		return false, err
	}
	return res.Generated, nil
}

// ObserveGenerationStatus polls the generation endpoint every poll interval,
// starting immediately. A failed request is delivered as a status with Err
// and ends the stream.
func (r *TimelineRepository) ObserveGenerationStatus(ctx context.Context, tripHash string) (<-chan domain.GenerationStatus, error) {
	ch := make(chan domain.GenerationStatus)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			generated, err := r.GenerationStatus(ctx, tripHash)
			if ctx.Err() != nil {
				return
			}
			select {
			case ch <- domain.GenerationStatus{Generated: generated, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
