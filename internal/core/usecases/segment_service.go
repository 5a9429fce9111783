package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/pkg/geospatial"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/metrics"
	"github.com/samirrijal/tripline/internal/pkg/telemetry"
)

// DefaultCenterTolerance is the distance in meters under which a starting
// point counts as the city centre.
const DefaultCenterTolerance = 10.0

var errRejected = errors.New("backend rejected the request")

// SegmentServiceConfig configures a SegmentService.
type SegmentServiceConfig struct {
	CenterTolerance float64
}

// CreateSegmentRequest asks the backend to generate an itinerary segment.
type CreateSegmentRequest struct {
	TripHash           string           `json:"-"`
	CityID             string           `json:"city_id"`
	StartDate          string           `json:"start_date"` // yyyy-MM-dd HH:mm
	EndDate            string           `json:"end_date"`
	StartingPoint      *domain.GeoPoint `json:"starting_point"`
	StartingPointLabel string           `json:"starting_point_label,omitempty"`
	Category           string           `json:"category,omitempty"`
}

// Validate reports every missing or malformed field.
func (r CreateSegmentRequest) Validate() error {
	var fields []string
	if strings.TrimSpace(r.TripHash) == "" {
		fields = append(fields, "trip_hash")
	}
	if strings.TrimSpace(r.CityID) == "" {
		fields = append(fields, "city_id")
	}
	start, startOK := domain.NormalizeDateTime(r.StartDate)
	end, endOK := domain.NormalizeDateTime(r.EndDate)
	if !startOK {
		fields = append(fields, "start_date")
	}
	if !endOK {
		fields = append(fields, "end_date")
	}
	if startOK && endOK && end < start {
		fields = append(fields, "end_date")
	}
	if r.StartingPoint == nil {
		fields = append(fields, "starting_point")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// SegmentService creates, time-edits and deletes segments. Every successful
// write is followed by a full refresh of the trip.
type SegmentService struct {
	repo      ports.TimelineRepository
	poller    *GenerationPoller
	timelines *TimelineService
	cfg       SegmentServiceConfig
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSegmentService creates a SegmentService.
func NewSegmentService(repo ports.TimelineRepository, poller *GenerationPoller, timelines *TimelineService, cfg SegmentServiceConfig) *SegmentService {
	if cfg.CenterTolerance <= 0 {
		cfg.CenterTolerance = DefaultCenterTolerance
	}
	return &SegmentService{
		repo:      repo,
		poller:    poller,
		timelines: timelines,
		cfg:       cfg,
		logger:    logging.Component("segments"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// CreateSmartSegment submits a generated itinerary segment and starts polling
// for its content. The returned session refreshes the trip once generation is
// observed.
func (s *SegmentService) CreateSmartSegment(ctx context.Context, req CreateSegmentRequest) (*PollSession, error) {
	if err := req.Validate(); err != nil {
		metrics.SegmentMutations.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "SegmentService.CreateSmartSegment")
	defer span.End()
	span.SetAttributes(attribute.String("trip.hash", req.TripHash), attribute.String("city.id", req.CityID))

	unlock := s.lock(req.TripHash)
	defer unlock()

	if _, err := s.timelines.Load(ctx, req.TripHash); err != nil {
		metrics.SegmentMutations.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	t, err := s.timelines.Snapshot(req.TripHash)
	if err != nil {
		return nil, err
	}
	if !tripCity(t, req.CityID) {
		metrics.SegmentMutations.WithLabelValues("create", "invalid").Inc()
		return nil, &domain.ValidationError{Fields: []string{"city_id"}}
	}

	profile := s.buildCreatePayload(t, s.timelines.Favourites(req.TripHash), req)
	ok, err := s.repo.CreateOrEditSegment(ctx, profile)
	if err == nil && !ok {
		err = errRejected
	}
	if err != nil {
		span.RecordError(err)
		metrics.SegmentMutations.WithLabelValues("create", "error").Inc()
		return nil, &domain.TransportError{Op: "create segment", Err: err}
	}
	metrics.SegmentMutations.WithLabelValues("create", "ok").Inc()
	s.logger.Info("segment created", "trip", req.TripHash, "title", profile.Segment.Title)

	return s.poller.Start(ctx, req.TripHash, s.refresh(req.TripHash))
}

// tripCity reports whether cityID is the trip's city or the city of one of
// its segments. Only the trip's own city has a known centre.
func tripCity(t *domain.Timeline, cityID string) bool {
	if cityID == t.TripProfile.CityID || (t.City != nil && cityID == t.City.ID) {
		return true
	}
	for _, seg := range t.TripProfile.Segments {
		if seg.CityID == cityID {
			return true
		}
	}
	return false
}

func (s *SegmentService) buildCreatePayload(t *domain.Timeline, favourites []domain.FavoriteItem, req CreateSegmentRequest) domain.SegmentProfile {
	start, _ := domain.NormalizeDateTime(req.StartDate)
	end, _ := domain.NormalizeDateTime(req.EndDate)

	cityName := ""
	var center *domain.GeoPoint
	if t.City != nil && t.City.ID == req.CityID {
		cityName = t.City.Name
		c := t.City.Center
		center = &c
	}

	seg := domain.Segment{
		Type:      domain.SegmentItinerary,
		Title:     NextRecommendationsTitle(t, req.CityID, cityName, domain.DatePart(start)),
		StartDate: &start,
		EndDate:   &end,
		City:      cityName,
		CityID:    req.CityID,
		Category:  strings.TrimSpace(req.Category),
	}

	p := *req.StartingPoint
	if center == nil || !geospatial.Within(p.Lat, p.Lon, center.Lat, center.Lon, s.cfg.CenterTolerance) {
		seg.Coordinate = &p
		if label := strings.TrimSpace(req.StartingPointLabel); label != "" {
			seg.Accommodation = &label
		}
	}

	booked := BookedActivityIDs(t)
	seg.IncludeActivityIDs = FavouriteActivityIDs(favourites, booked)
	seg.ExcludeActivityIDs = booked

	return domain.SegmentProfile{
		TripHash: req.TripHash,
		CityID:   req.CityID,
		Adults:   t.TripProfile.Adults,
		Children: t.TripProfile.Children,
		Segment:  seg,
	}
}

// EditSegmentTime replaces the time of day of the segment at index, keeping
// its dates. Itinerary segments regenerate, so the refresh waits on the
// returned poll session; other segments are refreshed before returning and
// the session is nil.
func (s *SegmentService) EditSegmentTime(ctx context.Context, tripHash string, index int, startTime, endTime string) (*PollSession, error) {
	var fields []string
	startTime, startOK := domain.NormalizeClock(startTime)
	if !startOK {
		fields = append(fields, "start_time")
	}
	endTime, endOK := domain.NormalizeClock(endTime)
	if !endOK {
		fields = append(fields, "end_time")
	}
	if len(fields) > 0 {
		metrics.SegmentMutations.WithLabelValues("edit", "invalid").Inc()
		return nil, &domain.ValidationError{Fields: fields}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "SegmentService.EditSegmentTime")
	defer span.End()
	span.SetAttributes(attribute.String("trip.hash", tripHash), attribute.Int("segment.index", index))

	unlock := s.lock(tripHash)
	defer unlock()

	t, err := s.current(ctx, tripHash, index)
	if err != nil {
		metrics.SegmentMutations.WithLabelValues("edit", "invalid").Inc()
		return nil, err
	}

	seg := t.TripProfile.Segments[index]
	if seg.IsActivity() {
		metrics.SegmentMutations.WithLabelValues("edit", "invalid").Inc()
		return nil, &domain.ValidationError{Fields: []string{"type"}}
	}
	plan := matchPlan(seg, t.Plans)
	startDay := domain.DatePart(domain.ResolveStartDate(seg, plan))
	if startDay == "" {
		metrics.SegmentMutations.WithLabelValues("edit", "invalid").Inc()
		return nil, &domain.ValidationError{Fields: []string{"start_date"}}
	}
	endDay := domain.DatePart(domain.ResolveEndDate(seg, plan))
	if endDay == "" || endDay < startDay {
		endDay = startDay
	}

	start := domain.ComposeDateTime(startDay, startTime)
	end := domain.ComposeDateTime(endDay, endTime)
	if end < start {
		metrics.SegmentMutations.WithLabelValues("edit", "invalid").Inc()
		return nil, &domain.ValidationError{Fields: []string{"end_time"}}
	}
	seg.StartDate = &start
	seg.EndDate = &end

	idx := index
	profile := domain.SegmentProfile{
		TripHash:     tripHash,
		SegmentIndex: &idx,
		CityID:       firstNonBlank(seg.CityID, t.TripProfile.CityID),
		Adults:       t.TripProfile.Adults,
		Children:     t.TripProfile.Children,
		Segment:      seg,
	}
	ok, err := s.repo.CreateOrEditSegment(ctx, profile)
	if err == nil && !ok {
		err = errRejected
	}
	if err != nil {
		span.RecordError(err)
		metrics.SegmentMutations.WithLabelValues("edit", "error").Inc()
		return nil, &domain.TransportError{Op: "edit segment", Err: err}
	}
	metrics.SegmentMutations.WithLabelValues("edit", "ok").Inc()
	s.logger.Info("segment time edited", "trip", tripHash, "index", index, "start", start, "end", end)

	if seg.Type == domain.SegmentItinerary {
		return s.poller.Start(ctx, tripHash, s.refresh(tripHash))
	}
	return nil, s.refresh(tripHash)(ctx)
}

// DeleteSegment deletes the segment at index and refreshes the trip.
func (s *SegmentService) DeleteSegment(ctx context.Context, tripHash string, index int) error {
	ctx, span := telemetry.Tracer().Start(ctx, "SegmentService.DeleteSegment")
	defer span.End()
	span.SetAttributes(attribute.String("trip.hash", tripHash), attribute.Int("segment.index", index))

	unlock := s.lock(tripHash)
	defer unlock()

	if _, err := s.current(ctx, tripHash, index); err != nil {
		metrics.SegmentMutations.WithLabelValues("delete", "invalid").Inc()
		return err
	}

	ok, err := s.repo.DeleteSegment(ctx, tripHash, index)
	if err == nil && !ok {
		err = errRejected
	}
	if err != nil {
		span.RecordError(err)
		metrics.SegmentMutations.WithLabelValues("delete", "error").Inc()
		return &domain.TransportError{Op: "delete segment", Err: err}
	}
	metrics.SegmentMutations.WithLabelValues("delete", "ok").Inc()
	s.logger.Info("segment deleted", "trip", tripHash, "index", index)

	return s.refresh(tripHash)(ctx)
}

// current loads the trip and checks that index addresses one of its segments.
func (s *SegmentService) current(ctx context.Context, tripHash string, index int) (*domain.Timeline, error) {
	if _, err := s.timelines.Load(ctx, tripHash); err != nil {
		return nil, err
	}
	t, err := s.timelines.Snapshot(tripHash)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(t.TripProfile.Segments) || t.TripProfile.Segments[index].IsPlaceholder() {
		return nil, &domain.IdentityError{TripHash: tripHash, Index: index}
	}
	return t, nil
}

func (s *SegmentService) refresh(tripHash string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.timelines.Refresh(ctx, tripHash)
		return err
	}
}

func (s *SegmentService) lock(tripHash string) func() {
	s.mu.Lock()
	l, ok := s.locks[tripHash]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tripHash] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
