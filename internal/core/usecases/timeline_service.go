package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/metrics"
	"github.com/samirrijal/tripline/internal/pkg/telemetry"
)

// TimelineServiceConfig configures a TimelineService.
type TimelineServiceConfig struct {
	RouteTTL time.Duration
}

// TimelineService owns the per-trip snapshots. A snapshot is only ever
// replaced wholesale by a fetch, never patched.
type TimelineService struct {
	repo      ports.TimelineRepository
	provider  ports.RouteProvider
	shared    ports.CacheService
	publisher ports.EventPublisher
	cfg       TimelineServiceConfig
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*tripSession
}

type tripSession struct {
	timeline   *domain.Timeline
	view       *TimelineView
	favourites []domain.FavoriteItem
	routes     *RouteCache

	// issued counts fetches started; installed is the issue number of the
	// snapshot in view. A fetch older than installed is discarded.
	issued    uint64
	installed uint64
}

// NewTimelineService creates a TimelineService. shared and publisher may be nil.
func NewTimelineService(
	repo ports.TimelineRepository,
	provider ports.RouteProvider,
	shared ports.CacheService,
	publisher ports.EventPublisher,
	cfg TimelineServiceConfig,
) *TimelineService {
	return &TimelineService{
		repo:      repo,
		provider:  provider,
		shared:    shared,
		publisher: publisher,
		cfg:       cfg,
		logger:    logging.Component("timeline"),
		sessions:  make(map[string]*tripSession),
	}
}

// Load returns the trip's view, fetching it on first use.
func (s *TimelineService) Load(ctx context.Context, tripHash string) (*TimelineView, error) {
	if v, err := s.View(tripHash); err == nil {
		return v, nil
	}
	return s.Refresh(ctx, tripHash)
}

// Refresh fetches the trip, re-attaches locally held favourites, replaces the
// snapshot and clears the trip's route cache.
func (s *TimelineService) Refresh(ctx context.Context, tripHash string) (*TimelineView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TimelineService.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("trip.hash", tripHash))

	seq := s.beginFetch(tripHash)
	t, err := s.repo.FetchTimeline(ctx, tripHash)
	if err == nil && t == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		span.RecordError(err)
		metrics.TimelineRefreshes.WithLabelValues("error").Inc()
		return nil, &domain.TransportError{Op: "fetch timeline", Err: err}
	}
	metrics.TimelineRefreshes.WithLabelValues("ok").Inc()
	return s.install(ctx, tripHash, t, seq), nil
}

// CreateTimeline creates a trip on the backend and installs the returned snapshot.
func (s *TimelineService) CreateTimeline(ctx context.Context, profile domain.TripProfile) (*TimelineView, error) {
	var missing []string
	if profile.TripHash == "" {
		missing = append(missing, "trip_hash")
	}
	if profile.CityID == "" {
		missing = append(missing, "city_id")
	}
	if profile.Adults+profile.Children <= 0 {
		missing = append(missing, "travellers")
	}
	if len(missing) > 0 {
		return nil, &domain.ValidationError{Fields: missing}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "TimelineService.CreateTimeline")
	defer span.End()

	seq := s.beginFetch(profile.TripHash)
	t, err := s.repo.CreateTimeline(ctx, profile)
	if err == nil && t == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		span.RecordError(err)
		return nil, &domain.TransportError{Op: "create timeline", Err: err}
	}
	return s.install(ctx, profile.TripHash, t, seq), nil
}

// beginFetch numbers a fetch of the trip before it is sent.
func (s *TimelineService) beginFetch(tripHash string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(tripHash)
	sess.issued++
	return sess.issued
}

// session returns the trip's session, creating it. s.mu must be held.
func (s *TimelineService) session(tripHash string) *tripSession {
	sess := s.sessions[tripHash]
	if sess == nil {
		sess = &tripSession{}
		s.sessions[tripHash] = sess
	}
	return sess
}

func (s *TimelineService) install(ctx context.Context, tripHash string, t *domain.Timeline, seq uint64) *TimelineView {
	if t.TripHash == "" {
		t.TripHash = tripHash
	}

	s.mu.Lock()
	sess := s.session(tripHash)
	if seq < sess.installed && sess.view != nil {
		current, installed := sess.view, sess.installed
		s.mu.Unlock()
		s.logger.Debug("stale timeline fetch discarded", "trip", tripHash, "fetch", seq, "installed", installed)
		return current
	}
	sess.installed = seq
	if len(sess.favourites) > 0 {
		t.FavouriteItems = append([]domain.FavoriteItem(nil), sess.favourites...)
	} else if len(t.FavouriteItems) > 0 {
		sess.favourites = append([]domain.FavoriteItem(nil), t.FavouriteItems...)
	}

	view := NewTimelineView(t)
	if sess.view != nil {
		if sel := sess.view.SelectedDay(); sel < view.NumberOfDays() {
			_ = view.SelectDay(sel)
		}
	}
	sess.timeline = t
	sess.view = view
	if sess.routes == nil {
		sess.routes = NewRouteCache(s.provider, s.shared, RouteCacheConfig{Namespace: tripHash, TTL: s.cfg.RouteTTL})
	}
	routes := sess.routes
	s.mu.Unlock()

	routes.Clear(ctx)

	unplaceable := len(view.Unplaceable())
	metrics.UnplaceableItems.Set(float64(unplaceable))
	s.logger.Info("timeline replaced",
		"trip", tripHash,
		"segments", len(t.TripProfile.Segments),
		"plans", len(t.Plans),
		"days", view.NumberOfDays(),
		"unplaceable", unplaceable,
	)

	if s.publisher != nil {
		ev := ports.TimelineEvent{TripHash: tripHash, Kind: "refreshed", Days: view.NumberOfDays()}
		if err := s.publisher.PublishTimelineEvent(ctx, ev); err != nil {
			s.logger.Warn("publish timeline event failed", "trip", tripHash, "error", err)
		}
	}
	return view
}

// View returns the trip's current view.
func (s *TimelineService) View(tripHash string) (*TimelineView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[tripHash]
	if sess == nil || sess.view == nil {
		return nil, domain.ErrTimelineNotLoaded
	}
	return sess.view, nil
}

// TripCount returns how many trips have a snapshot installed.
func (s *TimelineService) TripCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.view != nil {
			n++
		}
	}
	return n
}

// Snapshot returns the trip's current timeline. Callers must not modify it.
func (s *TimelineService) Snapshot(tripHash string) (*domain.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[tripHash]
	if sess == nil || sess.timeline == nil {
		return nil, domain.ErrTimelineNotLoaded
	}
	return sess.timeline, nil
}

// SetFavourites replaces the locally held favourites of a trip. They are
// re-attached to every snapshot fetched afterwards.
func (s *TimelineService) SetFavourites(tripHash string, items []domain.FavoriteItem) {
	items = append([]domain.FavoriteItem(nil), items...)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(tripHash)
	sess.favourites = items
	if sess.timeline != nil {
		t := *sess.timeline
		t.FavouriteItems = items
		sess.timeline = &t
	}
}

// Favourites returns the locally held favourites of a trip.
func (s *TimelineService) Favourites(tripHash string) []domain.FavoriteItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess := s.sessions[tripHash]; sess != nil {
		return append([]domain.FavoriteItem(nil), sess.favourites...)
	}
	return nil
}

// Routes returns the route cache of a loaded trip.
func (s *TimelineService) Routes(tripHash string) (*RouteCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[tripHash]
	if sess == nil || sess.routes == nil {
		return nil, domain.ErrTimelineNotLoaded
	}
	return sess.routes, nil
}

// DayLeg is a resolved leg together with the map points it joins.
type DayLeg struct {
	Index int
	From  domain.MapPoint
	To    domain.MapPoint
	Leg   domain.RouteLeg
}

// ResolveDayLegs resolves the travel legs between the day's map points in
// unified order. Points and legs are both taken from view, so a refresh
// installed meanwhile cannot mix two snapshots.
func (s *TimelineService) ResolveDayLegs(ctx context.Context, view *TimelineView, day int, onLeg func(DayLeg)) error {
	points, err := view.OrderedMapPoints(day)
	if err != nil {
		return err
	}
	routes, err := s.Routes(view.TripHash())
	if err != nil {
		return err
	}
	waypoints := make([]domain.GeoPoint, len(points))
	for i, p := range points {
		waypoints[i] = p.Coordinate
	}
	return routes.ResolveLegs(ctx, waypoints, func(i int, leg domain.RouteLeg) {
		if i < 0 || i+1 >= len(points) {
			return
		}
		onLeg(DayLeg{Index: i, From: points[i], To: points[i+1], Leg: leg})
	})
}
