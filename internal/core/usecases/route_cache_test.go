package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

// --- Mock RouteProvider ---

type mockRouteProvider struct {
	mu             sync.Mutex
	calls          [][]domain.GeoPoint
	computeRouteFn func(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error)
}

func (m *mockRouteProvider) ComputeRoute(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]domain.GeoPoint(nil), waypoints...))
	m.mu.Unlock()
	if m.computeRouteFn != nil {
		return m.computeRouteFn(ctx, waypoints)
	}
	// One leg per pair, distance = 100 * waypoint index of the leg start.
	route := &domain.Route{}
	for i := 0; i < len(waypoints)-1; i++ {
		route.Legs = append(route.Legs, domain.RouteLeg{
			Distance: 100 * float64(i+1),
			Duration: time.Duration(i+1) * time.Minute,
		})
	}
	return route, nil
}

func (m *mockRouteProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// --- Tests ---

var (
	ptA = domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}
	ptB = domain.GeoPoint{Lat: 43.2680, Lon: -2.9400}
	ptC = domain.GeoPoint{Lat: 43.2700, Lon: -2.9500}
	ptD = domain.GeoPoint{Lat: 43.2750, Lon: -2.9550}
)

func collect(t *testing.T, c *usecases.RouteCache, waypoints ...domain.GeoPoint) map[int]domain.RouteLeg {
	t.Helper()
	got := make(map[int]domain.RouteLeg)
	err := c.ResolveLegs(context.Background(), waypoints, func(i int, leg domain.RouteLeg) {
		if _, dup := got[i]; dup {
			t.Errorf("leg %d delivered twice", i)
		}
		got[i] = leg
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return got
}

func TestLegKey(t *testing.T) {
	a := domain.GeoPoint{Lat: 43.26300000001, Lon: -2.9350000004}
	if got, want := usecases.LegKey(a, ptB), "43.263000,-2.935000-43.268000,-2.940000"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if usecases.LegKey(a, ptB) != usecases.LegKey(ptA, ptB) {
		t.Error("floating-point noise below 6 decimals must collapse")
	}
	if usecases.LegKey(ptA, ptB) == usecases.LegKey(ptB, ptA) {
		t.Error("legs are directional")
	}
	zero := domain.GeoPoint{Lat: -0.0000000001, Lon: 0}
	if got := usecases.LegKey(zero, zero); got != "0.000000,0.000000-0.000000,0.000000" {
		t.Errorf("negative zero leaked into key: %q", got)
	}
}

func TestRouteCache_SameLegOneProviderCall(t *testing.T) {
	provider := &mockRouteProvider{}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	first := collect(t, c, ptA, ptB)
	second := collect(t, c, ptA, ptB)

	if provider.callCount() != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.callCount())
	}
	if first[0] != second[0] {
		t.Errorf("cached leg differs: %+v vs %+v", first[0], second[0])
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached leg, got %d", c.Len())
	}
}

func TestRouteCache_OnlyUncachedLegsRequested(t *testing.T) {
	provider := &mockRouteProvider{}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	collect(t, c, ptA, ptB)
	got := collect(t, c, ptA, ptB, ptC)

	if provider.callCount() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", provider.callCount())
	}
	last := provider.calls[1]
	if len(last) != 2 || last[0] != ptB || last[1] != ptC {
		t.Errorf("second call must only cover B-C, got %v", last)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 legs delivered, got %d", len(got))
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached legs, got %d", c.Len())
	}
}

func TestRouteCache_BatchesGapsIntoOneCall(t *testing.T) {
	provider := &mockRouteProvider{}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	collect(t, c, ptB, ptC)
	got := collect(t, c, ptA, ptB, ptC, ptD)

	if provider.callCount() != 2 {
		t.Fatalf("expected a single call for A-B and C-D, got %d calls total", provider.callCount())
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 legs delivered, got %d", len(got))
	}
	if got[1].Distance != 100 {
		t.Errorf("B-C must come from the cache, got %+v", got[1])
	}
	if got[0].Distance != 100 || got[2].Distance != 300 {
		t.Errorf("legs split wrong: A-B %+v, C-D %+v", got[0], got[2])
	}
}

func TestRouteCache_ProviderFailure(t *testing.T) {
	provider := &mockRouteProvider{
		computeRouteFn: func(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	err := c.ResolveLegs(context.Background(), []domain.GeoPoint{ptA, ptB}, func(int, domain.RouteLeg) {
		t.Error("no leg expected")
	})
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed call must not populate the cache")
	}
}

func TestRouteCache_LegCountMismatch(t *testing.T) {
	provider := &mockRouteProvider{
		computeRouteFn: func(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error) {
			return &domain.Route{Legs: []domain.RouteLeg{{Distance: 1}}}, nil
		},
	}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	err := c.ResolveLegs(context.Background(), []domain.GeoPoint{ptA, ptB, ptC}, func(int, domain.RouteLeg) {})
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestRouteCache_SharedTier(t *testing.T) {
	shared := newMockCache()
	provider := &mockRouteProvider{}
	cfg := usecases.RouteCacheConfig{Namespace: "trip"}

	warm := usecases.NewRouteCache(provider, shared, cfg)
	collect(t, warm, ptA, ptB)
	if shared.size() != 1 {
		t.Fatalf("expected leg written to shared tier, got %d keys", shared.size())
	}
	if _, err := shared.Get(context.Background(), "routes:leg:trip:"+usecases.LegKey(ptA, ptB)); err != nil {
		t.Fatalf("unexpected shared key layout: %v", err)
	}

	cold := usecases.NewRouteCache(provider, shared, cfg)
	got := collect(t, cold, ptA, ptB)
	if provider.callCount() != 1 {
		t.Errorf("second cache must read the shared tier, got %d provider calls", provider.callCount())
	}
	if got[0].Duration != time.Minute {
		t.Errorf("got %+v", got[0])
	}

	cold.Clear(context.Background())
	if cold.Len() != 0 {
		t.Errorf("expected empty cache after Clear")
	}
	if shared.size() != 0 {
		t.Errorf("Clear must delete shared keys, %d left", shared.size())
	}
}

func TestRouteCache_ClearForcesRefetch(t *testing.T) {
	provider := &mockRouteProvider{}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{Namespace: "trip"})

	collect(t, c, ptA, ptB)
	c.Clear(context.Background())
	collect(t, c, ptA, ptB)

	if provider.callCount() != 2 {
		t.Errorf("expected refetch after Clear, got %d calls", provider.callCount())
	}
}

func TestRouteCache_SingleWaypoint(t *testing.T) {
	provider := &mockRouteProvider{}
	c := usecases.NewRouteCache(provider, nil, usecases.RouteCacheConfig{})
	if got := collect(t, c, ptA); len(got) != 0 {
		t.Errorf("expected no legs, got %d", len(got))
	}
	if provider.callCount() != 0 {
		t.Errorf("expected no provider call")
	}
}
