package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// RoutingConfig configures a RouteProvider.
type RoutingConfig struct {
	BaseURL string
	Profile string // "foot", "car", "bike"
	Timeout time.Duration
}

// RouteProvider implements ports.RouteProvider against an OSRM-compatible
// /route/v1 endpoint.
type RouteProvider struct {
	c       *client
	profile string
}

// NewRouteProvider creates a RouteProvider.
func NewRouteProvider(cfg RoutingConfig, opts ...Option) *RouteProvider {
	profile := cfg.Profile
	if profile == "" {
		profile = "foot"
	}
	return &RouteProvider{
		c:       newClient("routing", cfg.BaseURL, cfg.Timeout, opts...),
		profile: profile,
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Legs []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// ComputeRoute returns one leg per consecutive waypoint pair.
func (p *RouteProvider) ComputeRoute(ctx context.Context, waypoints []domain.GeoPoint) (*domain.Route, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}

	coords := make([]string, len(waypoints))
	for i, w := range waypoints {
		coords[i] = strconv.FormatFloat(w.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(w.Lat, 'f', 6, 64)
	}
	path := "/route/v1/" + url.PathEscape(p.profile) + "/" + strings.Join(coords, ";") + "?overview=false&steps=false"

	var res osrmResponse
	if err := p.c.do(ctx, fasthttp.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Code != "Ok" {
		return nil, fmt.Errorf("routing: %s: %s", res.Code, res.Message)
	}
	if len(res.Routes) == 0 {
		return nil, fmt.Errorf("routing: no route")
	}

	route := &domain.Route{Legs: make([]domain.RouteLeg, 0, len(res.Routes[0].Legs))}
	for _, l := range res.Routes[0].Legs {
		route.Legs = append(route.Legs, domain.RouteLeg{
			Distance: l.Distance,
			Duration: time.Duration(l.Duration * float64(time.Second)),
		})
	}
	return route, nil
}
