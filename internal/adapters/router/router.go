// Package router implements the ETA adapter, grounded on
// packages/router/{router,cache,osrm}.py.
package router

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// LatLng is a point in WGS84 decimal degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// Router estimates travel time in seconds between two points.
type Router interface {
	RouteTimeLatLng(ctx context.Context, a, b LatLng) (int, error)
}

const (
	earthRadiusM     = 6371000.0
	minRouteSeconds  = 5
	maxRouteSeconds  = 3600
	cacheMaxItems    = 50_000
	cacheTTL         = 30 * time.Second
)

func haversineMeters(a, b LatLng) float64 {
	lat1, lng1 := a.Lat*math.Pi/180, a.Lng*math.Pi/180
	lat2, lng2 := b.Lat*math.Pi/180, b.Lng*math.Pi/180
	dLat := lat2 - lat1
	dLng := lng2 - lng1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

func clampSeconds(s float64) int {
	if s < minRouteSeconds {
		return minRouteSeconds
	}
	if s > maxRouteSeconds {
		return maxRouteSeconds
	}
	return int(s)
}

// haversineRouter is the default, dependency-free router: 35mph road speed
// with a 1.25 road-factor penalty for non-straight-line travel, matching
// packages/router/router.py's HAVERSINE branch exactly.
type haversineRouter struct{}

const (
	haversineSpeedMPS = 35 * 1609.34 / 3600.0 // 35 mph in m/s
	haversineRoadFactor = 1.25
)

func (haversineRouter) RouteTimeLatLng(ctx context.Context, a, b LatLng) (int, error) {
	dist := haversineMeters(a, b)
	seconds := (dist * haversineRoadFactor) / haversineSpeedMPS
	return clampSeconds(seconds), nil
}

// cachingRouter wraps a Router with the TTL+LRU cache
// packages/router/cache.py's TTLCache provides: same 50,000-item / 30s
// default, implemented here with hashicorp/golang-lru/v2's expirable LRU
// instead of hand-rolling an OrderedDict-based cache, since that is the only
// TTL-aware LRU in the retrieved corpus (estuary-flow's go.mod).
type cachingRouter struct {
	inner Router
	mode  string
	cache *lru.LRU[string, int]
}

// New builds the router adapter selected by mode ("HAVERSINE" or "OSRM").
func New(mode, osrmBaseURL string) Router {
	var inner Router
	switch mode {
	case "OSRM":
		inner = newOSRMRouter(osrmBaseURL)
	default:
		inner = haversineRouter{}
	}
	return &cachingRouter{
		inner: inner,
		mode:  mode,
		cache: lru.NewLRU[string, int](cacheMaxItems, nil, cacheTTL),
	}
}

func (r *cachingRouter) RouteTimeLatLng(ctx context.Context, a, b LatLng) (int, error) {
	key := cacheKey(a, b, r.mode)
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	seconds, err := r.inner.RouteTimeLatLng(ctx, a, b)
	if err != nil {
		return 0, err
	}
	r.cache.Add(key, seconds)
	return seconds, nil
}

// cacheKey rounds coordinates to 6 decimal places (~11cm precision), the
// same granularity packages/router/router.py uses for its cache key.
func cacheKey(a, b LatLng, mode string) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f|%s", a.Lat, a.Lng, b.Lat, b.Lng, mode)
}
