package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// osrmRouter calls a real OSRM HTTP server's /route/v1/{profile}/{coords}
// service, falling back to the haversine estimate on any failure — exactly
// packages/router/osrm.py's _haversine_fallback behavior.
type osrmRouter struct {
	baseURL string
	client  *http.Client
	profile string
}

func newOSRMRouter(baseURL string) *osrmRouter {
	return &osrmRouter{
		baseURL: baseURL,
		profile: "driving",
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (o *osrmRouter) RouteTimeLatLng(ctx context.Context, a, b LatLng) (int, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=false",
		o.baseURL, o.profile, a.Lng, a.Lat, b.Lng, b.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return haversineRouter{}.RouteTimeLatLng(ctx, a, b)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return haversineRouter{}.RouteTimeLatLng(ctx, a, b)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return haversineRouter{}.RouteTimeLatLng(ctx, a, b)
	}

	var parsed osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Routes) == 0 {
		return haversineRouter{}.RouteTimeLatLng(ctx, a, b)
	}

	return clampSeconds(parsed.Routes[0].Duration), nil
}
