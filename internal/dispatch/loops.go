package dispatch

import (
	"context"

	"github.com/doInfinitely/deliverycore/internal/adapters/router"
)

// RunFastTick runs one fast-tick cycle: generate approximate top-K' (then
// top-K) candidate edges from the H3 index, replace their approximate ETAs
// with router-refined ones, score every edge, and solve the bipartite
// assignment — matching packages/dispatch/loops.py's fast_tick. The
// returned edges are the committed matches; it is the caller's job (the
// offer manager) to turn each into a DeliveryTask offer within a
// transaction, since this package has no persistence dependency.
func RunFastTick(ctx context.Context, snapshot *Snapshot, rt router.Router) ([]Edge, error) {
	driverByID := make(map[string]struct{ lat, lng float64 }, len(snapshot.Drivers))
	for _, d := range snapshot.Drivers {
		driverByID[d.ID] = struct{ lat, lng float64 }{d.Lat, d.Lng}
	}
	jobByID := make(map[string]*Job, len(snapshot.Jobs))
	for _, j := range snapshot.Jobs {
		jobByID[j.OrderID] = j
	}

	candidates := GenerateCandidatesTopK(snapshot, 0, 0)

	refined := make([]Edge, 0, len(candidates))
	for _, e := range candidates {
		d, ok := driverByID[e.DriverID]
		if !ok {
			continue
		}
		j, ok := jobByID[e.JobID]
		if !ok {
			continue
		}

		etaPuS, err := rt.RouteTimeLatLng(ctx, router.LatLng{Lat: d.lat, Lng: d.lng}, router.LatLng{Lat: j.StoreLat, Lng: j.StoreLng})
		if err != nil {
			return nil, err
		}
		etaDropS, err := rt.RouteTimeLatLng(ctx, router.LatLng{Lat: j.StoreLat, Lng: j.StoreLng}, router.LatLng{Lat: j.DropLat, Lng: j.DropLng})
		if err != nil {
			return nil, err
		}

		e.EtaPuS = etaPuS
		e.EtaDropS = etaDropS
		e.Approx = false
		refined = append(refined, e)
	}

	return SolveAssignment(snapshot, refined), nil
}
