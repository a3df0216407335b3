package dispatch

import (
	"context"
	"sort"

	"github.com/doInfinitely/deliverycore/internal/adapters/router"
	"github.com/doInfinitely/deliverycore/internal/models"
)

// BatchOffer is one committed assignment out of a batch tick: a driver sent
// to the first stop of a multi-job route. Only the first stop is committed
// per packages/dispatch/loops.py's batch_tick — later stops in the cluster
// are re-evaluated on the next tick once the driver has actually picked up
// the first job, since real-world delays make committing an entire route
// upfront unreliable.
type BatchOffer struct {
	DriverID  string
	JobID     string
	RouteJobs []string // the full planned route, for visibility/logging only
	EtaPuS    int
	EtaDropS  int
}

// cluster is a single-linkage group of jobs within Params.ClusterRadiusM of
// at least one other member, matching packages/dispatch/batch.py's
// cluster_jobs.
type cluster struct {
	jobs []*Job
}

func centroid(jobs []*Job) (lat, lng float64) {
	for _, j := range jobs {
		lat += j.StoreLat
		lng += j.StoreLng
	}
	n := float64(len(jobs))
	return lat / n, lng / n
}

// clusterJobs groups jobs by single-linkage agglomeration: two jobs merge
// into the same cluster if their store pickup points are within radiusM of
// each other (directly, or transitively through another member already in
// the cluster).
func clusterJobs(jobs []*Job, radiusM float64) []cluster {
	n := len(jobs)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := haversineMeters(jobs[i].StoreLat, jobs[i].StoreLng, jobs[j].StoreLat, jobs[j].StoreLng)
			if d <= radiusM {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]*Job)
	for i, j := range jobs {
		r := find(i)
		groups[r] = append(groups[r], j)
	}

	var clusters []cluster
	for _, js := range groups {
		clusters = append(clusters, cluster{jobs: js})
	}
	// deterministic order: by the lowest order ID in the cluster
	sort.Slice(clusters, func(i, j int) bool {
		return minOrderID(clusters[i].jobs) < minOrderID(clusters[j].jobs)
	})
	return clusters
}

func minOrderID(jobs []*Job) string {
	min := jobs[0].OrderID
	for _, j := range jobs[1:] {
		if j.OrderID < min {
			min = j.OrderID
		}
	}
	return min
}

// nearestEligibleDriver returns the idle, compliant driver closest to (lat,
// lng) within radiusM, or nil if none qualify.
func nearestEligibleDriver(drivers []*models.Driver, lat, lng, radiusM float64) *models.Driver {
	var best *models.Driver
	bestDist := -1.0
	for _, d := range drivers {
		if !d.Eligible() {
			continue
		}
		dist := haversineMeters(d.Lat, d.Lng, lat, lng)
		if dist > radiusM {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = d
		}
	}
	return best
}

// nearestNeighborRoute orders a cluster's jobs into a route starting from
// (lat, lng), matching packages/dispatch/batch.py's nearest-neighbor VRP
// fallback: this module's only route-ordering strategy, since no VRP solver
// was found in the retrieved corpus and the fallback is what the spec
// requires as the default path, not merely a degraded one.
func nearestNeighborRoute(startLat, startLng float64, jobs []*Job) []*Job {
	remaining := make([]*Job, len(jobs))
	copy(remaining, jobs)

	var route []*Job
	curLat, curLng := startLat, startLng
	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := haversineMeters(curLat, curLng, remaining[0].StoreLat, remaining[0].StoreLng)
		for i := 1; i < len(remaining); i++ {
			d := haversineMeters(curLat, curLng, remaining[i].StoreLat, remaining[i].StoreLng)
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		next := remaining[bestIdx]
		route = append(route, next)
		curLat, curLng = next.StoreLat, next.StoreLng
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return route
}

// RunBatchTick clusters unmatched jobs within Params.ClusterRadiusM, assigns
// each cluster its nearest eligible driver, orders the cluster into a route
// via nearest-neighbor, and returns one BatchOffer per cluster committing
// only the first stop — matching packages/dispatch/loops.py's batch_tick.
// Jobs whose order already has an active task are excluded up front, same as
// the fast tick's candidate generator.
func RunBatchTick(ctx context.Context, snapshot *Snapshot, rt router.Router) ([]BatchOffer, error) {
	activeOrders := snapshot.ActiveTaskOrders()
	var pending []*Job
	for _, j := range snapshot.Jobs {
		if !activeOrders[j.OrderID] {
			pending = append(pending, j)
		}
	}
	clusters := clusterJobs(pending, snapshot.Params.ClusterRadiusM)

	assignedDrivers := make(map[string]bool)
	var offers []BatchOffer

	for _, c := range clusters {
		cLat, cLng := centroid(c.jobs)

		var available []*models.Driver
		for _, d := range snapshot.Drivers {
			if !assignedDrivers[d.ID] {
				available = append(available, d)
			}
		}
		driver := nearestEligibleDriver(available, cLat, cLng, snapshot.Params.RadiusMeters)
		if driver == nil {
			continue
		}
		assignedDrivers[driver.ID] = true

		route := nearestNeighborRoute(driver.Lat, driver.Lng, c.jobs)
		if len(route) == 0 {
			continue
		}
		first := route[0]

		etaPuS, err := rt.RouteTimeLatLng(ctx, router.LatLng{Lat: driver.Lat, Lng: driver.Lng}, router.LatLng{Lat: first.StoreLat, Lng: first.StoreLng})
		if err != nil {
			return nil, err
		}
		etaDropS, err := rt.RouteTimeLatLng(ctx, router.LatLng{Lat: first.StoreLat, Lng: first.StoreLng}, router.LatLng{Lat: first.DropLat, Lng: first.DropLng})
		if err != nil {
			return nil, err
		}

		routeJobIDs := make([]string, len(route))
		for i, j := range route {
			routeJobIDs[i] = j.OrderID
		}

		offers = append(offers, BatchOffer{
			DriverID:  driver.ID,
			JobID:     first.OrderID,
			RouteJobs: routeJobIDs,
			EtaPuS:    etaPuS,
			EtaDropS:  etaDropS,
		})
	}

	return offers, nil
}
