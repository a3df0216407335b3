package dispatch

import (
	"math"
	"sort"

	"github.com/doInfinitely/deliverycore/internal/geo"
	"github.com/doInfinitely/deliverycore/internal/models"
)

const (
	earthRadiusM        = 6371000.0
	candidateRoadFactor = 1.35
	candidateSpeedMPS   = 20.0
)

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1, rlng1 := lat1*math.Pi/180, lng1*math.Pi/180
	rlat2, rlng2 := lat2*math.Pi/180, lng2*math.Pi/180
	dLat := rlat2 - rlat1
	dLng := rlng2 - rlng1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

func approxETA(distM float64) float64 {
	return (candidateRoadFactor * distM) / candidateSpeedMPS
}

type scoredCandidate struct {
	driver     *models.Driver
	job        *Job
	distM      float64
	approxETAs float64
}

// GenerateCandidatesTopK produces driver-job edges via an H3 ring index
// (falling back to a raw scan of all drivers if the index query is empty),
// matching packages/dispatch/candidates.py's generate_candidates_topk:
// jobs whose order already has an active task are skipped entirely — that
// exclusion, not anything downstream, is what makes the tick idempotent —
// then per-job it filters eligible idle drivers within radiusM and a hard
// pickup ETA cap, sorts ascending by approximate ETA, and keeps the top K of
// the top K' per job.
func GenerateCandidatesTopK(snapshot *Snapshot, kPrime, k int) []Edge {
	if kPrime <= 0 {
		kPrime = snapshot.Params.KPrimeCandidates
	}
	if k <= 0 {
		k = snapshot.Params.KCandidates
	}

	idx := geo.NewDriverIndex(snapshot.Drivers, snapshot.Params.H3Resolution)
	activeOrders := snapshot.ActiveTaskOrders()

	var edges []Edge
	for _, job := range snapshot.Jobs {
		if activeOrders[job.OrderID] {
			continue
		}
		candidates := idx.QueryRing(job.StoreLat, job.StoreLng, 5)
		if len(candidates) == 0 {
			candidates = snapshot.Drivers
		}

		var scored []scoredCandidate
		for _, d := range candidates {
			if !d.Eligible() {
				continue
			}
			dist := haversineMeters(d.Lat, d.Lng, job.StoreLat, job.StoreLng)
			if dist > snapshot.Params.RadiusMeters {
				continue
			}
			eta := approxETA(dist)
			if eta > float64(snapshot.Params.HardPickupETAMaxS) {
				continue
			}
			scored = append(scored, scoredCandidate{driver: d, job: job, distM: dist, approxETAs: eta})
		}

		sort.Slice(scored, func(i, j int) bool { return scored[i].approxETAs < scored[j].approxETAs })

		if len(scored) > kPrime {
			scored = scored[:kPrime]
		}
		if len(scored) > k {
			scored = scored[:k]
		}

		for _, c := range scored {
			dropDist := haversineMeters(job.StoreLat, job.StoreLng, job.DropLat, job.DropLng)
			edges = append(edges, Edge{
				DriverID: c.driver.ID,
				JobID:    job.OrderID,
				EtaPuS:   int(c.approxETAs),
				EtaDropS: int(approxETA(dropDist)),
				Approx:   true,
			})
		}
	}
	return edges
}
