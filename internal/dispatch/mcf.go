package dispatch

import (
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/pkg/mcf"
)

// SolveAssignment scores every candidate edge (router-refined ETAs are
// expected to already be set on EtaPuS/EtaDropS by the caller) and hands the
// resulting cost-weighted edges to the min-cost-flow solver, matching
// packages/dispatch/loops.py's fast_tick: score then solve, one job gets at
// most one offer per tick.
func SolveAssignment(snapshot *Snapshot, edges []Edge) []Edge {
	driverByID := make(map[string]*models.Driver, len(snapshot.Drivers))
	for _, d := range snapshot.Drivers {
		driverByID[d.ID] = d
	}
	jobByID := make(map[string]*Job, len(snapshot.Jobs))
	for _, j := range snapshot.Jobs {
		jobByID[j.OrderID] = j
	}

	scored := make([]Edge, 0, len(edges))
	mcfEdges := make([]mcf.Edge, 0, len(edges))
	for _, e := range edges {
		d, ok := driverByID[e.DriverID]
		if !ok {
			continue
		}
		j, ok := jobByID[e.JobID]
		if !ok {
			continue
		}
		cost, debug := ComputeCost(snapshot, d, j, e.EtaPuS, e.EtaDropS)
		e.Cost = cost
		e.Debug = debug
		scored = append(scored, e)
		mcfEdges = append(mcfEdges, mcf.Edge{DriverID: e.DriverID, JobID: e.JobID, Cost: cost})
	}

	matches := mcf.New().Solve(mcfEdges)

	byPair := make(map[string]Edge, len(scored))
	for _, e := range scored {
		byPair[e.DriverID+"|"+e.JobID] = e
	}

	result := make([]Edge, 0, len(matches))
	for _, m := range matches {
		if e, ok := byPair[m.DriverID+"|"+m.JobID]; ok {
			result = append(result, e)
		}
	}
	return result
}
