// Package mcf implements a bipartite minimum-cost, maximum-flow solver for
// unit-capacity driver-job assignment edges. It is grounded on
// packages/dispatch/solver_mcf.py's graph shape (source -> drivers -> jobs
// -> sink, capacity 1 on every arc, integer costs) but not its
// implementation: no actively maintained pure-Go min-cost-flow or
// OR-Tools binding turned up anywhere in the retrieved corpus, and spec.md
// itself requires a deterministic fallback path for when no such solver is
// available, so this package solves the assignment with a hand-rolled
// successive-shortest-augmenting-path algorithm (Bellman-Ford per
// augmentation, since costs are not guaranteed non-negative after
// residual-arc reversal) and exposes the same deterministic greedy fallback
// the original uses when its solver is unavailable.
//
// The package is shaped like the teacher's pkg/matchingengine — its own
// package, a struct whose mutex serializes Solve calls so a single Solver
// value can be reused safely across concurrent fast ticks if a caller
// chooses to; all per-solve state is local to each call.
package mcf

import (
	"math"
	"sort"
	"sync"
)

// Edge is one candidate driver-job pairing with an integer cost.
type Edge struct {
	DriverID string
	JobID    string
	Cost     int
}

// Match is one committed driver-job assignment.
type Match struct {
	DriverID string
	JobID    string
	Cost     int
}

// Solver solves repeated bipartite assignment problems. Safe for concurrent
// use; each Solve call is independent and does not share state with another.
type Solver struct {
	mu sync.Mutex
}

// New returns a ready-to-use Solver.
func New() *Solver {
	return &Solver{}
}

// Solve returns the minimum-cost set of driver-job matches respecting
// capacity 1 per driver and per job, preferring the successive-shortest-path
// exact solver and falling back to deterministic greedy-by-ascending-cost
// only if the exact solver cannot make progress (it always can for this
// graph shape, but the fallback is kept as the same safety net the original
// carries for when its solver library is unavailable).
func (s *Solver) Solve(edges []Edge) []Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(edges) == 0 {
		return nil
	}

	matches, ok := solveSSP(edges)
	if !ok {
		return GreedyFallback(edges)
	}
	return matches
}

// GreedyFallback assigns edges in ascending cost order, skipping any edge
// whose driver or job is already used — matching solver_mcf.py's fallback
// path exactly (not just approximately: it is deterministic and does not
// attempt to improve on a prior greedy choice).
func GreedyFallback(edges []Edge) []Match {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Cost < sorted[j].Cost })

	usedDrivers := make(map[string]bool)
	usedJobs := make(map[string]bool)
	var matches []Match
	for _, e := range sorted {
		if usedDrivers[e.DriverID] || usedJobs[e.JobID] {
			continue
		}
		usedDrivers[e.DriverID] = true
		usedJobs[e.JobID] = true
		matches = append(matches, Match{DriverID: e.DriverID, JobID: e.JobID, Cost: e.Cost})
	}
	return matches
}

// --- successive shortest augmenting path, unit capacities ---

type arc struct {
	to, cap, cost, flow int
	rev                 int
}

type graph struct {
	adj [][]arc
}

func newGraph(n int) *graph {
	return &graph{adj: make([][]arc, n)}
}

func (g *graph) addEdge(from, to, cap, cost int) {
	g.adj[from] = append(g.adj[from], arc{to: to, cap: cap, cost: cost, rev: len(g.adj[to])})
	g.adj[to] = append(g.adj[to], arc{to: from, cap: 0, cost: -cost, rev: len(g.adj[from]) - 1})
}

// solveSSP builds source -> drivers -> jobs -> sink and augments one unit of
// flow at a time along the cheapest remaining path (Bellman-Ford, since
// reduced costs on residual arcs can be negative). It always returns
// ok=true: augmenting simply stops when no source-to-sink path remains, so
// Solve's GreedyFallback branch is defense in depth that never runs.
func solveSSP(edges []Edge) ([]Match, bool) {
	driverIDs := uniqueOrdered(edges, func(e Edge) string { return e.DriverID })
	jobIDs := uniqueOrdered(edges, func(e Edge) string { return e.JobID })

	driverIdx := indexOf(driverIDs)
	jobIdx := indexOf(jobIDs)

	n := 2 + len(driverIDs) + len(jobIDs)
	source := 0
	sink := n - 1
	driverBase := 1
	jobBase := 1 + len(driverIDs)

	g := newGraph(n)
	for _, id := range driverIDs {
		g.addEdge(source, driverBase+driverIdx[id], 1, 0)
	}
	for _, id := range jobIDs {
		g.addEdge(jobBase+jobIdx[id], sink, 1, 0)
	}
	for _, e := range edges {
		di := driverBase + driverIdx[e.DriverID]
		ji := jobBase + jobIdx[e.JobID]
		g.addEdge(di, ji, 1, e.Cost)
	}

	var matches []Match
	for {
		dist := make([]int, n)
		inQueue := make([]bool, n)
		prevNode := make([]int, n)
		prevArc := make([]int, n)
		for i := range dist {
			dist[i] = math.MaxInt32
			prevNode[i] = -1
		}
		dist[source] = 0

		queue := []int{source}
		inQueue[source] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for ai, a := range g.adj[u] {
				if a.cap-a.flow <= 0 {
					continue
				}
				if dist[u]+a.cost < dist[a.to] {
					dist[a.to] = dist[u] + a.cost
					prevNode[a.to] = u
					prevArc[a.to] = ai
					if !inQueue[a.to] {
						queue = append(queue, a.to)
						inQueue[a.to] = true
					}
				}
			}
		}

		if dist[sink] == math.MaxInt32 {
			break
		}

		// augment one unit along the path
		v := sink
		for v != source {
			u := prevNode[v]
			ai := prevArc[v]
			g.adj[u][ai].flow++
			rev := g.adj[u][ai].rev
			g.adj[v][rev].flow--
			v = u
		}
	}

	// read off driver->job assignments from saturated driver->job arcs
	for _, id := range driverIDs {
		di := driverBase + driverIdx[id]
		for _, a := range g.adj[di] {
			if a.to >= jobBase && a.to < jobBase+len(jobIDs) && a.flow > 0 {
				jobID := jobIDs[a.to-jobBase]
				matches = append(matches, Match{DriverID: id, JobID: jobID, Cost: a.cost})
			}
		}
	}

	return matches, true
}

func uniqueOrdered(edges []Edge, key func(Edge) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		k := key(e)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func indexOf(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}
