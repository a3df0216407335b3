package mcf

import "testing"

// TestSolveOptimalAssignment is spec.md's §8 scenario 6: D1 is near J1 and
// far from J2, D2 is the reverse, and the cross assignment is strictly
// cheaper than the same-index one.
func TestSolveOptimalAssignment(t *testing.T) {
	edges := []Edge{
		{DriverID: "D1", JobID: "J1", Cost: 50},
		{DriverID: "D1", JobID: "J2", Cost: 200},
		{DriverID: "D2", JobID: "J1", Cost: 200},
		{DriverID: "D2", JobID: "J2", Cost: 50},
	}

	matches := New().Solve(edges)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(matches), matches)
	}

	byDriver := make(map[string]Match, len(matches))
	totalCost := 0
	for _, m := range matches {
		byDriver[m.DriverID] = m
		totalCost += m.Cost
	}
	if byDriver["D1"].JobID != "J1" || byDriver["D2"].JobID != "J2" {
		t.Fatalf("expected {D1->J1, D2->J2}, got %+v", matches)
	}
	if totalCost != 100 {
		t.Errorf("total cost = %d, want 100", totalCost)
	}
}

func TestSolveIsAMatchingNoDoubleAssignment(t *testing.T) {
	edges := []Edge{
		{DriverID: "D1", JobID: "J1", Cost: 10},
		{DriverID: "D1", JobID: "J2", Cost: 5},
		{DriverID: "D2", JobID: "J1", Cost: 15},
	}
	matches := New().Solve(edges)

	seenDrivers := map[string]bool{}
	seenJobs := map[string]bool{}
	for _, m := range matches {
		if seenDrivers[m.DriverID] {
			t.Fatalf("driver %s matched twice", m.DriverID)
		}
		if seenJobs[m.JobID] {
			t.Fatalf("job %s matched twice", m.JobID)
		}
		seenDrivers[m.DriverID] = true
		seenJobs[m.JobID] = true
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (2 drivers, 2 jobs): %+v", len(matches), matches)
	}
}

func TestSolveEmptyEdges(t *testing.T) {
	if got := New().Solve(nil); got != nil {
		t.Errorf("Solve(nil) = %+v, want nil", got)
	}
}

func TestSolveMoreDriversThanJobs(t *testing.T) {
	edges := []Edge{
		{DriverID: "D1", JobID: "J1", Cost: 10},
		{DriverID: "D2", JobID: "J1", Cost: 5},
		{DriverID: "D3", JobID: "J1", Cost: 20},
	}
	matches := New().Solve(edges)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (single job caps assignment count)", len(matches))
	}
	if matches[0].DriverID != "D2" {
		t.Errorf("expected cheapest driver D2 to win J1, got %s", matches[0].DriverID)
	}
}

func TestGreedyFallbackDeterministicAscendingCost(t *testing.T) {
	edges := []Edge{
		{DriverID: "D2", JobID: "J2", Cost: 50},
		{DriverID: "D1", JobID: "J1", Cost: 50},
		{DriverID: "D1", JobID: "J2", Cost: 200},
		{DriverID: "D2", JobID: "J1", Cost: 200},
	}
	matches := GreedyFallback(edges)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(matches), matches)
	}
	// Ascending cost with stable tie-break on input order: the two cost-50
	// edges (D2->J2 then D1->J1, in that input order) are taken first and
	// don't conflict, so both are kept.
	byDriver := make(map[string]string, len(matches))
	for _, m := range matches {
		byDriver[m.DriverID] = m.JobID
	}
	if byDriver["D2"] != "J2" || byDriver["D1"] != "J1" {
		t.Errorf("expected {D2->J2, D1->J1}, got %+v", matches)
	}
}

func TestGreedyFallbackSkipsConflicts(t *testing.T) {
	edges := []Edge{
		{DriverID: "D1", JobID: "J1", Cost: 10},
		{DriverID: "D1", JobID: "J2", Cost: 20},
		{DriverID: "D2", JobID: "J1", Cost: 30},
	}
	matches := GreedyFallback(edges)
	// D1->J1 (cost 10) taken first; D1->J2 skipped (driver used); D2->J1
	// skipped (job used).
	if len(matches) != 1 || matches[0].DriverID != "D1" || matches[0].JobID != "J1" {
		t.Fatalf("got %+v, want [{D1 J1 10}]", matches)
	}
}
