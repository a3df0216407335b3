// Package dispatch implements the two-tier dispatch engine: fast-tick
// min-cost-flow matching and batch-tick clustering, grounded on
// packages/dispatch/*.py.
package dispatch

import "github.com/doInfinitely/deliverycore/internal/models"

// Weights are the cost-function coefficients (packages/dispatch/costs.py's
// defaults: alpha=1.0 beta=25.0 gamma=1.0 rho=1.0 lambda=0 mu=0).
type Weights struct {
	AlphaTotalTime float64
	BetaLateness   float64
	GammaDeadhead  float64
	RhoReturnRisk  float64
	LambdaFairness float64
	MuZone         float64
}

// Params collects every tunable the fast/batch ticks read, matching
// build_dispatch_snapshot's params dict.
type Params struct {
	KPrimeCandidates  int
	KCandidates       int
	RadiusMeters      float64
	OfferTTLSeconds   int
	HardPickupETAMaxS int
	H3Resolution      int
	ClusterRadiusM    float64
	Weights           Weights
}

// DefaultParams mirrors build_dispatch_snapshot's hardcoded defaults.
func DefaultParams() Params {
	return Params{
		KPrimeCandidates:  100,
		KCandidates:       20,
		RadiusMeters:      6000,
		OfferTTLSeconds:   30,
		HardPickupETAMaxS: 900,
		H3Resolution:      8,
		ClusterRadiusM:    3000,
		Weights: Weights{
			AlphaTotalTime: 1.0,
			BetaLateness:   25.0,
			GammaDeadhead:  1.0,
			RhoReturnRisk:  1.0,
			LambdaFairness: 0.0,
			MuZone:         0.0,
		},
	}
}

// Job is a dispatchable order snapshotted for one tick.
type Job struct {
	OrderID      string
	StoreLat     float64
	StoreLng     float64
	DropLat      float64
	DropLng      float64
	ZoneID       string
	ReadyAtMS    int64
	DeadlineMS   int64
	PayoutCents  int64
}

// FailRisk is the predicted probability a driver abandons a job mid-route,
// plus the expected return time if they do — looked up per (driver, job)
// pair from a prediction table (packages.dispatch.costs.py's
// id_fail_risk list), with defaults when no prediction exists.
type FailRisk struct {
	PFail       float64
	ExpReturnS  float64
}

const (
	defaultPFail      = 0.03
	defaultExpReturnS = 600
)

// Edge is a scored candidate driver-job pairing.
type Edge struct {
	DriverID string
	JobID    string
	EtaPuS   int
	EtaDropS int
	Approx   bool
	Cost     int
	Debug    map[string]interface{}
}

// Snapshot is the full input to one dispatch tick.
type Snapshot struct {
	Drivers     []*models.Driver
	Jobs        []*Job
	Tasks       []*models.DeliveryTask // active (OFFERED/ACCEPTED/IN_PROGRESS) tasks
	FailRisks   map[string]FailRisk // key: driverID+"|"+jobID
	Params      Params
	NowMS       int64
}

// ActiveTaskOrders returns the set of order IDs that already have an active
// task. Excluding them from candidate generation is what makes the fast tick
// idempotent across runs: an order whose offer is still live never re-enters
// the matcher.
func (s *Snapshot) ActiveTaskOrders() map[string]bool {
	out := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		switch t.Status {
		case models.TaskOffered, models.TaskAccepted, models.TaskInProgress:
			out[t.OrderID] = true
		}
	}
	return out
}

func failRiskKey(driverID, jobID string) string { return driverID + "|" + jobID }

// LookupFailRisk returns the predicted fail risk for a driver/job pair, or
// the defaults if no prediction is on file.
func (s *Snapshot) LookupFailRisk(driverID, jobID string) FailRisk {
	if fr, ok := s.FailRisks[failRiskKey(driverID, jobID)]; ok {
		return fr
	}
	return FailRisk{PFail: defaultPFail, ExpReturnS: defaultExpReturnS}
}
