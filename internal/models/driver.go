package models

import "time"

// DriverStatus enumerates a driver's availability for dispatch. spec.md's §3
// data model is authoritative (OFFLINE/IDLE/ON_TASK/PAUSED); this diverges
// from the original_source enum snapshot (APPLIED/ACTIVE/EXPIRING_SOON/
// SUSPENDED), which described onboarding/compliance state rather than
// real-time dispatch availability — a different axis entirely, tracked here
// as the separate compliance fields below instead of folding it into Status.
type DriverStatus string

const (
	DriverOffline DriverStatus = "OFFLINE"
	DriverIdle    DriverStatus = "IDLE"
	DriverOnTask  DriverStatus = "ON_TASK"
	DriverPaused  DriverStatus = "PAUSED"
)

// DriverMetrics holds spec.md §3's four rolling behavioral signals: the
// acceptance-probability heuristic (packages/predictions/acceptance.py)
// reads AcceptRate7d, RecentTimeouts and CancelRate7d; the fast-tick cost
// function (packages/dispatch/costs.py) reads FairnessPenalty separately.
type DriverMetrics struct {
	AcceptRate7d    float64 `json:"accept_rate_7d"`
	CancelRate7d    float64 `json:"cancel_rate_7d"`
	RecentTimeouts  float64 `json:"recent_timeouts"`
	FairnessPenalty float64 `json:"fairness_penalty"`
}

// Driver is a dispatch-eligible courier.
type Driver struct {
	ID       string
	Status   DriverStatus
	Lat      float64
	Lng      float64
	ZoneID   string

	InsuranceVerified   bool
	RegistrationVerified bool
	VehicleVerified     bool
	BackgroundClear     bool

	Metrics DriverMetrics

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible reports whether a driver can be offered a job at all, independent
// of distance/ETA: idle, and cleared on the compliance documents the
// candidate generator checks (packages/dispatch/candidates.py).
func (d *Driver) Eligible() bool {
	return d.Status == DriverIdle && d.InsuranceVerified && d.RegistrationVerified
}
