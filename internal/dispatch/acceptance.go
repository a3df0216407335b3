package dispatch

import (
	"math"

	"github.com/doInfinitely/deliverycore/internal/models"
)

const (
	acceptIntercept       = -0.2
	acceptLogitARWeight   = 1.2
	acceptETAPuWeight     = -0.15
	acceptPayoutWeight    = 0.02
	acceptValuePerMinW    = 0.8
	acceptRecentTimeoutsW = -0.6
	acceptCancelRateW     = -1.0

	acceptClampLow  = 0.05
	acceptClampHigh = 0.95
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// logitAcceptRate implements spec.md §4.10's
// "ar = clamp(accept_rate_7d, 0.05, 0.95); logit_ar = ln(ar/(1-ar))" step,
// matching packages/predictions/acceptance.py's p_accept exactly.
func logitAcceptRate(acceptRate7d float64) float64 {
	ar := clamp(acceptRate7d, acceptClampLow, acceptClampHigh)
	return math.Log(ar / (1 - ar))
}

// PAccept estimates the probability a driver accepts an offer, matching
// packages/predictions/acceptance.py's p_accept formula exactly: a 7-term
// linear score run through a sigmoid and clamped to [0.05, 0.95] so the cost
// function's division by p_accept never blows up or collapses to zero.
func PAccept(driver *models.Driver, payoutCents int64, etaPuS, totalTripS int) float64 {
	valuePerMin := (float64(payoutCents) / math.Max(1, float64(totalTripS))) * 60.0
	logitAR := logitAcceptRate(driver.Metrics.AcceptRate7d)

	z := acceptIntercept +
		acceptLogitARWeight*logitAR +
		acceptETAPuWeight*(float64(etaPuS)/60.0) +
		acceptPayoutWeight*(float64(payoutCents)/100.0) +
		acceptValuePerMinW*valuePerMin +
		acceptRecentTimeoutsW*driver.Metrics.RecentTimeouts +
		acceptCancelRateW*driver.Metrics.CancelRate7d

	return clamp(sigmoid(z), acceptClampLow, acceptClampHigh)
}
