package dispatch

import (
	"math"

	"github.com/doInfinitely/deliverycore/internal/models"
)

// ComputeCost scores one driver-job pairing, matching
// packages/dispatch/costs.py's compute_cost: a weighted sum of total trip
// time (pickup ETA + wait + drop ETA), lateness, pickup deadhead, predicted-abandonment risk, fairness and zone
// penalties, divided by the predicted acceptance probability so
// unlikely-to-accept pairings are penalized (cheap-but-declined offers waste
// a fast-tick cycle) without ever dividing by zero.
func ComputeCost(snapshot *Snapshot, driver *models.Driver, job *Job, etaPuS, etaDropS int) (cost int, debug map[string]interface{}) {
	w := snapshot.Params.Weights

	// arrive_pu = now + eta_pu_s; wait_pu = max(0, ready_at - arrive_pu).
	// Matches packages/dispatch/costs.py: arrive_pu_ms = now_ms +
	// eta_pu_s*1000; wait_pu_s = max(0, (ready_ms-arrive_pu_ms)/1000).
	waitPuS := math.Max(0, float64(job.ReadyAtMS-snapshot.NowMS)/1000.0-float64(etaPuS))
	totalTimeS := float64(etaPuS) + waitPuS + float64(etaDropS)

	finishMS := snapshot.NowMS + int64(totalTimeS*1000)
	latenessS := math.Max(0, float64(finishMS-job.DeadlineMS)/1000.0)

	risk := snapshot.LookupFailRisk(driver.ID, job.OrderID)
	riskPen := risk.PFail * risk.ExpReturnS

	fairnessPen := driver.Metrics.FairnessPenalty

	zonePen := 0.0
	if driver.ZoneID != "" && job.ZoneID != "" && driver.ZoneID != job.ZoneID {
		zonePen = 1.0
	}

	base := w.AlphaTotalTime*totalTimeS +
		w.BetaLateness*latenessS +
		w.GammaDeadhead*float64(etaPuS) +
		w.RhoReturnRisk*riskPen +
		w.LambdaFairness*fairnessPen +
		w.MuZone*zonePen

	pAcc := PAccept(driver, job.PayoutCents, etaPuS, int(totalTimeS))
	cost = int(math.Round(base / math.Max(1e-3, pAcc)))

	debug = map[string]interface{}{
		"base":         base,
		"p_accept":     pAcc,
		"wait_pu_s":    waitPuS,
		"total_time_s": totalTimeS,
		"lateness_s":   latenessS,
		"risk_pen":     riskPen,
		"zone_pen":     zonePen,
	}
	return cost, debug
}
