// Package scheduler drives the dispatch engine's three periodic loops: the
// fast tick (candidate generation + MCF matching), the batch tick
// (clustering + nearest-neighbor VRP fallback), and the offer-expiry sweep.
// It is grounded on apps/dispatcher/run_tick.py, apps/dispatcher/
// expire_offers.py, packages/dispatch/loops.py and packages/dispatch/
// batch_loop.py — each of which is a standalone periodic job in
// original_source; here they are goroutines sharing one process, matching
// the teacher's internal worker-loop convention of an errgroup-managed
// background component started alongside the HTTP server.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doInfinitely/deliverycore/internal/adapters/router"
	"github.com/doInfinitely/deliverycore/internal/dispatch"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/observability"
	"github.com/doInfinitely/deliverycore/internal/offers"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// fastTickDeadline bounds a single fast-tick cycle — spec.md's hard 2s
// budget for candidate generation plus router refinement plus MCF solve,
// after which the tick is abandoned rather than straggling into the next
// one.
const fastTickDeadline = 2 * time.Second

// Runner owns the three dispatch loops. One Runner per process; Run blocks
// until ctx is canceled or a loop returns a non-context error.
type Runner struct {
	pool    *pgxpool.Pool
	orders  repository.OrderRepository
	tasks   repository.TaskRepository
	drivers repository.DriverRepository
	catalog repository.CatalogRepository
	offerMgr *offers.Manager
	router  router.Router
	params  dispatch.Params

	fastInterval   time.Duration
	batchInterval  time.Duration
	expireInterval time.Duration
	offerTTL       time.Duration
	expireLimit    int

	metrics *observability.Metrics
	logger  zerolog.Logger

	// fastMu/batchMu serialize each tick kind against itself — if a tick
	// takes longer than its interval, the next firing is skipped rather
	// than piling up concurrent snapshots. Matching the single-region MVP
	// scope (no per-region sharding, per spec.md's Non-goals), one mutex
	// per tick kind is the whole serialization story.
	fastMu  sync.Mutex
	batchMu sync.Mutex
}

// Config collects a Runner's tunables, read from config.DispatchConfig by
// the caller.
type Config struct {
	FastInterval   time.Duration
	BatchInterval  time.Duration
	ExpireInterval time.Duration
	OfferTTL       time.Duration
	ExpireLimit    int
	Params         dispatch.Params
}

func NewRunner(
	pool *pgxpool.Pool,
	orders repository.OrderRepository,
	tasks repository.TaskRepository,
	drivers repository.DriverRepository,
	catalog repository.CatalogRepository,
	offerMgr *offers.Manager,
	rt router.Router,
	cfg Config,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Runner {
	expireLimit := cfg.ExpireLimit
	if expireLimit <= 0 {
		expireLimit = 500
	}
	return &Runner{
		pool:           pool,
		orders:         orders,
		tasks:          tasks,
		drivers:        drivers,
		catalog:        catalog,
		offerMgr:       offerMgr,
		router:         rt,
		params:         cfg.Params,
		fastInterval:   cfg.FastInterval,
		batchInterval:  cfg.BatchInterval,
		expireInterval: cfg.ExpireInterval,
		offerTTL:       cfg.OfferTTL,
		expireLimit:    expireLimit,
		metrics:        metrics,
		logger:         logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run starts all three loops and blocks until ctx is canceled. A single
// loop's tick erroring never stops the others — ticks are logged and
// retried on the next interval, matching the at-least-the-next-tick
// self-healing behavior of the original's cron-triggered jobs.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.runLoop(ctx, "fast_tick", r.fastInterval, r.fastTick)
		return nil
	})
	g.Go(func() error {
		r.runLoop(ctx, "batch_tick", r.batchInterval, r.batchTick)
		return nil
	})
	g.Go(func() error {
		r.runLoop(ctx, "expire_offers", r.expireInterval, r.expireTick)
		return nil
	})

	return g.Wait()
}

func (r *Runner) runLoop(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil {
				r.logger.Error().Err(err).Str("loop", name).Msg("tick failed")
			}
		}
	}
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Runner) buildSnapshot(ctx context.Context) (*dispatch.Snapshot, error) {
	var snapshot *dispatch.Snapshot
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := dispatch.BuildSnapshot(ctx, tx, r.drivers, r.orders, r.tasks, r.catalog, r.params, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	return snapshot, err
}

// TriggerFastTick runs one fast-tick cycle synchronously, for the
// POST /internal/dispatch/tick operator endpoint — matching
// apps/api/routers/internal_dispatch.py's dispatch_tick. Subject to the same
// fastMu serialization as the scheduled loop: a concurrent scheduled tick
// wins and this call is a no-op.
func (r *Runner) TriggerFastTick(ctx context.Context) error {
	return r.fastTick(ctx)
}

// TriggerExpireSweep runs one expiry sweep synchronously, for the
// POST /internal/dispatch/expire_offers operator endpoint — matching
// apps/api/routers/internal_expire.py's dispatch_expire_offers.
func (r *Runner) TriggerExpireSweep(ctx context.Context) error {
	return r.expireTick(ctx)
}

// fastTick runs one fast-tick cycle: build a snapshot, solve the bipartite
// assignment, and commit each match as a task offer — matching
// apps/dispatcher/run_tick.py's run_fast_tick.
func (r *Runner) fastTick(ctx context.Context) error {
	if !r.fastMu.TryLock() {
		return nil
	}
	defer r.fastMu.Unlock()

	tickCtx, cancel := context.WithTimeout(ctx, fastTickDeadline)
	defer cancel()

	start := time.Now()
	snapshot, err := r.buildSnapshot(tickCtx)
	if err != nil {
		return fmt.Errorf("fast tick: build snapshot: %w", err)
	}
	if len(snapshot.Jobs) == 0 || len(snapshot.Drivers) == 0 {
		return nil
	}

	edges, err := dispatch.RunFastTick(tickCtx, snapshot, r.router)
	if err != nil {
		return fmt.Errorf("fast tick: run: %w", err)
	}

	created := 0
	for _, e := range edges {
		ok, err := r.commitOffer(ctx, e.DriverID, e.JobID, e.Debug)
		if err != nil {
			r.logger.Warn().Err(err).Str("driver_id", e.DriverID).Str("order_id", e.JobID).Msg("fast tick: commit offer failed")
			continue
		}
		if ok {
			created++
		}
	}

	if r.metrics != nil {
		r.metrics.DispatchFastTickDuration.Observe(time.Since(start).Seconds())
		r.metrics.DispatchEdgesConsidered.Observe(float64(len(edges)))
		r.metrics.DispatchOffersCreated.WithLabelValues("fast").Add(float64(created))
	}
	r.logger.Debug().Int("matches", len(edges)).Int("offers_created", created).Msg("fast tick complete")
	return nil
}

// batchTick runs one batch-tick cycle over whatever jobs the fast tick
// didn't already match this cycle, matching packages/dispatch/batch_loop.py.
func (r *Runner) batchTick(ctx context.Context) error {
	if !r.batchMu.TryLock() {
		return nil
	}
	defer r.batchMu.Unlock()

	start := time.Now()
	snapshot, err := r.buildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("batch tick: build snapshot: %w", err)
	}
	if len(snapshot.Jobs) == 0 || len(snapshot.Drivers) == 0 {
		return nil
	}

	batchOffers, err := dispatch.RunBatchTick(ctx, snapshot, r.router)
	if err != nil {
		return fmt.Errorf("batch tick: run: %w", err)
	}

	created := 0
	for _, bo := range batchOffers {
		features := map[string]interface{}{
			"source":     "batch",
			"route_jobs": bo.RouteJobs,
			"eta_pu_s":   bo.EtaPuS,
			"eta_drop_s": bo.EtaDropS,
		}
		ok, err := r.commitOffer(ctx, bo.DriverID, bo.JobID, features)
		if err != nil {
			r.logger.Warn().Err(err).Str("driver_id", bo.DriverID).Str("order_id", bo.JobID).Msg("batch tick: commit offer failed")
			continue
		}
		if ok {
			created++
		}
	}

	if r.metrics != nil {
		r.metrics.DispatchBatchTickDuration.Observe(time.Since(start).Seconds())
		r.metrics.DispatchOffersCreated.WithLabelValues("batch").Add(float64(created))
	}
	r.logger.Debug().Int("clusters", len(batchOffers)).Int("offers_created", created).Msg("batch tick complete")
	return nil
}

// commitOffer locks the order's active (UNASSIGNED) task and turns it into
// an offer within its own transaction, skipping silently if the task has
// already been claimed by a concurrent tick or a manual dispatch call —
// the race is expected and cheap to lose, not an error.
func (r *Runner) commitOffer(ctx context.Context, driverID, orderID string, features map[string]interface{}) (bool, error) {
	created := false
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		task, err := r.tasks.GetActiveByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}

		locked, err := r.tasks.GetByIDForUpdate(ctx, tx, task.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.TaskUnassigned {
			return nil
		}

		if err := r.offerMgr.CreateOffer(ctx, tx, locked, driverID, features, r.offerTTL); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// expireTick sweeps OFFERED tasks past their TTL, matching
// apps/dispatcher/expire_offers.py.
func (r *Runner) expireTick(ctx context.Context) error {
	count, err := r.offerMgr.ExpireOffers(ctx, time.Now(), r.expireLimit)
	if err != nil {
		return fmt.Errorf("expire tick: %w", err)
	}
	if r.metrics != nil && count > 0 {
		r.metrics.OffersExpiredTotal.Add(float64(count))
	}
	if count > 0 {
		r.logger.Info().Int("expired", count).Msg("offer sweep complete")
	}
	return nil
}
