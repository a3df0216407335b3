package dispatch

import (
	"context"
	"fmt"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/jackc/pgx/v5"
)

// dispatchableStatuses are the order statuses build_dispatch_snapshot scans
// for jobs needing dispatch.
var dispatchableStatuses = []models.OrderStatus{
	models.StatusPendingMerchant,
	models.StatusMerchantAccepted,
	models.StatusDispatching,
}

const (
	defaultPrepS = 5 * 60
	defaultSLAS  = 45 * 60
)

// BuildSnapshot assembles one dispatch-tick input: every idle driver, every
// order needing dispatch turned into a Job (skipped if its store/address
// lacks coordinates), and every active task — the candidate generator's
// exclusion set — matching packages/dispatch/snapshot.py's
// build_dispatch_snapshot.
func BuildSnapshot(
	ctx context.Context,
	tx pgx.Tx,
	drivers repository.DriverRepository,
	orders repository.OrderRepository,
	tasks repository.TaskRepository,
	catalog repository.CatalogRepository,
	params Params,
	nowMS int64,
) (*Snapshot, error) {
	driverList, err := drivers.ListIdle(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: list drivers: %w", err)
	}

	pending, err := orders.ListByStatus(ctx, tx, dispatchableStatuses)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: list orders: %w", err)
	}

	activeTasks, err := tasks.ListActive(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: list active tasks: %w", err)
	}

	var jobs []*Job
	for _, o := range pending {
		store, err := catalog.GetStore(ctx, tx, o.StoreID)
		if err != nil {
			continue
		}
		addr, err := catalog.GetAddress(ctx, tx, o.AddressID)
		if err != nil {
			continue
		}

		createdMS := o.CreatedAt.UnixMilli()
		if createdMS == 0 {
			createdMS = nowMS
		}

		payoutCents := int64(float64(o.TotalCents) * 0.25)
		if payoutCents < 500 {
			payoutCents = 500
		}

		jobs = append(jobs, &Job{
			OrderID:     o.ID,
			StoreLat:    store.Lat,
			StoreLng:    store.Lng,
			DropLat:     addr.Lat,
			DropLng:     addr.Lng,
			ReadyAtMS:   createdMS + defaultPrepS*1000,
			DeadlineMS:  createdMS + defaultSLAS*1000,
			PayoutCents: payoutCents,
		})
	}

	return &Snapshot{
		Drivers:   driverList,
		Jobs:      jobs,
		Tasks:     activeTasks,
		FailRisks: map[string]FailRisk{},
		Params:    params,
		NowMS:     nowMS,
	}, nil
}
