// Package offers implements OfferManager: the component that turns a
// dispatch match into a live offer, and drives a DeliveryTask through
// OFFERED -> ACCEPTED/REJECTED/EXPIRED and on through IN_PROGRESS ->
// COMPLETED. It is grounded on packages/dispatch/offer_manager.py and
// packages/dispatch/expire.py.
package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/doInfinitely/deliverycore/internal/eventlog"
	"github.com/doInfinitely/deliverycore/internal/idempotency"
	"github.com/doInfinitely/deliverycore/internal/lock"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Database is the slice of *pgxpool.Pool the manager needs: transaction
// origination. Satisfied by pgxpool.Pool in production and pgxmock's pool in
// tests.
type Database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AcceptLock is the distributed lock guarding concurrent accepts of the same
// task. *lock.RedisLock implements it.
type AcceptLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SweepGuard elects a single offer-expiry sweeper across replicas.
// lock.AdvisoryGuard implements it on pg_try_advisory_lock.
type SweepGuard interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns.
func withTx(ctx context.Context, db Database, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("offer manager: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// OrderTransitioner is the slice of orderservice.Service this package
// depends on: best-effort cascade transitions driven by task lifecycle
// events. Declared here rather than imported so offers does not need to
// import orderservice (which itself has no reason to know about offers) —
// orderservice.Service satisfies this interface structurally.
type OrderTransitioner interface {
	TryTransition(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorType models.ActorType, actorID string) bool
}

// Manager wires the task/driver/offer-log/order repositories, the dossier
// and the distributed accept lock together. One Manager is shared across
// requests; all mutable state lives in the database and Redis, not on the
// struct.
type Manager struct {
	db        Database
	tasks     repository.TaskRepository
	offerLogs repository.OfferLogRepository
	drivers   repository.DriverRepository
	orders    repository.OrderRepository
	events    eventlog.EventLog
	idem      idempotency.Store
	lock      AcceptLock
	sweep     SweepGuard
	orderTx   OrderTransitioner
	logger    zerolog.Logger
}

func NewManager(
	db Database,
	tasks repository.TaskRepository,
	offerLogs repository.OfferLogRepository,
	drivers repository.DriverRepository,
	orders repository.OrderRepository,
	events eventlog.EventLog,
	idem idempotency.Store,
	al AcceptLock,
	sweep SweepGuard,
	orderTx OrderTransitioner,
	logger zerolog.Logger,
) *Manager {
	return &Manager{db: db, tasks: tasks, offerLogs: offerLogs, drivers: drivers, orders: orders, events: events, idem: idem, lock: al, sweep: sweep, orderTx: orderTx, logger: logger}
}

// RouteTaskAccept is the idempotency route key for task accepts, matching
// packages/common/idempotency.py's "METHOD:/path" convention the order
// endpoints use.
const RouteTaskAccept = "POST:/tasks/{task_id}/accept"

// cascadeOrder loads the parent order FOR UPDATE and attempts a best-effort
// transition, matching tasks.py's _try_order_transition cascade points. A
// missing order (should not happen in practice — every task has a parent
// order) is logged and otherwise ignored, since this is a side-effect of the
// task mutation the caller already committed to, not the primary operation.
func (m *Manager) cascadeOrder(ctx context.Context, tx pgx.Tx, orderID string, to models.OrderStatus, actorType models.ActorType, actorID string) {
	order, err := m.orders.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		m.logger.Warn().Err(err).Str("order_id", orderID).Msg("cascade transition: order lookup failed")
		return
	}
	m.orderTx.TryTransition(ctx, tx, order, to, actorType, actorID)
}

const acceptLockTTL = 10 * time.Second

// CreateOffer marks task OFFERED to driverID with the given TTL, records an
// OfferLog snapshotting the scoring features, and emits TASK_OFFERED.
// Matching offer_manager.py's create_offer: at most one DeliveryTask per
// order may be active, so the caller is responsible for only calling this on
// an UNASSIGNED (or previously EXPIRED/REJECTED) task.
func (m *Manager) CreateOffer(ctx context.Context, tx pgx.Tx, task *models.DeliveryTask, driverID string, features map[string]interface{}, ttl time.Duration) error {
	expires := time.Now().Add(ttl)
	task.Status = models.TaskOffered
	task.OfferedToDriverID = driverID
	task.OfferExpiresAt = &expires

	if err := m.tasks.Update(ctx, tx, task); err != nil {
		return fmt.Errorf("offer manager: update task: %w", err)
	}

	offerLog := &models.OfferLog{
		ID:        models.NewOfferLogID(),
		TaskID:    task.ID,
		OrderID:   task.OrderID,
		DriverID:  driverID,
		CreatedAt: time.Now(),
		Features:  features,
	}
	if err := m.offerLogs.Create(ctx, tx, offerLog); err != nil {
		return fmt.Errorf("offer manager: create offer log: %w", err)
	}

	_, err := m.events.Append(ctx, tx, task.OrderID, models.ActorSystem, "dispatch", models.EventTaskOffered, map[string]interface{}{
		"task_id": task.ID, "driver_id": driverID,
	})
	if err != nil {
		return fmt.Errorf("offer manager: append event: %w", err)
	}
	return nil
}

// AcceptTask handles a driver's accept under idempotency, guarded by the
// Redis task-accept lock — the two layers serve different jobs, matching
// tasks.py's accept_task exactly: the lock is a short-TTL concurrency guard
// so two simultaneous accepts cannot both run the mutation, while the
// idempotency record is the replay cache so a same-key retry after a
// successful accept returns the original 200 instead of tripping the
// status precondition. Returns models.ErrAcceptLocked if another request is
// already processing this task's accept.
func (m *Manager) AcceptTask(ctx context.Context, idempotencyKey, taskID, driverID string) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}

	key := lock.TaskAcceptKey(taskID)
	acquired, err := m.lock.Acquire(ctx, key, acceptLockTTL)
	if err != nil {
		return 0, nil, fmt.Errorf("offer manager: acquire accept lock: %w", err)
	}
	if !acquired {
		return 0, nil, models.ErrAcceptLocked
	}
	defer func() {
		if err := m.lock.Release(ctx, key); err != nil {
			m.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to release accept lock")
		}
	}()

	var code int
	var resp []byte
	err = withTx(ctx, m.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
			if err != nil {
				return 0, nil, err
			}
			if task.Status != models.TaskOffered {
				return 0, nil, models.ErrInvalidTaskStatus
			}
			if task.OfferedToDriverID != driverID {
				return 0, nil, models.ErrTaskNotOfferedToYou
			}

			now := time.Now()
			task.Status = models.TaskAccepted
			task.DriverID = driverID
			task.OfferExpiresAt = nil
			if err := m.tasks.Update(ctx, tx, task); err != nil {
				return 0, nil, fmt.Errorf("offer manager: update task: %w", err)
			}

			driver, err := m.drivers.GetByID(ctx, tx, driverID)
			if err != nil {
				return 0, nil, err
			}
			driver.Status = models.DriverOnTask
			if err := m.drivers.Update(ctx, tx, driver); err != nil {
				return 0, nil, fmt.Errorf("offer manager: update driver: %w", err)
			}

			offerLog, err := m.offerLogs.LatestByTaskID(ctx, tx, task.ID)
			if err == nil && offerLog != nil {
				latencyMS := now.Sub(offerLog.CreatedAt).Milliseconds()
				if err := m.offerLogs.SetOutcome(ctx, tx, offerLog.ID, models.OutcomeAccepted, now.UnixMilli(), &latencyMS); err != nil {
					return 0, nil, fmt.Errorf("offer manager: set offer outcome: %w", err)
				}
			}

			if _, err := m.events.Append(ctx, tx, task.OrderID, models.ActorDriver, driverID, models.EventTaskAccepted, map[string]interface{}{
				"task_id": task.ID,
			}); err != nil {
				return 0, nil, err
			}

			m.cascadeOrder(ctx, tx, task.OrderID, models.StatusPickup, models.ActorSystem, "dispatch")
			return 200, map[string]interface{}{"task_id": task.ID, "status": string(models.TaskAccepted)}, nil
		}

		requestBody := map[string]interface{}{"task_id": taskID, "driver_id": driverID}
		c, r, _, err := idempotency.GetOrSet(ctx, m.idem, tx, idempotencyKey, RouteTaskAccept, requestBody, compute)
		if err != nil {
			return err
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

// RejectTask handles a driver declining an offer: the task reverts to
// UNASSIGNED so the next dispatch tick can re-offer it, and the OfferLog is
// marked REJECTED. The original_source's reject_task omits this last step
// entirely (a confirmed bug against its own REJECTED outcome contract);
// this implementation always records it.
func (m *Manager) RejectTask(ctx context.Context, taskID, driverID string) error {
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskOffered {
			return models.ErrInvalidTaskStatus
		}
		if task.OfferedToDriverID != driverID {
			return models.ErrTaskNotOfferedToYou
		}

		now := time.Now()
		task.Status = models.TaskUnassigned
		task.OfferedToDriverID = ""
		task.OfferExpiresAt = nil
		if err := m.tasks.Update(ctx, tx, task); err != nil {
			return fmt.Errorf("offer manager: update task: %w", err)
		}

		offerLog, err := m.offerLogs.LatestByTaskID(ctx, tx, task.ID)
		if err == nil && offerLog != nil {
			latencyMS := now.Sub(offerLog.CreatedAt).Milliseconds()
			if err := m.offerLogs.SetOutcome(ctx, tx, offerLog.ID, models.OutcomeRejected, now.UnixMilli(), &latencyMS); err != nil {
				return fmt.Errorf("offer manager: set offer outcome: %w", err)
			}
		}

		_, err = m.events.Append(ctx, tx, task.OrderID, models.ActorDriver, driverID, models.EventTaskRejected, map[string]interface{}{
			"task_id": task.ID,
		})
		return err
	})
}

// StartTask transitions an ACCEPTED task to IN_PROGRESS, the driver having
// begun travel toward pickup, and emits TASK_STARTED.
func (m *Manager) StartTask(ctx context.Context, taskID, driverID string) error {
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskAccepted {
			return models.ErrInvalidTaskStatus
		}
		if task.DriverID != driverID {
			return models.ErrTaskNotAssignedToYou
		}

		task.Status = models.TaskInProgress
		if err := m.tasks.Update(ctx, tx, task); err != nil {
			return fmt.Errorf("offer manager: update task: %w", err)
		}

		if _, err := m.events.Append(ctx, tx, task.OrderID, models.ActorDriver, driverID, models.EventTaskStarted, map[string]interface{}{
			"task_id": task.ID,
		}); err != nil {
			return err
		}

		m.cascadeOrder(ctx, tx, task.OrderID, models.StatusEnRoute, models.ActorSystem, "dispatch")
		m.cascadeOrder(ctx, tx, task.OrderID, models.StatusDoorstepVerify, models.ActorSystem, "dispatch")
		return nil
	})
}

// CompleteTask marks an IN_PROGRESS task COMPLETED and frees the driver back
// to IDLE, emitting TASK_COMPLETED (or RETURN_COMPLETED for a return leg).
// A forward delivery leg's completion cascades the order to DELIVERED,
// matching tasks.py's complete_task; a return leg's completion does not —
// the return's own refusal already drove the order to its terminal
// REFUSED_RETURNING state, and original_source's separate complete_return
// path (CompleteReturn below) never touches order status either.
func (m *Manager) CompleteTask(ctx context.Context, taskID, driverID string) error {
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskInProgress {
			return models.ErrInvalidTaskStatus
		}
		if task.DriverID != driverID {
			return models.ErrTaskNotAssignedToYou
		}

		task.Status = models.TaskCompleted
		if err := m.tasks.Update(ctx, tx, task); err != nil {
			return fmt.Errorf("offer manager: update task: %w", err)
		}

		driver, err := m.drivers.GetByID(ctx, tx, driverID)
		if err != nil {
			return err
		}
		driver.Status = models.DriverIdle
		if err := m.drivers.Update(ctx, tx, driver); err != nil {
			return fmt.Errorf("offer manager: update driver: %w", err)
		}

		eventType := models.EventTaskCompleted
		if task.Route.Type == models.RouteReturn {
			eventType = models.EventReturnCompleted
		}
		if _, err := m.events.Append(ctx, tx, task.OrderID, models.ActorDriver, driverID, eventType, map[string]interface{}{
			"task_id": task.ID,
		}); err != nil {
			return err
		}

		if task.Route.Type != models.RouteReturn {
			m.cascadeOrder(ctx, tx, task.OrderID, models.StatusDelivered, models.ActorSystem, "dispatch")
		}
		return nil
	})
}

// CompleteReturn marks a return task COMPLETED once the merchant confirms
// receipt, matching tasks.py's complete_return: unlike CompleteTask it
// accepts any non-terminal task status (a store clerk may confirm before
// the return driver ever called start) and performs no driver-assignment
// check or order-status cascade — the order is already terminal in
// REFUSED_RETURNING by the time a return exists.
func (m *Manager) CompleteReturn(ctx context.Context, taskID string) error {
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		switch task.Status {
		case models.TaskAccepted, models.TaskInProgress, models.TaskOffered, models.TaskUnassigned:
		default:
			return models.ErrInvalidTaskStatus
		}

		task.Status = models.TaskCompleted
		if err := m.tasks.Update(ctx, tx, task); err != nil {
			return fmt.Errorf("offer manager: update task: %w", err)
		}

		_, err = m.events.Append(ctx, tx, task.OrderID, models.ActorSystem, "dispatch", models.EventReturnCompleted, map[string]interface{}{
			"return_task_id": task.ID,
		})
		return err
	})
}

// ManualOffer is the operator escape hatch behind POST /tasks/{id}/offer:
// force an offer to a specific driver outside the fast/batch tick cycle,
// matching tasks.py's offer_task. Unlike the tick-driven path it accepts a
// task in UNASSIGNED or FAILED status (a failed task is otherwise stuck
// until a human re-offers it).
func (m *Manager) ManualOffer(ctx context.Context, taskID, driverID string, ttl time.Duration) error {
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		task, err := m.tasks.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskUnassigned && task.Status != models.TaskFailed {
			return models.ErrInvalidTaskStatus
		}
		return m.CreateOffer(ctx, tx, task, driverID, map[string]interface{}{"source": "manual"}, ttl)
	})
}

// DispatchOrder is the operator escape hatch behind POST /orders/{id}/dispatch:
// ensure a dispatchable DeliveryTask exists for an order, matching tasks.py's
// dispatch. Reuses any existing non-terminal task (UNASSIGNED, OFFERED,
// ACCEPTED or IN_PROGRESS) rather than
// creating a duplicate — original_source always creates a fresh task, but
// this port's authorize_payment already opens one UNASSIGNED task per order,
// so the manual endpoint's job is to hand that same row back for operators
// who need the task id, only creating a new one if none exists (e.g. a
// previous task terminally FAILED).
func (m *Manager) DispatchOrder(ctx context.Context, orderID string) (taskID string, status models.TaskStatus, err error) {
	txErr := withTx(ctx, m.db, func(tx pgx.Tx) error {
		existing, err := m.tasks.GetActiveByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			taskID, status = existing.ID, existing.Status
			return nil
		}

		task := &models.DeliveryTask{
			ID:        models.NewTaskID(),
			OrderID:   orderID,
			Status:    models.TaskUnassigned,
			Route:     models.RouteInfo{Type: models.RouteDelivery},
			CreatedAt: time.Now().UTC(),
		}
		if err := m.tasks.Create(ctx, tx, task); err != nil {
			return fmt.Errorf("offer manager: create delivery task: %w", err)
		}
		if _, err := m.events.Append(ctx, tx, orderID, models.ActorSystem, "dispatch", models.EventTaskCreated, map[string]interface{}{
			"task_id": task.ID,
		}); err != nil {
			return err
		}
		taskID, status = task.ID, task.Status
		return nil
	})
	if txErr != nil {
		return "", "", txErr
	}
	return taskID, status, nil
}

// ExpireOffers sweeps OFFERED tasks whose TTL has lapsed, guarded by a
// Postgres advisory lock so only one replica runs the sweep concurrently —
// matching packages/dispatch/expire.py's expire_offers. Returns the number
// of tasks expired.
func (m *Manager) ExpireOffers(ctx context.Context, now time.Time, limit int) (int, error) {
	release, acquired, err := m.sweep.TryLock(ctx)
	if err != nil {
		return 0, fmt.Errorf("offer manager: try advisory lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}
	defer release()

	count := 0
	err = withTx(ctx, m.db, func(tx pgx.Tx) error {
		expired, err := m.tasks.GetExpiredOffers(ctx, tx, now.UnixMilli(), limit)
		if err != nil {
			return err
		}

		for _, task := range expired {
			createdMS := task.CreatedAt.UnixMilli()

			task.Status = models.TaskExpired
			offeredTo := task.OfferedToDriverID
			task.OfferedToDriverID = ""
			task.OfferExpiresAt = nil
			if err := m.tasks.Update(ctx, tx, task); err != nil {
				return fmt.Errorf("offer manager: update expired task: %w", err)
			}

			if _, err := m.events.Append(ctx, tx, task.OrderID, models.ActorSystem, "sweeper", models.EventTaskExpired, map[string]interface{}{
				"task_id": task.ID, "driver_id": offeredTo,
			}); err != nil {
				return fmt.Errorf("offer manager: append expired event: %w", err)
			}

			offerLog, err := m.offerLogs.LatestByTaskID(ctx, tx, task.ID)
			if err == nil && offerLog != nil {
				outcomeMS := now.UnixMilli()
				latencyMS := outcomeMS - createdMS
				if err := m.offerLogs.SetOutcome(ctx, tx, offerLog.ID, models.OutcomeTimeout, outcomeMS, &latencyMS); err != nil {
					return fmt.Errorf("offer manager: set offer outcome: %w", err)
				}
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

