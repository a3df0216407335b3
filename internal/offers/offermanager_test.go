package offers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/doInfinitely/deliverycore/internal/lock"
	"github.com/doInfinitely/deliverycore/internal/mocks"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stubAcceptLock stands in for the Redis lock: configurable grant/deny, and
// records every key it released so tests can assert the lock is always let
// go.
type stubAcceptLock struct {
	grant    bool
	acquired []string
	released []string
}

func (s *stubAcceptLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.acquired = append(s.acquired, key)
	return s.grant, nil
}

func (s *stubAcceptLock) Release(ctx context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

// stubSweepGuard stands in for the Postgres advisory lock.
type stubSweepGuard struct {
	grant    bool
	released bool
}

func (s *stubSweepGuard) TryLock(ctx context.Context) (func(), bool, error) {
	if !s.grant {
		return nil, false, nil
	}
	return func() { s.released = true }, true, nil
}

// stubTransitioner records best-effort cascade attempts.
type stubTransitioner struct {
	calls []models.OrderStatus
}

func (s *stubTransitioner) TryTransition(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorType models.ActorType, actorID string) bool {
	s.calls = append(s.calls, to)
	order.Status = to
	return true
}

type testManagerSetup struct {
	manager   *Manager
	tasks     *mocks.MockTaskRepository
	offerLogs *mocks.MockOfferLogRepository
	drivers   *mocks.MockDriverRepository
	orders    *mocks.MockOrderRepository
	events    *mocks.MockEventLog
	idem      *mocks.MockIdempotencyStore
	acceptLk  *stubAcceptLock
	sweep     *stubSweepGuard
	orderTx   *stubTransitioner
	mockPool  pgxmock.PgxPoolIface
	ctrl      *gomock.Controller
}

func setupTestManager(t *testing.T) *testManagerSetup {
	ctrl := gomock.NewController(t)

	tasks := mocks.NewMockTaskRepository(ctrl)
	offerLogs := mocks.NewMockOfferLogRepository(ctrl)
	drivers := mocks.NewMockDriverRepository(ctrl)
	orders := mocks.NewMockOrderRepository(ctrl)
	events := mocks.NewMockEventLog(ctrl)
	idem := mocks.NewMockIdempotencyStore(ctrl)
	acceptLk := &stubAcceptLock{grant: true}
	sweep := &stubSweepGuard{grant: true}
	orderTx := &stubTransitioner{}

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	manager := NewManager(
		mockPool,
		tasks,
		offerLogs,
		drivers,
		orders,
		events,
		idem,
		acceptLk,
		sweep,
		orderTx,
		zerolog.Nop(),
	)

	return &testManagerSetup{
		manager:   manager,
		tasks:     tasks,
		offerLogs: offerLogs,
		drivers:   drivers,
		orders:    orders,
		events:    events,
		idem:      idem,
		acceptLk:  acceptLk,
		sweep:     sweep,
		orderTx:   orderTx,
		mockPool:  mockPool,
		ctrl:      ctrl,
	}
}

func (s *testManagerSetup) cleanup() {
	s.ctrl.Finish()
	s.mockPool.Close()
}

// expectIdempotencyMiss sets up the Check-miss + Store pair GetOrSet issues
// around a compute that runs for the first time.
func (s *testManagerSetup) expectIdempotencyMiss(key string) {
	s.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), key, RouteTaskAccept, gomock.Any()).
		Return(nil, false, nil)
	s.idem.EXPECT().
		Store(gomock.Any(), gomock.Any(), key, RouteTaskAccept, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
}

func offeredTask(taskID, orderID, driverID string) *models.DeliveryTask {
	expires := time.Now().Add(20 * time.Second)
	return &models.DeliveryTask{
		ID:                taskID,
		OrderID:           orderID,
		Status:            models.TaskOffered,
		OfferedToDriverID: driverID,
		OfferExpiresAt:    &expires,
		Route:             models.RouteInfo{Type: models.RouteDelivery},
		CreatedAt:         time.Now().Add(-10 * time.Second),
	}
}

func TestManager_CreateOffer(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	ctx := context.Background()
	setup.mockPool.ExpectBegin()
	tx, err := setup.mockPool.Begin(ctx)
	require.NoError(t, err)

	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskUnassigned, CreatedAt: time.Now()}

	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)

	var logged *models.OfferLog
	setup.offerLogs.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, ol *models.OfferLog) error {
			logged = ol
			return nil
		})
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorSystem, "dispatch", models.EventTaskOffered, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	features := map[string]interface{}{"eta_pu_s": 240, "cost": 810}
	err = setup.manager.CreateOffer(ctx, tx, task, "drv_1", features, 30*time.Second)

	require.NoError(t, err)
	assert.Equal(t, models.TaskOffered, task.Status)
	assert.Equal(t, "drv_1", task.OfferedToDriverID)
	require.NotNil(t, task.OfferExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), *task.OfferExpiresAt, 2*time.Second)

	require.NotNil(t, logged)
	assert.Equal(t, "task_1", logged.TaskID)
	assert.Equal(t, "drv_1", logged.DriverID)
	assert.Equal(t, features, logged.Features)
}

func TestManager_AcceptTask_Success(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := offeredTask("task_1", "ord_1", "drv_1")
	driver := &models.Driver{ID: "drv_1", Status: models.DriverIdle}
	offerLog := &models.OfferLog{ID: "offer_1", TaskID: "task_1", CreatedAt: time.Now().Add(-5 * time.Second)}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-accept-1")
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.drivers.EXPECT().
		GetByID(gomock.Any(), gomock.Any(), "drv_1").
		Return(driver, nil)
	setup.drivers.EXPECT().
		Update(gomock.Any(), gomock.Any(), driver).
		Return(nil)
	setup.offerLogs.EXPECT().
		LatestByTaskID(gomock.Any(), gomock.Any(), "task_1").
		Return(offerLog, nil)
	setup.offerLogs.EXPECT().
		SetOutcome(gomock.Any(), gomock.Any(), "offer_1", models.OutcomeAccepted, gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorDriver, "drv_1", models.EventTaskAccepted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "ord_1").
		Return(&models.Order{ID: "ord_1", Status: models.StatusDispatching}, nil)
	setup.mockPool.ExpectCommit()

	code, resp, err := setup.manager.AcceptTask(context.Background(), "idem-accept-1", "task_1", "drv_1")

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, models.TaskAccepted, task.Status)
	assert.Equal(t, "drv_1", task.DriverID)
	assert.Nil(t, task.OfferExpiresAt)
	assert.Equal(t, models.DriverOnTask, driver.Status)
	assert.Equal(t, []models.OrderStatus{models.StatusPickup}, setup.orderTx.calls)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, "task_1", body["task_id"])
	assert.Equal(t, string(models.TaskAccepted), body["status"])

	// the accept lock is always released, success or not
	assert.Equal(t, []string{lock.TaskAcceptKey("task_1")}, setup.acceptLk.released)
	assert.NoError(t, setup.mockPool.ExpectationsWereMet())
}

func TestManager_AcceptTask_MissingIdempotencyKey(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	_, _, err := setup.manager.AcceptTask(context.Background(), "", "task_1", "drv_1")

	assert.ErrorIs(t, err, models.ErrMissingIdempotencyKey)
	// rejected before the lock is even attempted
	assert.Empty(t, setup.acceptLk.acquired)
}

func TestManager_AcceptTask_Replay(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	stored := &models.IdempotencyRecord{
		StatusCode:   200,
		ResponseJSON: []byte(`{"status":"ACCEPTED","task_id":"task_1"}`),
	}

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-accept-replay", RouteTaskAccept, gomock.Any()).
		Return(stored, true, nil)
	setup.mockPool.ExpectCommit()

	// No task/driver/event expectations: a same-key retry after a
	// successful accept replays the cached 200 instead of tripping the
	// OFFERED-status precondition.
	code, resp, err := setup.manager.AcceptTask(context.Background(), "idem-accept-replay", "task_1", "drv_1")

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.JSONEq(t, string(stored.ResponseJSON), string(resp))
}

func TestManager_AcceptTask_LockContention(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	setup.acceptLk.grant = false

	_, _, err := setup.manager.AcceptTask(context.Background(), "idem-accept-2", "task_1", "drv_1")

	assert.ErrorIs(t, err, models.ErrAcceptLocked)
	// the loser never touches the database and never releases a lock it
	// does not hold
	assert.Empty(t, setup.acceptLk.released)
	assert.NoError(t, setup.mockPool.ExpectationsWereMet())
}

func TestManager_AcceptTask_WrongDriver(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := offeredTask("task_1", "ord_1", "drv_1")

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-accept-3", RouteTaskAccept, gomock.Any()).
		Return(nil, false, nil)
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.mockPool.ExpectRollback()

	_, _, err := setup.manager.AcceptTask(context.Background(), "idem-accept-3", "task_1", "drv_2")

	assert.ErrorIs(t, err, models.ErrTaskNotOfferedToYou)
	assert.Equal(t, models.TaskOffered, task.Status)
	assert.Equal(t, []string{lock.TaskAcceptKey("task_1")}, setup.acceptLk.released)
}

func TestManager_AcceptTask_NotOffered(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := offeredTask("task_1", "ord_1", "drv_1")
	task.Status = models.TaskExpired
	task.OfferExpiresAt = nil

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-accept-4", RouteTaskAccept, gomock.Any()).
		Return(nil, false, nil)
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.mockPool.ExpectRollback()

	_, _, err := setup.manager.AcceptTask(context.Background(), "idem-accept-4", "task_1", "drv_1")

	assert.ErrorIs(t, err, models.ErrInvalidTaskStatus)
}

func TestManager_RejectTask_RecordsOutcome(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := offeredTask("task_1", "ord_1", "drv_1")
	offerLog := &models.OfferLog{ID: "offer_1", TaskID: "task_1", CreatedAt: time.Now().Add(-5 * time.Second)}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.offerLogs.EXPECT().
		LatestByTaskID(gomock.Any(), gomock.Any(), "task_1").
		Return(offerLog, nil)
	setup.offerLogs.EXPECT().
		SetOutcome(gomock.Any(), gomock.Any(), "offer_1", models.OutcomeRejected, gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorDriver, "drv_1", models.EventTaskRejected, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.mockPool.ExpectCommit()

	err := setup.manager.RejectTask(context.Background(), "task_1", "drv_1")

	require.NoError(t, err)
	// the task goes back into the dispatch pool
	assert.Equal(t, models.TaskUnassigned, task.Status)
	assert.Empty(t, task.OfferedToDriverID)
	assert.Nil(t, task.OfferExpiresAt)
	// no order cascade on reject
	assert.Empty(t, setup.orderTx.calls)
}

func TestManager_StartTask_CascadesToDoorstep(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskAccepted, DriverID: "drv_1", Route: models.RouteInfo{Type: models.RouteDelivery}}
	order := &models.Order{ID: "ord_1", Status: models.StatusPickup}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorDriver, "drv_1", models.EventTaskStarted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "ord_1").
		Return(order, nil).
		Times(2)
	setup.mockPool.ExpectCommit()

	err := setup.manager.StartTask(context.Background(), "task_1", "drv_1")

	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, task.Status)
	assert.Equal(t, []models.OrderStatus{models.StatusEnRoute, models.StatusDoorstepVerify}, setup.orderTx.calls)
}

func TestManager_CompleteTask_ForwardLegCascadesDelivered(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskInProgress, DriverID: "drv_1", Route: models.RouteInfo{Type: models.RouteDelivery}}
	driver := &models.Driver{ID: "drv_1", Status: models.DriverOnTask}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.drivers.EXPECT().
		GetByID(gomock.Any(), gomock.Any(), "drv_1").
		Return(driver, nil)
	setup.drivers.EXPECT().
		Update(gomock.Any(), gomock.Any(), driver).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorDriver, "drv_1", models.EventTaskCompleted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "ord_1").
		Return(&models.Order{ID: "ord_1", Status: models.StatusDoorstepVerify}, nil)
	setup.mockPool.ExpectCommit()

	err := setup.manager.CompleteTask(context.Background(), "task_1", "drv_1")

	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
	assert.Equal(t, models.DriverIdle, driver.Status)
	assert.Equal(t, []models.OrderStatus{models.StatusDelivered}, setup.orderTx.calls)
}

func TestManager_CompleteTask_ReturnLegSkipsCascade(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskInProgress, DriverID: "drv_1", Route: models.RouteInfo{Type: models.RouteReturn, ToStoreID: "store_1"}}
	driver := &models.Driver{ID: "drv_1", Status: models.DriverOnTask}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.drivers.EXPECT().
		GetByID(gomock.Any(), gomock.Any(), "drv_1").
		Return(driver, nil)
	setup.drivers.EXPECT().
		Update(gomock.Any(), gomock.Any(), driver).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorDriver, "drv_1", models.EventReturnCompleted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.mockPool.ExpectCommit()

	err := setup.manager.CompleteTask(context.Background(), "task_1", "drv_1")

	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
	// the order is already terminal in REFUSED_RETURNING; no cascade
	assert.Empty(t, setup.orderTx.calls)
}

func TestManager_CompleteReturn_NoDriverCheck(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	// a store clerk can confirm receipt before the return driver ever
	// called start, and no driver-assignment guard applies
	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskAccepted, DriverID: "drv_1", Route: models.RouteInfo{Type: models.RouteReturn, ToStoreID: "store_1"}}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorSystem, "dispatch", models.EventReturnCompleted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.mockPool.ExpectCommit()

	err := setup.manager.CompleteReturn(context.Background(), "task_1")

	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
	assert.Empty(t, setup.orderTx.calls)
}

func TestManager_ManualOffer_FailedTaskReoffered(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskFailed, CreatedAt: time.Now()}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.tasks.EXPECT().
		Update(gomock.Any(), gomock.Any(), task).
		Return(nil)
	setup.offerLogs.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorSystem, "dispatch", models.EventTaskOffered, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.mockPool.ExpectCommit()

	err := setup.manager.ManualOffer(context.Background(), "task_1", "drv_1", 30*time.Second)

	require.NoError(t, err)
	assert.Equal(t, models.TaskOffered, task.Status)
	assert.Equal(t, "drv_1", task.OfferedToDriverID)
}

func TestManager_ManualOffer_ActiveTaskRejected(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	task := offeredTask("task_1", "ord_1", "drv_1")

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), "task_1").
		Return(task, nil)
	setup.mockPool.ExpectRollback()

	err := setup.manager.ManualOffer(context.Background(), "task_1", "drv_2", 30*time.Second)

	assert.ErrorIs(t, err, models.ErrInvalidTaskStatus)
}

func TestManager_ExpireOffers_SweepsLapsedOffers(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	now := time.Now()
	makeLapsed := func(taskID, orderID string) *models.DeliveryTask {
		expired := now.Add(-5 * time.Second)
		return &models.DeliveryTask{
			ID:                taskID,
			OrderID:           orderID,
			Status:            models.TaskOffered,
			OfferedToDriverID: "drv_1",
			OfferExpiresAt:    &expired,
			CreatedAt:         now.Add(-35 * time.Second),
		}
	}
	lapsed := []*models.DeliveryTask{makeLapsed("task_1", "ord_1"), makeLapsed("task_2", "ord_2")}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetExpiredOffers(gomock.Any(), gomock.Any(), now.UnixMilli(), 100).
		Return(lapsed, nil)

	for _, task := range lapsed {
		task := task
		setup.tasks.EXPECT().
			Update(gomock.Any(), gomock.Any(), task).
			Return(nil)
		setup.events.EXPECT().
			Append(gomock.Any(), gomock.Any(), task.OrderID, models.ActorSystem, "sweeper", models.EventTaskExpired, gomock.Any()).
			Return(&models.OrderEvent{}, nil)
		setup.offerLogs.EXPECT().
			LatestByTaskID(gomock.Any(), gomock.Any(), task.ID).
			Return(&models.OfferLog{ID: "offer_" + task.ID, TaskID: task.ID, CreatedAt: task.CreatedAt}, nil)
		setup.offerLogs.EXPECT().
			SetOutcome(gomock.Any(), gomock.Any(), "offer_"+task.ID, models.OutcomeTimeout, now.UnixMilli(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ interface{}, _ string, _ models.OfferOutcome, _ int64, latencyMS *int64) error {
				require.NotNil(t, latencyMS)
				assert.GreaterOrEqual(t, *latencyMS, int64(30000))
				return nil
			})
	}
	setup.mockPool.ExpectCommit()

	count, err := setup.manager.ExpireOffers(context.Background(), now, 100)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	for _, task := range lapsed {
		assert.Equal(t, models.TaskExpired, task.Status)
		assert.Empty(t, task.OfferedToDriverID)
		assert.Nil(t, task.OfferExpiresAt)
	}
	assert.True(t, setup.sweep.released)
}

func TestManager_ExpireOffers_NotElected(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	setup.sweep.grant = false

	count, err := setup.manager.ExpireOffers(context.Background(), time.Now(), 100)

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, setup.mockPool.ExpectationsWereMet())
}

func TestManager_DispatchOrder_ReusesActiveTask(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	existing := &models.DeliveryTask{ID: "task_1", OrderID: "ord_1", Status: models.TaskUnassigned}

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetActiveByOrderID(gomock.Any(), gomock.Any(), "ord_1").
		Return(existing, nil)
	setup.mockPool.ExpectCommit()

	taskID, status, err := setup.manager.DispatchOrder(context.Background(), "ord_1")

	require.NoError(t, err)
	assert.Equal(t, "task_1", taskID)
	assert.Equal(t, models.TaskUnassigned, status)
}

func TestManager_DispatchOrder_CreatesWhenNoneActive(t *testing.T) {
	setup := setupTestManager(t)
	defer setup.cleanup()

	setup.mockPool.ExpectBegin()
	setup.tasks.EXPECT().
		GetActiveByOrderID(gomock.Any(), gomock.Any(), "ord_1").
		Return(nil, nil)
	setup.tasks.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorSystem, "dispatch", models.EventTaskCreated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.mockPool.ExpectCommit()

	taskID, status, err := setup.manager.DispatchOrder(context.Background(), "ord_1")

	require.NoError(t, err)
	assert.NotEmpty(t, taskID)
	assert.Equal(t, models.TaskUnassigned, status)
}
