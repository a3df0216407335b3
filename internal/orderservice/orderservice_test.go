package orderservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/doInfinitely/deliverycore/internal/adapters/payment"
	"github.com/doInfinitely/deliverycore/internal/adapters/verification"
	"github.com/doInfinitely/deliverycore/internal/config"
	"github.com/doInfinitely/deliverycore/internal/mocks"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/observability"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// testServiceSetup holds the service under test plus every mocked dependency.
type testServiceSetup struct {
	service   *Service
	orders    *mocks.MockOrderRepository
	tasks     *mocks.MockTaskRepository
	drivers   *mocks.MockDriverRepository
	catalog   *mocks.MockCatalogRepository
	events    *mocks.MockEventLog
	idem      *mocks.MockIdempotencyStore
	verifier  *mocks.MockVerificationAdapter
	payments  *mocks.MockPaymentAdapter
	mockPool  pgxmock.PgxPoolIface
	ctrl      *gomock.Controller
}

func setupTestService(t *testing.T, autoAcceptMerchant bool) *testServiceSetup {
	ctrl := gomock.NewController(t)

	orders := mocks.NewMockOrderRepository(ctrl)
	tasks := mocks.NewMockTaskRepository(ctrl)
	drivers := mocks.NewMockDriverRepository(ctrl)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	events := mocks.NewMockEventLog(ctrl)
	idem := mocks.NewMockIdempotencyStore(ctrl)
	verifier := mocks.NewMockVerificationAdapter(ctrl)
	payments := mocks.NewMockPaymentAdapter(ctrl)

	logger := zerolog.Nop()

	// Fresh registry per test to avoid duplicate registration errors.
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	service := New(
		mockPool,
		orders,
		tasks,
		drivers,
		catalog,
		events,
		idem,
		verifier,
		payments,
		metrics,
		logger,
		config.CheckoutConfig{AutoAcceptMerchant: autoAcceptMerchant},
		config.DispatchConfig{TaxRateBps: 825, FlatFeeCents: 299, PaymentFloorCents: 2500},
		21,
	)

	return &testServiceSetup{
		service:  service,
		orders:   orders,
		tasks:    tasks,
		drivers:  drivers,
		catalog:  catalog,
		events:   events,
		idem:     idem,
		verifier: verifier,
		payments: payments,
		mockPool: mockPool,
		ctrl:     ctrl,
	}
}

func (s *testServiceSetup) cleanup() {
	s.ctrl.Finish()
	s.mockPool.Close()
}

// expectIdempotencyMiss sets up the Check-miss + Store pair GetOrSet issues
// around a compute that runs for the first time.
func (s *testServiceSetup) expectIdempotencyMiss(key string) {
	s.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), key, gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	s.idem.EXPECT().
		Store(gomock.Any(), gomock.Any(), key, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
}

func TestService_CreateOrder_Success(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	ctx := context.Background()
	req := &CreateOrderRequest{
		CustomerID:        "cust_1",
		StoreID:           "store_1",
		AddressID:         "addr_1",
		Items:             []CreateOrderItem{{ProductID: "prod_1", Quantity: 2}},
		TipCents:          150,
		DisclosureVersion: "tx-v1.0",
	}

	setup.mockPool.ExpectBegin()

	setup.catalog.EXPECT().
		GetProduct(gomock.Any(), gomock.Any(), "prod_1").
		Return(&models.Product{ID: "prod_1", Name: "item", PriceCents: 1000}, nil)

	var created *models.Order
	setup.orders.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, o *models.Order) error {
			created = o
			return nil
		})

	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), gomock.Any(), models.ActorCustomer, "cust_1", models.EventDisclosureAcknowledged, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	// CREATED -> VERIFYING_AGE transition
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), gomock.Any(), models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	resp, err := setup.service.CreateOrder(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusVerifyingAge), resp.Status)
	assert.NotEmpty(t, resp.OrderID)

	// subtotal 2*1000, tax round(2000*8.25%)=165, fee 299, tip 150
	require.NotNil(t, created)
	assert.Equal(t, int64(2000), created.SubtotalCents)
	assert.Equal(t, int64(165), created.TaxCents)
	assert.Equal(t, int64(299), created.FeesCents)
	assert.Equal(t, int64(2614), created.TotalCents)

	assert.NoError(t, setup.mockPool.ExpectationsWereMet())
}

func TestService_CreateOrder_ProductNotFound(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	req := &CreateOrderRequest{
		CustomerID:        "cust_1",
		StoreID:           "store_1",
		AddressID:         "addr_1",
		Items:             []CreateOrderItem{{ProductID: "prod_missing", Quantity: 1}},
		DisclosureVersion: "tx-v1.0",
	}

	setup.mockPool.ExpectBegin()
	setup.catalog.EXPECT().
		GetProduct(gomock.Any(), gomock.Any(), "prod_missing").
		Return(nil, models.ErrProductNotFound)
	setup.mockPool.ExpectRollback()

	resp, err := setup.service.CreateOrder(context.Background(), req)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestService_CreateOrder_ValidationError(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	req := &CreateOrderRequest{
		CustomerID: "cust_1",
		// missing store, address, items, disclosure
	}

	resp, err := setup.service.CreateOrder(context.Background(), req)

	assert.Nil(t, resp)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validate create order")
}

func TestService_VerifyAge_Passed(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, Status: models.StatusVerifyingAge}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-verify-1")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventAgeVerifyAttempted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.verifier.EXPECT().
		VerifyAgeCheckout(gomock.Any(), "pass", 21).
		Return(verification.Result{Status: verification.StatusPassed, ProofRef: "proof_1", DOBYear: 1990, Vendor: "fake"}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventAgeVerifyPassed, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.VerifyAge(context.Background(), "idem-verify-1", orderID, &VerifyAgeRequest{SessionRef: "pass"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, "PASSED", body["status"])
	assert.Equal(t, string(models.StatusPaymentAuth), body["order_status"])
	assert.Equal(t, models.StatusPaymentAuth, order.Status)
}

func TestService_VerifyAge_Underage(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, Status: models.StatusVerifyingAge}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-verify-2")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventAgeVerifyAttempted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.verifier.EXPECT().
		VerifyAgeCheckout(gomock.Any(), "underage", 21).
		Return(verification.Result{Status: verification.StatusFailed, ReasonCode: verification.ReasonUnderage, Vendor: "fake"}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventAgeVerifyFailed, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.VerifyAge(context.Background(), "idem-verify-2", orderID, &VerifyAgeRequest{SessionRef: "underage"})

	require.NoError(t, err)
	assert.Equal(t, 403, code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, "UNDERAGE", body["reason_code"])

	// order never advanced: the customer may retry with a new key
	assert.Equal(t, models.StatusVerifyingAge, order.Status)
}

func TestService_VerifyAge_MissingIdempotencyKey(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	_, _, err := setup.service.VerifyAge(context.Background(), "", "ord_1", &VerifyAgeRequest{SessionRef: "pass"})

	assert.ErrorIs(t, err, models.ErrMissingIdempotencyKey)
}

func TestService_VerifyAge_Replay(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	stored := &models.IdempotencyRecord{
		StatusCode:   200,
		ResponseJSON: []byte(`{"order_status":"PAYMENT_AUTH","status":"PASSED"}`),
	}

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-replay", gomock.Any(), gomock.Any()).
		Return(stored, true, nil)
	setup.mockPool.ExpectCommit()

	// No order repo, verifier or event expectations: a replay must not
	// re-run the compute closure, even if the order has since moved on.
	code, resp, err := setup.service.VerifyAge(context.Background(), "idem-replay", "ord_1", &VerifyAgeRequest{SessionRef: "pass"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.JSONEq(t, string(stored.ResponseJSON), string(resp))
}

func TestService_VerifyAge_IdempotencyMismatch(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-conflict", gomock.Any(), gomock.Any()).
		Return(nil, false, models.ErrIdempotencyMismatch)
	setup.mockPool.ExpectRollback()

	_, _, err := setup.service.VerifyAge(context.Background(), "idem-conflict", "ord_1", &VerifyAgeRequest{SessionRef: "pass"})

	assert.ErrorIs(t, err, models.ErrIdempotencyMismatch)
}

func TestService_VerifyAge_WrongStatus(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-wrong-status", gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(&models.Order{ID: orderID, Status: models.StatusPaymentAuth}, nil)
	setup.mockPool.ExpectRollback()

	_, _, err := setup.service.VerifyAge(context.Background(), "idem-wrong-status", orderID, &VerifyAgeRequest{SessionRef: "pass"})

	assert.ErrorIs(t, err, models.ErrInvalidOrderStatus)
}

func TestService_VerifyAge_VendorTransportError(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-vendor-down", gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(&models.Order{ID: orderID, Status: models.StatusVerifyingAge}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventAgeVerifyAttempted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.verifier.EXPECT().
		VerifyAgeCheckout(gomock.Any(), "pass", 21).
		Return(verification.Result{}, errors.New("connection refused"))
	setup.mockPool.ExpectRollback()

	_, _, err := setup.service.VerifyAge(context.Background(), "idem-vendor-down", orderID, &VerifyAgeRequest{SessionRef: "pass"})

	assert.ErrorIs(t, err, models.ErrVendorTransport)
}

func TestService_AuthorizePayment_DemoFoldCreatesTask(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, StoreID: "store_1", Status: models.StatusPaymentAuth, TotalCents: 3000}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-pay-1")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.payments.EXPECT().
		Authorize(gomock.Any(), int64(3000)).
		Return(payment.AuthorizationResult{Processor: "fake", PaymentIntentID: "pi_1", AmountCents: 3000}, nil)

	// payment status persist + PENDING_MERCHANT + MERCHANT_ACCEPTED + DISPATCHING
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		Times(4)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "payments", models.EventPaymentAuthorized, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, gomock.Any(), gomock.Any(), models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil).
		Times(3)

	var task *models.DeliveryTask
	setup.tasks.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, tk *models.DeliveryTask) error {
			task = tk
			return nil
		})
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "dispatch", models.EventTaskCreated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.AuthorizePayment(context.Background(), "idem-pay-1", orderID, &AuthorizePaymentRequest{PaymentMethod: "pm_x"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, models.StatusDispatching, order.Status)
	assert.Equal(t, models.PaymentAuthorized, order.PaymentStatus)

	require.NotNil(t, task)
	assert.Equal(t, models.TaskUnassigned, task.Status)
	assert.Equal(t, models.RouteDelivery, task.Route.Type)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, string(models.StatusDispatching), body["order_status"])
	assert.Equal(t, task.ID, body["task_id"])
}

func TestService_AuthorizePayment_ProductionHaltsAtPendingMerchant(t *testing.T) {
	setup := setupTestService(t, false)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, Status: models.StatusPaymentAuth, TotalCents: 3000}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-pay-2")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.payments.EXPECT().
		Authorize(gomock.Any(), int64(3000)).
		Return(payment.AuthorizationResult{Processor: "fake", PaymentIntentID: "pi_1", AmountCents: 3000}, nil)

	// payment status persist + the single PENDING_MERCHANT transition; no
	// task creation expectations — the fold is off
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		Times(2)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "payments", models.EventPaymentAuthorized, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.AuthorizePayment(context.Background(), "idem-pay-2", orderID, &AuthorizePaymentRequest{PaymentMethod: "pm_x"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, models.StatusPendingMerchant, order.Status)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, string(models.StatusPendingMerchant), body["order_status"])
	assert.NotContains(t, body, "task_id")
}

func TestService_AuthorizePayment_FloorsTinyTotal(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, StoreID: "store_1", Status: models.StatusPaymentAuth, TotalCents: 500}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-pay-floor")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.payments.EXPECT().
		Authorize(gomock.Any(), int64(2500)).
		Return(payment.AuthorizationResult{Processor: "fake", PaymentIntentID: "pi_1", AmountCents: 2500}, nil)
	setup.orders.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	setup.tasks.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.OrderEvent{}, nil).
		AnyTimes()

	setup.mockPool.ExpectCommit()

	code, _, err := setup.service.AuthorizePayment(context.Background(), "idem-pay-floor", orderID, &AuthorizePaymentRequest{PaymentMethod: "pm_x"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, int64(2500), order.TotalCents)
}

func TestService_DoorstepIDCheck_NoIDRefusesAndOpensReturn(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, StoreID: "store_9", Status: models.StatusDoorstepVerify}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-doorstep-1")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorDriver, "drv_1", models.EventDoorstepCheckStarted, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.verifier.EXPECT().
		VerifyIDDoorstep(gomock.Any(), "noid", 21).
		Return(verification.Result{Status: verification.StatusFailed, ReasonCode: verification.ReasonNoID, Vendor: "fake"}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorDriver, "drv_1", models.EventDoorstepCheckFailed, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	// DOORSTEP_VERIFY -> REFUSED_RETURNING
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorDriver, "drv_1", models.EventRefused, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	var returnTask *models.DeliveryTask
	setup.tasks.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, tk *models.DeliveryTask) error {
			returnTask = tk
			return nil
		})
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventReturnInitiated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.DoorstepIDCheck(context.Background(), "idem-doorstep-1", orderID, &DoorstepSubmitRequest{SessionRef: "noid", DriverID: "drv_1"})

	require.NoError(t, err)
	assert.Equal(t, 403, code)
	assert.Equal(t, models.StatusRefusedReturning, order.Status)

	require.NotNil(t, returnTask)
	assert.Equal(t, models.RouteReturn, returnTask.Route.Type)
	assert.Equal(t, "store_9", returnTask.Route.ToStoreID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, "NO_ID", body["reason_code"])
}

func TestService_DeliverConfirm_MissingDoorstepPass(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-deliver-1")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(&models.Order{ID: orderID, Status: models.StatusDoorstepVerify}, nil)
	setup.events.EXPECT().
		LatestOfType(gomock.Any(), gomock.Any(), orderID, models.EventDoorstepCheckPassed).
		Return(nil, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.DeliverConfirm(context.Background(), "idem-deliver-1", orderID, &DeliverConfirmRequest{AttestationRef: "att_1"})

	require.NoError(t, err)
	assert.Equal(t, 403, code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.Equal(t, "MISSING_DOORSTEP_PASS", body["reason_code"])
}

func TestService_DeliverConfirm_Success(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, Status: models.StatusDoorstepVerify}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-deliver-2")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.events.EXPECT().
		LatestOfType(gomock.Any(), gomock.Any(), orderID, models.EventDoorstepCheckPassed).
		Return(&models.OrderEvent{ID: "evt_pass", EventType: models.EventDoorstepCheckPassed}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorDriver, "drv_1", models.EventDelivered, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, _, err := setup.service.DeliverConfirm(context.Background(), "idem-deliver-2", orderID, &DeliverConfirmRequest{AttestationRef: "att_1", DriverID: "drv_1", GPS: &GPS{Lat: 30.27, Lng: -97.74}})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, models.StatusDelivered, order.Status)
}

func TestService_Refuse_TerminalOrderRejected(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"

	setup.mockPool.ExpectBegin()
	setup.idem.EXPECT().
		Check(gomock.Any(), gomock.Any(), "idem-refuse-1", gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(&models.Order{ID: orderID, Status: models.StatusDelivered}, nil)
	setup.mockPool.ExpectRollback()

	_, _, err := setup.service.Refuse(context.Background(), "idem-refuse-1", orderID, &RefuseRequest{ReasonCode: "CUSTOMER_UNAVAILABLE"})

	assert.ErrorIs(t, err, models.ErrInvalidOrderStatus)
}

func TestService_Refuse_MidFlightOrder(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	order := &models.Order{ID: orderID, StoreID: "store_2", Status: models.StatusEnRoute}

	setup.mockPool.ExpectBegin()
	setup.expectIdempotencyMiss("idem-refuse-2")

	setup.orders.EXPECT().
		GetByIDForUpdate(gomock.Any(), gomock.Any(), orderID).
		Return(order, nil)
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorDriver, "drv_1", models.EventRefused, gomock.Any()).
		Return(&models.OrderEvent{}, nil)
	setup.tasks.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), orderID, models.ActorSystem, "oms", models.EventReturnInitiated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	setup.mockPool.ExpectCommit()

	code, resp, err := setup.service.Refuse(context.Background(), "idem-refuse-2", orderID, &RefuseRequest{ReasonCode: "CUSTOMER_UNAVAILABLE", DriverID: "drv_1"})

	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, models.StatusRefusedReturning, order.Status)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &body))
	assert.NotEmpty(t, body["return_task_id"])
}

func TestService_TryTransition(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	ctx := context.Background()

	// legal cascade fires
	order := &models.Order{ID: "ord_1", Status: models.StatusDispatching}
	setup.orders.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	setup.events.EXPECT().
		Append(gomock.Any(), gomock.Any(), "ord_1", models.ActorSystem, "dispatch", models.EventOrderStatusUpdated, gomock.Any()).
		Return(&models.OrderEvent{}, nil)

	assert.True(t, setup.service.TryTransition(ctx, nil, order, models.StatusPickup, models.ActorSystem, "dispatch"))
	assert.Equal(t, models.StatusPickup, order.Status)

	// illegal cascade reports false without touching the repositories
	stuck := &models.Order{ID: "ord_2", Status: models.StatusCreated}
	assert.False(t, setup.service.TryTransition(ctx, nil, stuck, models.StatusDelivered, models.ActorSystem, "dispatch"))
	assert.Equal(t, models.StatusCreated, stuck.Status)
}

func TestService_GetDossier(t *testing.T) {
	setup := setupTestService(t, true)
	defer setup.cleanup()

	orderID := "ord_1"
	chain := []*models.OrderEvent{
		{ID: "evt_1", OrderID: orderID, EventType: models.EventDisclosureAcknowledged},
		{ID: "evt_2", OrderID: orderID, EventType: models.EventOrderStatusUpdated},
	}

	setup.mockPool.ExpectBegin()
	setup.orders.EXPECT().
		GetByID(gomock.Any(), gomock.Any(), orderID).
		Return(&models.Order{ID: orderID}, nil)
	setup.events.EXPECT().
		List(gomock.Any(), gomock.Any(), orderID).
		Return(chain, nil)
	setup.mockPool.ExpectCommit()

	events, err := setup.service.GetDossier(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, chain, events)
}
