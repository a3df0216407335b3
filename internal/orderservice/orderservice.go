package orderservice

import (
	"context"
	"fmt"
	"time"

	"github.com/doInfinitely/deliverycore/internal/adapters/payment"
	"github.com/doInfinitely/deliverycore/internal/adapters/verification"
	"github.com/doInfinitely/deliverycore/internal/config"
	"github.com/doInfinitely/deliverycore/internal/eventlog"
	"github.com/doInfinitely/deliverycore/internal/idempotency"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/observability"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/doInfinitely/deliverycore/internal/statemachine"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Database is the slice of *pgxpool.Pool this service needs: transaction
// origination. Satisfied by pgxpool.Pool in production and pgxmock's pool in
// tests.
type Database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service implements the order lifecycle engine's public operations:
// checkout, age verification, payment authorization, doorstep identity
// verification, delivery confirmation and refusal, each run inside one
// transaction alongside the state transition(s) and dossier events it
// produces. Grounded on apps/api/routers/orders.py.
type Service struct {
	db        Database
	orders    repository.OrderRepository
	tasks     repository.TaskRepository
	drivers   repository.DriverRepository
	catalog   repository.CatalogRepository
	events    eventlog.EventLog
	idem      idempotency.Store
	verifier  verification.Adapter
	payments  payment.Adapter
	metrics   *observability.Metrics
	logger    zerolog.Logger
	validator *validator.Validate

	cfg config.CheckoutConfig

	taxRateBps        int
	flatFeeCents      int64
	paymentFloorCents int64
	ageThresholdYrs   int
}

// New builds an OrderService.
func New(
	db Database,
	orders repository.OrderRepository,
	tasks repository.TaskRepository,
	drivers repository.DriverRepository,
	catalog repository.CatalogRepository,
	events eventlog.EventLog,
	idem idempotency.Store,
	verifier verification.Adapter,
	payments payment.Adapter,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg config.CheckoutConfig,
	dispatchCfg config.DispatchConfig,
	ageThresholdYrs int,
) *Service {
	return &Service{
		db:                db,
		orders:            orders,
		tasks:             tasks,
		drivers:           drivers,
		catalog:           catalog,
		events:            events,
		idem:              idem,
		verifier:          verifier,
		payments:          payments,
		metrics:           metrics,
		logger:            logger.With().Str("component", "order_service").Logger(),
		validator:         validator.New(),
		cfg:               cfg,
		taxRateBps:        dispatchCfg.TaxRateBps,
		flatFeeCents:      dispatchCfg.FlatFeeCents,
		paymentFloorCents: dispatchCfg.PaymentFloorCents,
		ageThresholdYrs:   ageThresholdYrs,
	}
}

func withTx(ctx context.Context, db Database, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order service: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// transition performs a mandatory state transition: the caller is certain
// (from a precondition it already checked) that the move is legal, so any
// failure here is an invariant violation, not a recoverable business
// outcome. It persists the order and appends ORDER_STATUS_UPDATED in one
// step.
func (s *Service) transition(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorType models.ActorType, actorID string) error {
	if _, err := statemachine.Transition(order.Status, to); err != nil {
		return err
	}
	from := order.Status
	order.Status = to
	if err := s.orders.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("order service: update order status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OrderTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	}
	_, err := s.events.Append(ctx, tx, order.ID, actorType, actorID, models.EventOrderStatusUpdated, map[string]interface{}{
		"to": string(to),
	})
	return err
}

// TryTransition attempts a best-effort cascade transition — a task-lifecycle
// event opportunistically nudging the parent order forward (e.g. task
// accept -> order PICKUP). It never returns an error: an inapplicable
// transition is logged at debug and reported as false, matching spec.md's
// Open Question #3 redesign (replacing the original's bare
// `try/except Exception: pass`) while keeping the miss observable instead of
// silently swallowed. This is the method internal/offers.Manager calls
// through the offers.OrderTransitioner interface.
func (s *Service) TryTransition(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorType models.ActorType, actorID string) bool {
	if !statemachine.CanTransition(order.Status, to) {
		s.logger.Debug().Str("order_id", order.ID).Str("from", string(order.Status)).Str("to", string(to)).Msg("cascade transition skipped: not allowed from current state")
		if s.metrics != nil {
			s.metrics.OrderTransitionRejects.WithLabelValues(string(order.Status), string(to)).Inc()
		}
		return false
	}
	if err := s.transition(ctx, tx, order, to, actorType, actorID); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Str("to", string(to)).Msg("cascade transition failed unexpectedly")
		return false
	}
	return true
}

// forceRefusedReturning moves order straight to REFUSED_RETURNING
// regardless of its current (non-terminal) status, bypassing
// statemachine.allowed's literal per-state table. spec.md §4.1's table only
// names DOORSTEP_VERIFY -> REFUSED_RETURNING, but spec.md §4.4's Refuse
// contract is "allowed unless order already DELIVERED or CANCELED" — a
// courier or support agent can refuse/return an order at any earlier
// non-terminal stage too. This is the dedicated bypass the table itself
// cannot express; Refuse is the only caller.
func (s *Service) forceRefusedReturning(ctx context.Context, tx pgx.Tx, order *models.Order, actorType models.ActorType, actorID string) error {
	from := order.Status
	order.Status = models.StatusRefusedReturning
	if err := s.orders.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("order service: update order status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OrderTransitionsTotal.WithLabelValues(string(from), string(models.StatusRefusedReturning)).Inc()
	}
	_, err := s.events.Append(ctx, tx, order.ID, actorType, actorID, models.EventOrderStatusUpdated, map[string]interface{}{
		"to": string(models.StatusRefusedReturning),
	})
	return err
}

// CreateOrder resolves catalog pricing for each item, computes totals, and
// creates the order CREATED -> VERIFYING_AGE, matching
// apps/api/routers/orders.py's create_order.
func (s *Service) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("order service: validate create order: %w", err)
	}

	order := &models.Order{
		ID:            models.NewOrderID(),
		CustomerID:    req.CustomerID,
		StoreID:       req.StoreID,
		AddressID:     req.AddressID,
		Status:        models.StatusCreated,
		PaymentStatus: models.PaymentUnpaid,
		DisclosureVer: req.DisclosureVersion,
		TipCents:      req.TipCents,
		CreatedAt:     time.Now().UTC(),
	}

	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			product, err := s.catalog.GetProduct(ctx, tx, it.ProductID)
			if err != nil {
				return fmt.Errorf("%w: %s", models.ErrProductNotFound, it.ProductID)
			}
			items = append(items, models.OrderItem{
				ProductID:  product.ID,
				Name:       product.Name,
				Quantity:   it.Quantity,
				PriceCents: product.PriceCents,
			})
		}
		order.Items = items
		order.ComputeTotals(s.taxRateBps, s.flatFeeCents)

		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("order service: create order: %w", err)
		}

		if _, err := s.events.Append(ctx, tx, order.ID, models.ActorCustomer, req.CustomerID, models.EventDisclosureAcknowledged, map[string]interface{}{
			"disclosure_version": req.DisclosureVersion,
			"locale":              "en-US",
		}); err != nil {
			return err
		}

		return s.transition(ctx, tx, order, models.StatusVerifyingAge, models.ActorSystem, "oms")
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.Inc()
		s.metrics.ActiveOrders.Inc()
	}

	return &CreateOrderResponse{OrderID: order.ID, Status: string(order.Status)}, nil
}

// VerifyAge runs checkout-time age verification under idempotency,
// matching apps/api/routers/orders.py's verify_age. Unlike the original,
// the order-status precondition is checked *inside* the idempotency
// compute closure rather than before calling it — checking it outside would
// make a legitimate same-key replay (issued after the order has already
// advanced past VERIFYING_AGE) fail its precondition instead of returning
// the cached response, violating spec.md §8's idempotence law. See
// DESIGN.md.
func (s *Service) VerifyAge(ctx context.Context, idempotencyKey, orderID string, req *VerifyAgeRequest) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, nil, fmt.Errorf("order service: validate verify age: %w", err)
	}

	var code int
	var resp []byte
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
			if err != nil {
				return 0, nil, err
			}
			if order.Status != models.StatusVerifyingAge {
				return 0, nil, models.ErrInvalidOrderStatus
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorSystem, "oms", models.EventAgeVerifyAttempted, map[string]interface{}{
				"method": "DOCUMENT_SCAN", "vendor": "fake", "session_ref": req.SessionRef,
			}); err != nil {
				return 0, nil, err
			}

			result, err := s.verifier.VerifyAgeCheckout(ctx, req.SessionRef, s.ageThresholdYrs)
			if err != nil {
				return 0, nil, fmt.Errorf("order service: verify age checkout: %w: %w", models.ErrVendorTransport, err)
			}

			if result.Status == verification.StatusPassed {
				if _, err := s.events.Append(ctx, tx, orderID, models.ActorSystem, "oms", models.EventAgeVerifyPassed, map[string]interface{}{
					"vendor": result.Vendor, "proof_ref": result.ProofRef, "age_threshold": s.ageThresholdYrs, "dob_year": result.DOBYear,
				}); err != nil {
					return 0, nil, err
				}
				if err := s.transition(ctx, tx, order, models.StatusPaymentAuth, models.ActorSystem, "oms"); err != nil {
					return 0, nil, err
				}
				return 200, map[string]interface{}{"status": "PASSED", "order_status": string(order.Status)}, nil
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorSystem, "oms", models.EventAgeVerifyFailed, map[string]interface{}{
				"vendor": result.Vendor, "proof_ref": result.ProofRef, "reason_code": string(result.ReasonCode),
			}); err != nil {
				return 0, nil, err
			}
			return 403, map[string]interface{}{"status": "FAILED", "reason_code": string(result.ReasonCode)}, nil
		}

		requestBody := map[string]interface{}{"session_ref": req.SessionRef}
		c, r, replayed, err := idempotency.GetOrSet(ctx, s.idem, tx, idempotencyKey, RouteVerifyAge, requestBody, compute)
		if err != nil {
			return err
		}
		if replayed && s.metrics != nil {
			s.metrics.IdempotencyReplaysTotal.Inc()
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

// AuthorizePayment floors and authorizes the order total under idempotency,
// then either halts at PENDING_MERCHANT or folds merchant auto-accept +
// dispatch-task creation into the same compute, depending on
// cfg.AutoAcceptMerchant — matching apps/api/routers/orders.py's
// authorize_payment exactly when AutoAcceptMerchant is true (the default).
func (s *Service) AuthorizePayment(ctx context.Context, idempotencyKey, orderID string, req *AuthorizePaymentRequest) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, nil, fmt.Errorf("order service: validate authorize payment: %w", err)
	}

	var code int
	var resp []byte
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
			if err != nil {
				return 0, nil, err
			}
			if order.Status != models.StatusPaymentAuth {
				return 0, nil, models.ErrInvalidOrderStatus
			}

			order.ApplyPaymentFloor(s.paymentFloorCents)
			auth, err := s.payments.Authorize(ctx, order.TotalCents)
			if err != nil {
				return 0, nil, fmt.Errorf("order service: authorize payment: %w: %w", models.ErrVendorTransport, err)
			}
			order.PaymentStatus = models.PaymentAuthorized
			if err := s.orders.Update(ctx, tx, order); err != nil {
				return 0, nil, fmt.Errorf("order service: persist payment status: %w", err)
			}
			if _, err := s.events.Append(ctx, tx, orderID, models.ActorSystem, "payments", models.EventPaymentAuthorized, map[string]interface{}{
				"processor": auth.Processor, "payment_intent_id": auth.PaymentIntentID, "amount_cents": auth.AmountCents,
			}); err != nil {
				return 0, nil, err
			}

			if err := s.transition(ctx, tx, order, models.StatusPendingMerchant, models.ActorSystem, "oms"); err != nil {
				return 0, nil, err
			}

			response := map[string]interface{}{
				"payment_status": string(order.PaymentStatus),
				"order_status":   string(order.Status),
			}

			if !s.cfg.AutoAcceptMerchant {
				return 200, response, nil
			}

			if err := s.transition(ctx, tx, order, models.StatusMerchantAccepted, models.ActorMerchant, "auto"); err != nil {
				return 0, nil, err
			}
			if err := s.transition(ctx, tx, order, models.StatusDispatching, models.ActorSystem, "oms"); err != nil {
				return 0, nil, err
			}

			task := &models.DeliveryTask{
				ID:        models.NewTaskID(),
				OrderID:   orderID,
				Status:    models.TaskUnassigned,
				Route:     models.RouteInfo{Type: models.RouteDelivery},
				CreatedAt: time.Now().UTC(),
			}
			if err := s.tasks.Create(ctx, tx, task); err != nil {
				return 0, nil, fmt.Errorf("order service: create delivery task: %w", err)
			}
			if _, err := s.events.Append(ctx, tx, orderID, models.ActorSystem, "dispatch", models.EventTaskCreated, map[string]interface{}{
				"task_id": task.ID,
			}); err != nil {
				return 0, nil, err
			}

			response["order_status"] = string(order.Status)
			response["task_id"] = task.ID
			return 200, response, nil
		}

		requestBody := map[string]interface{}{"payment_method": req.PaymentMethod}
		c, r, replayed, err := idempotency.GetOrSet(ctx, s.idem, tx, idempotencyKey, RouteAuthorizePayment, requestBody, compute)
		if err != nil {
			return err
		}
		if replayed && s.metrics != nil {
			s.metrics.IdempotencyReplaysTotal.Inc()
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

// DoorstepIDCheck runs the on-delivery identity check under idempotency,
// transitioning to DOORSTEP_VERIFY first if the order is still
// MERCHANT_ACCEPTED, matching apps/api/routers/orders.py's
// doorstep_id_check. On FAILED it refuses the order and opens a return
// task.
func (s *Service) DoorstepIDCheck(ctx context.Context, idempotencyKey, orderID string, req *DoorstepSubmitRequest) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, nil, fmt.Errorf("order service: validate doorstep submit: %w", err)
	}
	driverID := driverActor(req.DriverID)

	var code int
	var resp []byte
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
			if err != nil {
				return 0, nil, err
			}
			if order.Status != models.StatusMerchantAccepted && order.Status != models.StatusDoorstepVerify {
				return 0, nil, models.ErrInvalidOrderStatus
			}

			if order.Status != models.StatusDoorstepVerify {
				if err := s.transition(ctx, tx, order, models.StatusDoorstepVerify, models.ActorSystem, "oms"); err != nil {
					return 0, nil, err
				}
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventDoorstepCheckStarted, map[string]interface{}{
				"driver_id": driverID, "method": "DOCUMENT_SCAN",
			}); err != nil {
				return 0, nil, err
			}

			result, err := s.verifier.VerifyIDDoorstep(ctx, req.SessionRef, s.ageThresholdYrs)
			if err != nil {
				return 0, nil, fmt.Errorf("order service: verify id doorstep: %w: %w", models.ErrVendorTransport, err)
			}

			if result.Status == verification.StatusPassed {
				if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventDoorstepCheckPassed, map[string]interface{}{
					"vendor": result.Vendor, "proof_ref": result.ProofRef, "age_threshold": s.ageThresholdYrs,
					"dob_year": result.DOBYear, "id_type": result.IDType, "id_last4": result.IDLast4,
				}); err != nil {
					return 0, nil, err
				}
				return 200, map[string]interface{}{"status": "PASSED"}, nil
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventDoorstepCheckFailed, map[string]interface{}{
				"vendor": result.Vendor, "proof_ref": result.ProofRef, "reason_code": string(result.ReasonCode),
			}); err != nil {
				return 0, nil, err
			}

			if err := s.transition(ctx, tx, order, models.StatusRefusedReturning, models.ActorSystem, "oms"); err != nil {
				return 0, nil, err
			}
			if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventRefused, map[string]interface{}{
				"driver_id": driverID, "reason_code": string(result.ReasonCode), "notes": nil, "gps": nil,
			}); err != nil {
				return 0, nil, err
			}
			if err := s.openReturnTask(ctx, tx, order); err != nil {
				return 0, nil, err
			}

			return 403, map[string]interface{}{"status": "FAILED", "reason_code": string(result.ReasonCode)}, nil
		}

		requestBody := map[string]interface{}{"session_ref": req.SessionRef, "driver_id": req.DriverID}
		c, r, replayed, err := idempotency.GetOrSet(ctx, s.idem, tx, idempotencyKey, RouteDoorstepSubmit, requestBody, compute)
		if err != nil {
			return err
		}
		if replayed && s.metrics != nil {
			s.metrics.IdempotencyReplaysTotal.Inc()
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

// DeliverConfirm marks an order DELIVERED under idempotency, requiring a
// DOORSTEP_ID_CHECK_PASSED event already on record — matching
// apps/api/routers/orders.py's deliver_confirm and spec.md §8 invariant 5.
func (s *Service) DeliverConfirm(ctx context.Context, idempotencyKey, orderID string, req *DeliverConfirmRequest) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, nil, fmt.Errorf("order service: validate deliver confirm: %w", err)
	}
	driverID := driverActor(req.DriverID)

	var code int
	var resp []byte
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
			if err != nil {
				return 0, nil, err
			}
			if order.Status != models.StatusDoorstepVerify {
				return 0, nil, models.ErrInvalidOrderStatus
			}

			passed, err := s.events.LatestOfType(ctx, tx, orderID, models.EventDoorstepCheckPassed)
			if err != nil {
				return 0, nil, err
			}
			if passed == nil {
				return 403, map[string]interface{}{"status": "FAILED", "reason_code": "MISSING_DOORSTEP_PASS"}, nil
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventDelivered, map[string]interface{}{
				"driver_id": driverID, "attestation_ref": req.AttestationRef, "gps": req.GPS,
			}); err != nil {
				return 0, nil, err
			}
			if err := s.transition(ctx, tx, order, models.StatusDelivered, models.ActorSystem, "oms"); err != nil {
				return 0, nil, err
			}

			if s.metrics != nil {
				s.metrics.ActiveOrders.Dec()
			}
			return 200, map[string]interface{}{"order_status": string(order.Status)}, nil
		}

		requestBody := map[string]interface{}{"attestation_ref": req.AttestationRef, "driver_id": req.DriverID, "gps": req.GPS}
		c, r, replayed, err := idempotency.GetOrSet(ctx, s.idem, tx, idempotencyKey, RouteDeliverConfirm, requestBody, compute)
		if err != nil {
			return err
		}
		if replayed && s.metrics != nil {
			s.metrics.IdempotencyReplaysTotal.Inc()
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

// Refuse is the explicit driver-initiated refusal path, matching
// apps/api/routers/orders.py's refuse_order. Unlike the original, this is
// wrapped in the idempotency layer — spec.md §6's preamble states every
// mutating endpoint accepts an Idempotency-Key, and refuse is on the
// allow-list in spec.md §4.3, so it should replay like its siblings rather
// than double-creating a return task on a client retry. See DESIGN.md.
func (s *Service) Refuse(ctx context.Context, idempotencyKey, orderID string, req *RefuseRequest) (int, []byte, error) {
	if idempotencyKey == "" {
		return 0, nil, models.ErrMissingIdempotencyKey
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, nil, fmt.Errorf("order service: validate refuse: %w", err)
	}
	driverID := driverActor(req.DriverID)

	var code int
	var resp []byte
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		compute := func() (int, interface{}, error) {
			order, err := s.orders.GetByIDForUpdate(ctx, tx, orderID)
			if err != nil {
				return 0, nil, err
			}
			if order.Status == models.StatusDelivered || order.Status == models.StatusCanceled {
				return 0, nil, models.ErrInvalidOrderStatus
			}

			if order.Status != models.StatusRefusedReturning {
				if err := s.forceRefusedReturning(ctx, tx, order, models.ActorSystem, "oms"); err != nil {
					return 0, nil, err
				}
			}

			if _, err := s.events.Append(ctx, tx, orderID, models.ActorDriver, driverID, models.EventRefused, map[string]interface{}{
				"driver_id": driverID, "reason_code": req.ReasonCode, "notes": req.Notes, "gps": req.GPS,
			}); err != nil {
				return 0, nil, err
			}

			taskID, err := s.openReturnTaskID(ctx, tx, order)
			if err != nil {
				return 0, nil, err
			}

			return 200, map[string]interface{}{"order_status": string(order.Status), "return_task_id": taskID}, nil
		}

		requestBody := map[string]interface{}{"reason_code": req.ReasonCode, "notes": req.Notes, "driver_id": req.DriverID, "gps": req.GPS}
		c, r, replayed, err := idempotency.GetOrSet(ctx, s.idem, tx, idempotencyKey, RouteRefuse, requestBody, compute)
		if err != nil {
			return err
		}
		if replayed && s.metrics != nil {
			s.metrics.IdempotencyReplaysTotal.Inc()
		}
		code, resp = c, r
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return code, resp, nil
}

func (s *Service) openReturnTask(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	_, err := s.openReturnTaskID(ctx, tx, order)
	return err
}

// openReturnTaskID creates a RETURN DeliveryTask back to the originating
// store and emits RETURN_INITIATED, matching both doorstep_id_check's and
// refuse_order's return-task creation in apps/api/routers/orders.py.
func (s *Service) openReturnTaskID(ctx context.Context, tx pgx.Tx, order *models.Order) (string, error) {
	task := &models.DeliveryTask{
		ID:        models.NewTaskID(),
		OrderID:   order.ID,
		Status:    models.TaskUnassigned,
		Route:     models.RouteInfo{Type: models.RouteReturn, ToStoreID: order.StoreID},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tasks.Create(ctx, tx, task); err != nil {
		return "", fmt.Errorf("order service: create return task: %w", err)
	}
	_, err := s.events.Append(ctx, tx, order.ID, models.ActorSystem, "oms", models.EventReturnInitiated, map[string]interface{}{
		"return_task_id": task.ID, "to_store_id": order.StoreID,
	})
	if err != nil {
		return "", err
	}
	return task.ID, nil
}

// GetOrder returns an order's current state for a read-only GET.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order *models.Order
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		o, err := s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

// GetDossier returns the ordered, hash-chained event chain for an order,
// matching spec.md §4.2's get_dossier.
func (s *Service) GetDossier(ctx context.Context, orderID string) ([]*models.OrderEvent, error) {
	var events []*models.OrderEvent
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.orders.GetByID(ctx, tx, orderID); err != nil {
			return err
		}
		e, err := s.events.List(ctx, tx, orderID)
		if err != nil {
			return err
		}
		events = e
		return nil
	})
	return events, err
}

// TrackingView is the customer-facing read model joining order, store,
// address and active task/driver, matching
// apps/api/routers/orders.py's get_order_tracking — a feature
// SPEC_FULL.md §6 supplements from original_source since it is not excluded
// by any Non-goal and spec.md's REST table is otherwise silent on it.
type TrackingView struct {
	OrderID     string   `json:"order_id"`
	Status      string   `json:"status"`
	Store       *Place   `json:"store,omitempty"`
	Delivery    *Place   `json:"delivery,omitempty"`
	Driver      *Courier `json:"driver,omitempty"`
	TaskStatus  string   `json:"task_status,omitempty"`
	TotalCents  int64    `json:"total_cents"`
}

// Place is a store or address location surfaced on the tracking view.
type Place struct {
	ID  string  `json:"id,omitempty"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Courier is the driver snapshot surfaced on the tracking view.
type Courier struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var activeTaskStatuses = map[models.TaskStatus]bool{
	models.TaskOffered:    true,
	models.TaskAccepted:   true,
	models.TaskInProgress: true,
	models.TaskCompleted:  true,
}

// GetTracking builds the supplemented tracking read view.
func (s *Service) GetTracking(ctx context.Context, orderID string) (*TrackingView, error) {
	var view *TrackingView
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		order, err := s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		v := &TrackingView{OrderID: order.ID, Status: string(order.Status), TotalCents: order.TotalCents}

		if store, err := s.catalog.GetStore(ctx, tx, order.StoreID); err == nil {
			v.Store = &Place{ID: store.ID, Lat: store.Lat, Lng: store.Lng}
		}
		if addr, err := s.catalog.GetAddress(ctx, tx, order.AddressID); err == nil {
			v.Delivery = &Place{ID: addr.ID, Lat: addr.Lat, Lng: addr.Lng}
		}

		task, err := s.tasks.GetActiveByOrderID(ctx, tx, orderID)
		if err == nil && task != nil && activeTaskStatuses[task.Status] {
			v.TaskStatus = string(task.Status)
			if task.DriverID != "" {
				if driver, err := s.drivers.GetByID(ctx, tx, task.DriverID); err == nil {
					v.Driver = &Courier{ID: driver.ID, Lat: driver.Lat, Lng: driver.Lng}
				}
			}
		}

		view = v
		return nil
	})
	return view, err
}
