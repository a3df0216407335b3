// Package orderservice implements the OrderService: checkout, age
// verification, payment authorization, doorstep identity verification and
// delivery confirmation, wired through the state machine, the dossier and
// the idempotency layer. It is grounded on
// apps/api/routers/orders.py and the teacher's internal/service/order_service.go
// shape (validator-backed request DTOs, a Database interface + explicit tx
// lifecycle, metrics/logging wrapped around every mutation).
package orderservice

// CreateOrderItem is one line item on a checkout request.
type CreateOrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderRequest is the validated body of POST /orders.
type CreateOrderRequest struct {
	CustomerID        string            `json:"customer_id" validate:"required"`
	StoreID           string            `json:"store_id" validate:"required"`
	AddressID         string            `json:"address_id" validate:"required"`
	Items             []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	TipCents          int64             `json:"tip_cents" validate:"gte=0"`
	DisclosureVersion string            `json:"disclosure_version" validate:"required"`
}

// CreateOrderResponse mirrors create_order's return shape.
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// VerifyAgeRequest is the validated body of POST /orders/{id}/verify_age.
type VerifyAgeRequest struct {
	SessionRef string `json:"session_ref" validate:"required"`
}

// AuthorizePaymentRequest is the validated body of
// POST /orders/{id}/payment/authorize.
type AuthorizePaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// DoorstepSubmitRequest is the validated body of
// POST /orders/{id}/doorstep_id_check/submit.
type DoorstepSubmitRequest struct {
	SessionRef string `json:"session_ref" validate:"required"`
	DriverID   string `json:"driver_id"`
}

// GPS is a point-in-time location attached to a driver-reported event.
type GPS struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliverConfirmRequest is the validated body of
// POST /orders/{id}/deliver/confirm.
type DeliverConfirmRequest struct {
	AttestationRef string `json:"attestation_ref" validate:"required"`
	DriverID       string `json:"driver_id"`
	GPS            *GPS   `json:"gps"`
}

// RefuseRequest is the validated body of POST /orders/{id}/refuse.
type RefuseRequest struct {
	ReasonCode string `json:"reason_code" validate:"required"`
	Notes      string `json:"notes"`
	DriverID   string `json:"driver_id"`
	GPS        *GPS   `json:"gps"`
}

// defaultDriverActor is used when a driver-initiated event has no
// authenticated driver context — this service has no auth layer (out of
// scope per spec.md §1), matching original_source's hardcoded "drv_demo"
// placeholder for the same gap.
const defaultDriverActor = "drv_demo"

func driverActor(id string) string {
	if id == "" {
		return defaultDriverActor
	}
	return id
}

// Route names used as the `route` half of the idempotency key, matching
// packages/common/idempotency.py's "METHOD:/path" convention literally so a
// stored record is self-describing.
const (
	RouteVerifyAge        = "POST:/orders/{order_id}/verify_age"
	RouteAuthorizePayment = "POST:/orders/{order_id}/payment/authorize"
	RouteDoorstepSubmit   = "POST:/orders/{order_id}/doorstep_id_check/submit"
	RouteDeliverConfirm   = "POST:/orders/{order_id}/deliver/confirm"
	RouteRefuse           = "POST:/orders/{order_id}/refuse"
)
