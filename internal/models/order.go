package models

import (
	"time"

	"github.com/doInfinitely/deliverycore/internal/statemachine"
	"github.com/shopspring/decimal"
)

// OrderStatus re-exports the state machine's status type so callers outside
// internal/statemachine don't need a second import for the same concept.
type OrderStatus = statemachine.OrderStatus

const (
	StatusCreated          = statemachine.StatusCreated
	StatusVerifyingAge     = statemachine.StatusVerifyingAge
	StatusPaymentAuth      = statemachine.StatusPaymentAuth
	StatusPendingMerchant  = statemachine.StatusPendingMerchant
	StatusMerchantAccepted = statemachine.StatusMerchantAccepted
	StatusDispatching      = statemachine.StatusDispatching
	StatusPickup           = statemachine.StatusPickup
	StatusEnRoute          = statemachine.StatusEnRoute
	StatusDoorstepVerify   = statemachine.StatusDoorstepVerify
	StatusDelivered        = statemachine.StatusDelivered
	StatusRefusedReturning = statemachine.StatusRefusedReturning
	StatusCanceled         = statemachine.StatusCanceled
)

// PaymentStatus tracks the payment side-band, separate from OrderStatus.
type PaymentStatus string

const (
	PaymentUnpaid       PaymentStatus = "UNPAID"
	PaymentAuthorized   PaymentStatus = "AUTHORIZED"
	PaymentCaptured     PaymentStatus = "CAPTURED"
	PaymentRefunded     PaymentStatus = "REFUNDED"
)

// ActorType identifies who performed a dossier-logged action.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorDriver   ActorType = "driver"
	ActorMerchant ActorType = "merchant"
	ActorSystem   ActorType = "system"
	ActorSupport  ActorType = "support"
)

// OrderItem is a single line item captured at checkout time (price is
// snapshotted — it does not follow later catalog price changes).
type OrderItem struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
}

// Order is the transactional aggregate root of the order lifecycle engine.
// Every money field is an int64 minor-unit (cents) amount; decimal.Decimal is
// used only transiently inside pricing computations (see ComputeTotals),
// never as a struct field, so there is exactly one canonical representation
// to serialize, hash and compare.
type Order struct {
	ID             string
	CustomerID     string
	StoreID        string
	AddressID      string
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	DisclosureVer  string

	Items          []OrderItem
	SubtotalCents  int64
	TaxCents       int64
	FeesCents      int64
	TipCents       int64
	TotalCents     int64

	Version   int64
	CreatedAt time.Time
}

// ComputeTotals fills Subtotal/Tax/Fees/Total from Items, Tip and the given
// tax rate (in basis points) and flat fee, matching
// apps/api/routers/orders.py's create_order pricing exactly: tax uses
// decimal.Decimal for the percentage multiply so rounding is deterministic
// across languages/replays, then truncates back to an int64 cents amount
// (round-half-away-from-zero, matching Python's round()).
func (o *Order) ComputeTotals(taxRateBps int, flatFeeCents int64) {
	var subtotal int64
	for _, it := range o.Items {
		subtotal += it.PriceCents * int64(it.Quantity)
	}
	o.SubtotalCents = subtotal

	rate := decimal.NewFromInt(int64(taxRateBps)).Div(decimal.NewFromInt(10000))
	tax := decimal.NewFromInt(subtotal).Mul(rate).Round(0)
	o.TaxCents = tax.IntPart()

	o.FeesCents = flatFeeCents
	o.TotalCents = o.SubtotalCents + o.TaxCents + o.FeesCents + o.TipCents
}

// ApplyPaymentFloor raises TotalCents to floorCents if it would otherwise
// authorize for less — authorize_payment in the original source does this
// defensively so a near-empty cart still clears a payment processor's
// minimum transaction size.
func (o *Order) ApplyPaymentFloor(floorCents int64) {
	if o.TotalCents < floorCents {
		o.TotalCents = floorCents
	}
}
