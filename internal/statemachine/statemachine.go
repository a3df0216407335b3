// Package statemachine implements the order lifecycle engine's transition
// table. It is a pure function over the allowed-transition map; it holds no
// state of its own and makes no I/O calls.
package statemachine

import "fmt"

// OrderStatus enumerates every state an order can occupy.
type OrderStatus string

const (
	StatusCreated           OrderStatus = "CREATED"
	StatusVerifyingAge      OrderStatus = "VERIFYING_AGE"
	StatusPaymentAuth       OrderStatus = "PAYMENT_AUTH"
	StatusPendingMerchant   OrderStatus = "PENDING_MERCHANT"
	StatusMerchantAccepted  OrderStatus = "MERCHANT_ACCEPTED"
	StatusDispatching       OrderStatus = "DISPATCHING"
	StatusPickup            OrderStatus = "PICKUP"
	StatusEnRoute           OrderStatus = "EN_ROUTE"
	StatusDoorstepVerify    OrderStatus = "DOORSTEP_VERIFY"
	StatusDelivered         OrderStatus = "DELIVERED"
	StatusRefusedReturning  OrderStatus = "REFUSED_RETURNING"
	StatusCanceled          OrderStatus = "CANCELED"
)

// InvalidTransitionError reports an attempted transition the table forbids.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order state transition: %s -> %s", e.From, e.To)
}

// allowed mirrors packages/core/state_machine.py's ALLOWED table exactly,
// including the explicit self-loops on terminal states: a repeated terminal
// transition is a no-op success, not an error. Refusal (-> REFUSED_RETURNING)
// is reachable only from DOORSTEP_VERIFY here, matching spec.md §4.1's
// literal table; spec.md §4.4's wider "allowed unless already DELIVERED or
// CANCELED" refuse contract is the caller's responsibility (orderservice's
// Refuse uses a dedicated bypass, not this table, to reach
// REFUSED_RETURNING from the other non-terminal states).
var allowed = map[OrderStatus]map[OrderStatus]bool{
	StatusCreated: set(StatusVerifyingAge, StatusCanceled),
	StatusVerifyingAge: set(
		StatusPaymentAuth, StatusCanceled,
	),
	StatusPaymentAuth: set(
		StatusPendingMerchant, StatusCanceled,
	),
	StatusPendingMerchant: set(
		StatusMerchantAccepted, StatusCanceled,
	),
	StatusMerchantAccepted: set(
		StatusDispatching, StatusCanceled,
	),
	StatusDispatching: set(
		StatusPickup, StatusCanceled,
	),
	StatusPickup: set(
		StatusEnRoute, StatusCanceled,
	),
	StatusEnRoute: set(
		StatusDoorstepVerify, StatusCanceled,
	),
	StatusDoorstepVerify: set(
		StatusDelivered, StatusRefusedReturning,
	),
	StatusDelivered:        set(StatusDelivered),
	StatusRefusedReturning: set(StatusRefusedReturning),
	StatusCanceled:         set(StatusCanceled),
}

func set(statuses ...OrderStatus) map[OrderStatus]bool {
	m := make(map[OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// CanTransition reports whether moving from `from` to `to` is allowed.
func CanTransition(from, to OrderStatus) bool {
	next, ok := allowed[from]
	if !ok {
		return false
	}
	return next[to]
}

// Transition returns `to` if the move is allowed, otherwise an
// *InvalidTransitionError. It never mutates global state — callers persist
// the returned status themselves, inside whatever transaction also appends
// the dossier event for the move.
func Transition(from, to OrderStatus) (OrderStatus, error) {
	if !CanTransition(from, to) {
		return "", &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// IsTerminal reports whether a status has no transitions out of it other
// than to itself.
func IsTerminal(s OrderStatus) bool {
	return s == StatusDelivered || s == StatusRefusedReturning || s == StatusCanceled
}
