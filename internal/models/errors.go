package models

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrDriverNotFound       = errors.New("driver not found")
	ErrOptimisticLock       = errors.New("optimistic lock failed: order was modified concurrently")
	ErrIdempotencyMismatch  = errors.New("idempotency key reused with a different request body")
	ErrInvalidOrderStatus   = errors.New("order is not in a status that allows this operation")
	ErrInvalidTaskStatus    = errors.New("task is not in a status that allows this operation")
	ErrTaskNotOfferedToYou  = errors.New("task is not offered to this driver")
	ErrTaskNotAssignedToYou = errors.New("task is not assigned to this driver")
	ErrAcceptLocked         = errors.New("task accept is locked; retry")
	ErrMissingIdempotencyKey = errors.New("Idempotency-Key header is required")
	ErrProductNotFound      = errors.New("one or more products were not found")
	ErrMissingDoorstepPass  = errors.New("no passed doorstep identity check on record for this order")
	ErrUnknownVendor        = errors.New("unknown vendor configured")
	ErrVendorTransport      = errors.New("vendor call failed at the transport layer")
)
