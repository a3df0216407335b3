package models

import "time"

// OfferOutcome records how a dispatched offer was resolved.
type OfferOutcome string

const (
	OutcomeAccepted OfferOutcome = "ACCEPTED"
	OutcomeRejected OfferOutcome = "REJECTED"
	OutcomeTimeout  OfferOutcome = "TIMEOUT"
	OutcomeCanceled OfferOutcome = "CANCELED"
)

// OfferLog is an append-only record of one offer extended to one driver for
// one task, kept for acceptance-rate analytics and TTL-expiry bookkeeping.
type OfferLog struct {
	ID                string
	TaskID            string
	OrderID           string
	DriverID          string
	CreatedAt         time.Time
	Features          map[string]interface{}
	Outcome           *OfferOutcome
	OutcomeMS         *int64
	ResponseLatencyMS *int64
}
