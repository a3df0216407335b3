// Package payment implements the payment authorize/capture/refund adapter,
// grounded on packages/payments/{processor,processor_fake}.py.
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AuthorizationResult mirrors processor_fake.py's authorize() return shape.
type AuthorizationResult struct {
	Processor       string
	PaymentIntentID string
	AmountCents     int64
}

// Adapter is the tagged-variant payment processor interface.
type Adapter interface {
	Authorize(ctx context.Context, amountCents int64) (AuthorizationResult, error)
	Capture(ctx context.Context, paymentIntentID string, amountCents int64) error
	Refund(ctx context.Context, paymentIntentID string, amountCents int64) error
}

type fakeProcessor struct{}

func (fakeProcessor) Authorize(ctx context.Context, amountCents int64) (AuthorizationResult, error) {
	return AuthorizationResult{
		Processor:       "fake",
		PaymentIntentID: "pi_" + uuid.New().String(),
		AmountCents:     amountCents,
	}, nil
}

func (fakeProcessor) Capture(ctx context.Context, paymentIntentID string, amountCents int64) error {
	return nil
}

func (fakeProcessor) Refund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	return nil
}

// stripeProcessor is the real-vendor tagged variant. As with the onfido
// adapter, there is no live credential to validate a request/response
// contract against in this workspace, so it fails closed with a descriptive
// error instead of fabricating a charge.
type stripeProcessor struct {
	apiKey string
}

func (s *stripeProcessor) Authorize(ctx context.Context, amountCents int64) (AuthorizationResult, error) {
	return AuthorizationResult{}, fmt.Errorf("payment: stripe adapter not connected to a live account")
}

func (s *stripeProcessor) Capture(ctx context.Context, paymentIntentID string, amountCents int64) error {
	return fmt.Errorf("payment: stripe adapter not connected to a live account")
}

func (s *stripeProcessor) Refund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	return fmt.Errorf("payment: stripe adapter not connected to a live account")
}

// New selects the processor named by processor ("fake" or "stripe").
func New(processor, stripeAPIKey string) (Adapter, error) {
	switch processor {
	case "", "fake":
		return fakeProcessor{}, nil
	case "stripe":
		return &stripeProcessor{apiKey: stripeAPIKey}, nil
	default:
		return nil, fmt.Errorf("payment: unknown processor %q", processor)
	}
}
