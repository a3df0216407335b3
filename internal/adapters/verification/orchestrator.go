package verification

import (
	"context"
	"fmt"
)

// Adapter is the tagged-variant interface every IDV vendor implements.
type Adapter interface {
	VerifyAgeCheckout(ctx context.Context, sessionRef string, ageThreshold int) (Result, error)
	VerifyIDDoorstep(ctx context.Context, sessionRef string, ageThreshold int) (Result, error)
}

// orchestrator dispatches to whichever vendor the deployment is configured
// for, matching packages/verification/orchestrator.py's VENDOR env switch.
type orchestrator struct {
	fake   fakeVendor
	onfido *onfidoVendor
	vendor string
}

// New selects the vendor adapter named by vendor ("fake" or "onfido").
func New(vendor, onfidoAPIKey string) (Adapter, error) {
	switch vendor {
	case "", "fake":
		return &orchestrator{vendor: "fake"}, nil
	case "onfido":
		return &orchestrator{vendor: "onfido", onfido: newOnfidoVendor(onfidoAPIKey)}, nil
	default:
		return nil, fmt.Errorf("verification: unknown vendor %q", vendor)
	}
}

func (o *orchestrator) VerifyAgeCheckout(ctx context.Context, sessionRef string, ageThreshold int) (Result, error) {
	if o.vendor == "onfido" {
		return o.onfido.VerifyCheckout(ctx, sessionRef, ageThreshold)
	}
	return o.fake.VerifyCheckout(sessionRef, ageThreshold), nil
}

func (o *orchestrator) VerifyIDDoorstep(ctx context.Context, sessionRef string, ageThreshold int) (Result, error) {
	if o.vendor == "onfido" {
		return o.onfido.VerifyDoorstep(ctx, sessionRef, ageThreshold)
	}
	return o.fake.VerifyDoorstep(sessionRef, ageThreshold), nil
}
