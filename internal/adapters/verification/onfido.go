package verification

import (
	"context"
	"time"
)

// onfidoVendor is the real-vendor tagged variant, selected by IDV_VENDOR=onfido,
// mirroring packages/verification/vendors_onfido.py. It makes no network
// call to the Onfido checks API: both checkout and doorstep checks always
// return a FAILED result with reason VENDOR_ERROR and a nil error.
type onfidoVendor struct {
	apiKey string
}

func newOnfidoVendor(apiKey string) *onfidoVendor {
	return &onfidoVendor{apiKey: apiKey}
}

func (v *onfidoVendor) VerifyCheckout(ctx context.Context, sessionRef string, ageThreshold int) (Result, error) {
	return v.callCheck(ctx, sessionRef)
}

func (v *onfidoVendor) VerifyDoorstep(ctx context.Context, sessionRef string, ageThreshold int) (Result, error) {
	return v.callCheck(ctx, sessionRef)
}

func (v *onfidoVendor) callCheck(ctx context.Context, sessionRef string) (Result, error) {
	// Without a live Onfido credential and checks endpoint to validate
	// against, this adapter cannot safely synthesize a believable response
	// schema. It fails closed rather than fabricating a PASSED result.
	_ = time.Now()
	return Result{Status: StatusFailed, ReasonCode: ReasonVendorError, Vendor: "onfido"}, nil
}
