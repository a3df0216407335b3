package verification

import "strings"

// fakeVendor reproduces packages/verification/vendors_fake.py's exact
// string-matching rules — the checkout and doorstep scenario tests in
// spec.md §8 depend on these literal substrings ("pass", "underage",
// "noid", "mismatch") appearing in session_ref.
type fakeVendor struct{}

func (fakeVendor) VerifyCheckout(sessionRef string, ageThreshold int) Result {
	ref := strings.ToLower(sessionRef)
	switch {
	case strings.Contains(ref, "pass"):
		return Result{Status: StatusPassed, ProofRef: "fake-proof-" + sessionRef, DOBYear: 1999, Vendor: "fake"}
	case strings.Contains(ref, "underage"):
		return Result{Status: StatusFailed, ReasonCode: ReasonUnderage, Vendor: "fake"}
	default:
		return Result{Status: StatusFailed, ReasonCode: ReasonVendorError, Vendor: "fake"}
	}
}

func (fakeVendor) VerifyDoorstep(sessionRef string, ageThreshold int) Result {
	ref := strings.ToLower(sessionRef)
	switch {
	case strings.Contains(ref, "pass"):
		return Result{
			Status: StatusPassed, ProofRef: "fake-proof-" + sessionRef,
			DOBYear: 1999, IDType: "DL", IDLast4: "1234", Vendor: "fake",
		}
	case strings.Contains(ref, "noid"):
		return Result{Status: StatusFailed, ReasonCode: ReasonNoID, Vendor: "fake"}
	case strings.Contains(ref, "mismatch"):
		return Result{Status: StatusFailed, ReasonCode: ReasonMismatch, Vendor: "fake"}
	case strings.Contains(ref, "underage"):
		return Result{Status: StatusFailed, ReasonCode: ReasonUnderage, Vendor: "fake"}
	default:
		return Result{Status: StatusFailed, ReasonCode: ReasonVendorError, Vendor: "fake"}
	}
}
