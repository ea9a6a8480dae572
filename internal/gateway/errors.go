package gateway

import "fmt"

// VendorError is returned by a Gateway implementation when the underlying
// LLM vendor or external endpoint responds with an error, classified by
// HTTP-style status the way Toolkit/Commons/errors classifies provider
// responses.
type VendorError struct {
	StatusCode int
	Message    string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the vendor error is transient: rate-limited,
// overloaded, or a server-side failure.
func (e *VendorError) Retryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 529:
		return true
	default:
		return false
	}
}

// Overloaded reports whether the vendor signaled capacity exhaustion,
// the trigger for falling through to the next model in the fallback chain.
func (e *VendorError) Overloaded() bool {
	return e.StatusCode == 429 || e.StatusCode == 529
}

// TimeoutError indicates a participant failed to respond within its turn
// deadline.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "participant timed out" }

// FormatError indicates a participant's response could not be parsed or was
// missing required fields.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return fmt.Sprintf("malformed participant response: %s", e.Reason) }

// IsRetryable reports whether err represents a transient failure worth
// retrying against the same or a fallback model.
func IsRetryable(err error) bool {
	if vendorErr, ok := err.(*VendorError); ok {
		return vendorErr.Retryable()
	}
	return false
}
