package gateway

import "testing"

func TestVendorErrorRetryable(t *testing.T) {
	cases := map[int]bool{
		429: true,
		500: true,
		502: true,
		503: true,
		529: true,
		400: false,
		404: false,
		200: false,
	}
	for status, want := range cases {
		err := &VendorError{StatusCode: status}
		if got := err.Retryable(); got != want {
			t.Errorf("status %d: Retryable() = %v, want %v", status, got, want)
		}
	}
}

func TestVendorErrorOverloaded(t *testing.T) {
	if !(&VendorError{StatusCode: 429}).Overloaded() {
		t.Error("expected 429 to be overloaded")
	}
	if !(&VendorError{StatusCode: 529}).Overloaded() {
		t.Error("expected 529 to be overloaded")
	}
	if (&VendorError{StatusCode: 500}).Overloaded() {
		t.Error("expected 500 to not be classified as overloaded")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&VendorError{StatusCode: 503}) {
		t.Error("expected 503 vendor error to be retryable")
	}
	if IsRetryable(&FormatError{Reason: "bad json"}) {
		t.Error("expected non-vendor errors to not be retryable")
	}
	if IsRetryable(&TimeoutError{}) {
		t.Error("expected timeout errors to not be retryable via IsRetryable")
	}
}

func TestFormatErrorMessage(t *testing.T) {
	err := &FormatError{Reason: "missing required fields"}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
