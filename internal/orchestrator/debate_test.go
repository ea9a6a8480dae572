package orchestrator

import (
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeRebuttalTargetValidUUID(t *testing.T) {
	id := uuid.New()
	got := sanitizeRebuttalTarget(id.String())
	if got == nil {
		t.Fatal("expected a valid UUID string to parse")
	}
	if *got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestSanitizeRebuttalTargetEmpty(t *testing.T) {
	if got := sanitizeRebuttalTarget(""); got != nil {
		t.Fatalf("expected nil for empty target, got %v", got)
	}
}

func TestSanitizeRebuttalTargetTooShort(t *testing.T) {
	if got := sanitizeRebuttalTarget("not-a-uuid"); got != nil {
		t.Fatalf("expected nil for too-short input, got %v", got)
	}
}

func TestSanitizeRebuttalTargetTooLong(t *testing.T) {
	long := uuid.New().String() + "extra-garbage-appended-here"
	if got := sanitizeRebuttalTarget(long); got != nil {
		t.Fatalf("expected nil for too-long input, got %v", got)
	}
}

func TestSanitizeRebuttalTargetMalformedWithinLengthRange(t *testing.T) {
	// 36 characters but not valid hex/hyphen UUID content.
	garbage := "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"
	if got := sanitizeRebuttalTarget(garbage); got != nil {
		t.Fatalf("expected nil for malformed UUID-shaped input, got %v", got)
	}
}
