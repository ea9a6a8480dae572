package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agoracore/internal/gateway"
	"agoracore/internal/models"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := truncate("this is a long string", 4); got != "this" {
		t.Fatalf("expected truncated string, got %q", got)
	}
}

func passingOutcome(tokenCount int, stance string) turnOutcome {
	return turnOutcome{result: &gateway.TurnResult{
		Stance:     stance,
		Claim:      "claim",
		Argument:   "argument",
		TokenCount: tokenCount,
		Citations:  []models.Citation{{URL: "https://example.com", Title: "t", Quote: "q"}},
	}}
}

func TestEvaluateTurnsAllPass(t *testing.T) {
	outcomes := []turnOutcome{
		passingOutcome(100, string(models.SideCon)),
		passingOutcome(200, string(models.SideCon)),
	}
	checks := evaluateTurns(outcomes)
	if len(checks) != 5 {
		t.Fatalf("expected 5 named checks, got %d", len(checks))
	}
	for _, c := range checks {
		if !c.Passed {
			t.Errorf("expected check %q to pass, detail: %q", c.Check, c.Detail)
		}
	}
}

func TestEvaluateTurnsTimeoutFails(t *testing.T) {
	outcomes := []turnOutcome{
		passingOutcome(100, string(models.SideCon)),
		{timeout: true},
	}
	checks := evaluateTurns(outcomes)
	byName := checksByName(checks)
	if byName["timeout"].Passed {
		t.Fatal("expected timeout check to fail when one outcome timed out")
	}
	if byName["timeout"].Detail != "One or more turns timed out" {
		t.Fatalf("unexpected detail: %q", byName["timeout"].Detail)
	}
}

func TestEvaluateTurnsFormatErrorFailsJSON(t *testing.T) {
	outcomes := []turnOutcome{
		passingOutcome(100, string(models.SideCon)),
		{errMsg: "malformed response"},
	}
	checks := evaluateTurns(outcomes)
	byName := checksByName(checks)
	if byName["json_format"].Passed {
		t.Fatal("expected json_format check to fail when one outcome errored")
	}
}

func TestEvaluateTurnsTokenLimitExceeded(t *testing.T) {
	outcomes := []turnOutcome{passingOutcome(sandboxTokenLimit+1, string(models.SideCon))}
	checks := evaluateTurns(outcomes)
	byName := checksByName(checks)
	if byName["token_limit"].Passed {
		t.Fatal("expected token_limit check to fail when a turn exceeds the cap")
	}
}

func TestEvaluateTurnsMissingCitation(t *testing.T) {
	outcome := turnOutcome{result: &gateway.TurnResult{Stance: string(models.SideCon), TokenCount: 10}}
	checks := evaluateTurns([]turnOutcome{outcome})
	byName := checksByName(checks)
	if byName["citation"].Passed {
		t.Fatal("expected citation check to fail when a turn has no citations")
	}
}

func TestEvaluateTurnsStanceInconsistency(t *testing.T) {
	outcomes := []turnOutcome{
		passingOutcome(100, string(models.SideCon)),
		passingOutcome(100, string(models.SidePro)),
	}
	checks := evaluateTurns(outcomes)
	byName := checksByName(checks)
	if byName["stance_consistency"].Passed {
		t.Fatal("expected stance_consistency check to fail on a stance switch")
	}
}

func TestEvaluateTurnsNoOutcomesFailsTurnDependentChecks(t *testing.T) {
	// With zero outcomes, the checks that need at least one returned turn
	// (json_format, citation, stance_consistency) fail, while timeout and
	// token_limit have no offending turn and pass.
	want := map[string]bool{
		"json_format":        false,
		"timeout":            true,
		"token_limit":        true,
		"citation":           false,
		"stance_consistency": false,
	}
	checks := evaluateTurns(nil)
	for _, c := range checks {
		if c.Passed != want[c.Check] {
			t.Errorf("check %q with zero outcomes: Passed = %v, want %v", c.Check, c.Passed, want[c.Check])
		}
	}
}

func checksByName(checks []models.SandboxCheck) map[string]models.SandboxCheck {
	out := make(map[string]models.SandboxCheck, len(checks))
	for _, c := range checks {
		out[c.Check] = c
	}
	return out
}

func TestCheckConnectivityReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected GET /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := &Validator{HTTPClient: &http.Client{Timeout: time.Second}}
	ok, detail := v.checkConnectivity(context.Background(), server.URL)
	if !ok {
		t.Fatalf("expected reachable endpoint to pass, detail: %q", detail)
	}
	if detail != "Endpoint reachable" {
		t.Fatalf("unexpected detail: %q", detail)
	}
}

func TestCheckConnectivityNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	v := &Validator{HTTPClient: &http.Client{Timeout: time.Second}}
	ok, detail := v.checkConnectivity(context.Background(), server.URL)
	if ok {
		t.Fatal("expected non-200 status to fail connectivity check")
	}
	if detail != "Health check returned status 503" {
		t.Fatalf("unexpected detail: %q", detail)
	}
}

func TestCheckConnectivityUnreachable(t *testing.T) {
	v := &Validator{HTTPClient: &http.Client{Timeout: time.Second}}
	ok, detail := v.checkConnectivity(context.Background(), "http://127.0.0.1:1")
	if ok {
		t.Fatal("expected connection failure for a closed port")
	}
	if detail == "" {
		t.Fatal("expected a non-empty failure detail")
	}
}
