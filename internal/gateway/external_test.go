package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExternalGenerateTurnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/turn" {
			t.Errorf("expected POST to /turn, got %s", r.URL.Path)
		}
		var req externalTurnRequestPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Topic != "AI regulation" {
			t.Errorf("unexpected topic in request: %q", req.Topic)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(externalTurnResponsePayload{
			Stance:    "pro",
			Claim:     "Regulation helps.",
			Argument:  "Because oversight reduces harm.",
			Citations: []citationJSON{{URL: "https://example.com", Title: "Example", Quote: "quote"}},
		})
	}))
	defer server.Close()

	ext := NewExternal(server.URL)
	result, err := ext.GenerateTurn(context.Background(), TurnRequest{Topic: "AI regulation", Side: "pro", TurnNumber: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stance != "pro" || result.Claim != "Regulation helps." {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(result.Citations))
	}
}

func TestExternalGenerateTurnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	ext := NewExternal(server.URL)
	_, err := ext.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	vendorErr, ok := err.(*VendorError)
	if !ok {
		t.Fatalf("expected *VendorError, got %T", err)
	}
	if vendorErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", vendorErr.StatusCode)
	}
}

func TestExternalGenerateTurnMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(externalTurnResponsePayload{Stance: "pro"})
	}))
	defer server.Close()

	ext := NewExternal(server.URL)
	_, err := ext.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if _, ok := err.(*FormatError); !ok {
		t.Fatalf("expected *FormatError for missing fields, got %T (%v)", err, err)
	}
}

func TestExternalGenerateTurnInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	ext := NewExternal(server.URL)
	_, err := ext.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if _, ok := err.(*FormatError); !ok {
		t.Fatalf("expected *FormatError for invalid JSON, got %T (%v)", err, err)
	}
}

func TestExternalGenerateCommentUnsupported(t *testing.T) {
	ext := NewExternal("http://example.com")
	_, err := ext.GenerateComment(context.Background(), CommentRequest{})
	if err == nil {
		t.Fatal("expected external participants to reject comment generation")
	}
}
