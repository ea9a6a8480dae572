package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClaudeClient(t *testing.T, server *httptest.Server) *ClaudeClient {
	t.Helper()
	c := NewClaudeClient("test-key", "2023-06-01")
	c.baseURL = server.URL
	return c
}

func TestClaudeClientCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header to be set")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version header to be set")
		}
		var req claudeMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "claude-test" {
			t.Errorf("unexpected model: %q", req.Model)
		}
		json.NewEncoder(w).Encode(claudeMessageResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{
				{Type: "text", Text: "Hello, "},
				{Type: "text", Text: "world."},
			},
		})
	}))
	defer server.Close()

	client := newTestClaudeClient(t, server)
	text, err := client.Complete(context.Background(), "claude-test", "system prompt", "user message", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hello, world." {
		t.Fatalf("expected concatenated text blocks, got %q", text)
	}
}

func TestClaudeClientCompleteVendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(claudeErrorBody{
			Error: struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}{Type: "rate_limit_error", Message: "overloaded"},
		})
	}))
	defer server.Close()

	client := newTestClaudeClient(t, server)
	_, err := client.Complete(context.Background(), "claude-test", "", "hi", 10)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	vendorErr, ok := err.(*VendorError)
	if !ok {
		t.Fatalf("expected *VendorError, got %T", err)
	}
	if vendorErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", vendorErr.StatusCode)
	}
	if vendorErr.Message != "overloaded" {
		t.Fatalf("expected parsed error message, got %q", vendorErr.Message)
	}
	if !vendorErr.Overloaded() {
		t.Fatal("expected 429 to be classified as overloaded")
	}
}

func TestClaudeClientCompleteNoTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(claudeMessageResponse{})
	}))
	defer server.Close()

	client := newTestClaudeClient(t, server)
	text, err := client.Complete(context.Background(), "claude-test", "", "hi", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text for response with no content blocks, got %q", text)
	}
}
