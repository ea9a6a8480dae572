package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestAdminRouter(h *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	return r
}

func TestCreateParticipantMissingRequiredFields(t *testing.T) {
	h := &AdminHandler{}
	router := newTestAdminRouter(h)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Post(server.URL+"/participants", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required fields, got %d", resp.StatusCode)
	}
}

func TestCreateRunMissingRequiredFields(t *testing.T) {
	h := &AdminHandler{}
	router := newTestAdminRouter(h)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Post(server.URL+"/runs", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required fields, got %d", resp.StatusCode)
	}
}

func TestCreateTopicMissingRequiredFields(t *testing.T) {
	h := &AdminHandler{}
	router := newTestAdminRouter(h)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Post(server.URL+"/topics", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required fields, got %d", resp.StatusCode)
	}
}

func TestRunSandboxInvalidID(t *testing.T) {
	h := &AdminHandler{}
	router := newTestAdminRouter(h)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Post(server.URL+"/participants/not-a-uuid/sandbox", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", resp.StatusCode)
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault(0, 42); got != 42 {
		t.Fatalf("expected default value for zero input, got %d", got)
	}
	if got := orDefault(7, 42); got != 7 {
		t.Fatalf("expected explicit value to be preserved, got %d", got)
	}
}
