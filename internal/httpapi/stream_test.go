package httpapi

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agoracore/internal/eventbus"
)

func newTestRouter(bus *eventbus.Bus) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewStreamHandler(bus, nil).Register(r)
	return r
}

func TestStreamRunRelaysPublishedEvents(t *testing.T) {
	bus := eventbus.New(nil)
	router := newTestRouter(bus)
	server := httptest.NewServer(router)
	defer server.Close()

	runID := uuid.New()

	client := &http.Client{Timeout: 2 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/runs/"+runID.String()+"/stream", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("expected text/event-stream content type, got %q", ct)
	}

	// Give the handler a moment to subscribe before publishing.
	deadline := time.Now().Add(time.Second)
	for bus.ViewerCount(runID) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if bus.ViewerCount(runID) != 1 {
		t.Fatal("expected the stream handler to register as a subscriber")
	}

	bus.Publish(runID, eventbus.EventNewComment, map[string]string{"foo": "bar"})

	reader := bufio.NewReader(resp.Body)
	found := false
	for i := 0; i < 10; i++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.Contains(line, "event:new_comment") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected to read the published event name over SSE")
	}
}

func TestStreamRunSendsViewerCountFirst(t *testing.T) {
	bus := eventbus.New(nil)
	router := newTestRouter(bus)
	server := httptest.NewServer(router)
	defer server.Close()

	runID := uuid.New()

	client := &http.Client{Timeout: 2 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/runs/"+runID.String()+"/stream", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	found := false
	for i := 0; i < 5; i++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.Contains(line, "event:viewer_count") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected viewer_count to be the first event sent on connect")
	}
}

func TestStreamRunInvalidID(t *testing.T) {
	bus := eventbus.New(nil)
	router := newTestRouter(bus)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/runs/not-a-uuid/stream")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", resp.StatusCode)
	}
}

func TestViewerCountEndpoint(t *testing.T) {
	bus := eventbus.New(nil)
	router := newTestRouter(bus)
	router.GET("/runs/:id/viewers", NewStreamHandler(bus, nil).ViewerCount)
	server := httptest.NewServer(router)
	defer server.Close()

	runID := uuid.New()
	bus.Subscribe(runID)

	resp, err := http.Get(server.URL + "/runs/" + runID.String() + "/viewers")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	bus := eventbus.New(nil)
	router := gin.New()
	gin.SetMode(gin.TestMode)
	h := NewStreamHandler(bus, nil)
	router.GET("/metrics/eventbus", h.Metrics)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics/eventbus")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
