// Package httpapi exposes the live event stream for a Run or Topic over
// Server-Sent Events, plus the thin admin routes in admin.go that register
// participants and launch runs, topics and sandbox validation. A full API
// facade is out of scope; these are the HTTP surfaces the orchestration
// core needs to be driven and watched live.
package httpapi

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agoracore/internal/eventbus"
)

// streamIdleTimeout is how long the stream can go without a live event
// before a keep-alive ping frame is sent to hold the connection open.
const streamIdleTimeout = 30 * time.Second

// StreamHandler serves Server-Sent Events for live debate/discussion
// viewers, subscribing to the event bus for the duration of the request.
type StreamHandler struct {
	Bus *eventbus.Bus
	Log *logrus.Logger
}

// NewStreamHandler builds a StreamHandler over the given event bus.
func NewStreamHandler(bus *eventbus.Bus, log *logrus.Logger) *StreamHandler {
	if log == nil {
		log = logrus.New()
	}
	return &StreamHandler{Bus: bus, Log: log}
}

// Register mounts the stream route onto a gin engine.
func (h *StreamHandler) Register(r gin.IRouter) {
	r.GET("/runs/:id/stream", h.streamRun)
	r.GET("/topics/:id/stream", h.streamRun)
}

// streamRun subscribes the requesting client to a run's or topic's events
// and relays them as SSE until the client disconnects.
func (h *StreamHandler) streamRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid id"})
		return
	}

	subscriberID, events := h.Bus.Subscribe(id)
	defer h.Bus.Unsubscribe(id, subscriberID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	h.Log.WithField("id", id).Debug("Viewer connected to live stream")

	c.SSEvent("viewer_count", gin.H{"count": h.Bus.ViewerCount(id)})
	c.Writer.Flush()

	ticker := time.NewTicker(streamIdleTimeout)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event.Data)
			ticker.Reset(streamIdleTimeout)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// ViewerCount reports the number of live subscribers, exposed for a simple
// viewer-count endpoint alongside the stream.
func (h *StreamHandler) ViewerCount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid id"})
		return
	}
	c.JSON(200, gin.H{"viewer_count": h.Bus.ViewerCount(id)})
}

// Metrics exposes event bus publish/drop counters for operational visibility.
func (h *StreamHandler) Metrics(c *gin.Context) {
	m := h.Bus.Metrics()
	c.JSON(200, gin.H{
		"total_subscribers": m.TotalSubscribers,
		"total_published":   fmt.Sprintf("%d", m.TotalPublished),
		"total_dropped":     fmt.Sprintf("%d", m.TotalDropped),
	})
}
