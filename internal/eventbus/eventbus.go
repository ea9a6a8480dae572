// Package eventbus is an in-process pub/sub bus for live debate and topic
// events, keyed by run/topic id. It mirrors the public surface of the
// teacher's event bus adapter (Publish/Subscribe/Unsubscribe/metrics) but
// keys subscriptions on run id rather than event type, and every publish is
// a non-blocking per-subscriber channel offer.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType names the kind of event carried on the bus.
type EventType string

const (
	EventTurnStart        EventType = "turn_start"
	EventTurnComplete     EventType = "turn_complete"
	EventCooldownStart    EventType = "cooldown_start"
	EventNewComment       EventType = "new_comment"
	EventDebateComplete   EventType = "debate_complete"
	EventTopicClosed      EventType = "topic_closed"
	EventFactcheckUpdated EventType = "factcheck_updated"
)

// Event is a single message published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	RunID     uuid.UUID `json:"run_id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberQueueSize bounds how many undelivered events a slow subscriber
// can accumulate before new events are dropped for it.
const subscriberQueueSize = 64

// subscriber is one SSE client's inbox for a single run.
type subscriber struct {
	id uuid.UUID
	ch chan *Event
}

// Metrics is a point-in-time snapshot of bus activity.
type Metrics struct {
	TotalSubscribers int64
	TotalPublished   int64
	TotalDropped     int64
}

// Bus is a run-keyed, bounded, non-blocking pub/sub bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID][]*subscriber
	log         *logrus.Logger

	published int64
	dropped   int64
}

// New creates an empty Bus.
func New(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}
	return &Bus{
		subscribers: make(map[uuid.UUID][]*subscriber),
		log:         log,
	}
}

// Subscribe registers a new listener for a run's events and returns the
// receive channel together with an id for later Unsubscribe.
func (b *Bus) Subscribe(runID uuid.UUID) (uuid.UUID, <-chan *Event) {
	sub := &subscriber{id: uuid.New(), ch: make(chan *Event, subscriberQueueSize)}

	b.mu.Lock()
	b.subscribers[runID] = append(b.subscribers[runID], sub)
	count := len(b.subscribers[runID])
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"run_id": runID, "subscriber_count": count}).Debug("Live subscriber added")
	return sub.id, sub.ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(runID, subscriberID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[runID]
	for i, s := range subs {
		if s.id == subscriberID {
			close(s.ch)
			b.subscribers[runID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[runID]) == 0 {
		delete(b.subscribers, runID)
	}
}

// Publish delivers an event to every current subscriber of its run id. Each
// delivery is a non-blocking channel offer: a subscriber that hasn't drained
// its queue has the event dropped for it rather than stalling the publisher.
func (b *Bus) Publish(runID uuid.UUID, eventType EventType, data any) {
	event := &Event{Type: eventType, RunID: runID, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	subs := b.subscribers[runID]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	atomic.AddInt64(&b.published, 1)
	for _, s := range subs {
		select {
		case s.ch <- event:
		default:
			atomic.AddInt64(&b.dropped, 1)
			b.log.WithField("run_id", runID).Warn("Subscriber queue full, dropping event")
		}
	}
}

// ViewerCount returns the number of active subscribers for a run.
func (b *Bus) ViewerCount(runID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[runID])
}

// Metrics returns a snapshot of publish/drop counters.
func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	b.mu.RUnlock()

	return Metrics{
		TotalSubscribers: int64(total),
		TotalPublished:   atomic.LoadInt64(&b.published),
		TotalDropped:     atomic.LoadInt64(&b.dropped),
	}
}
