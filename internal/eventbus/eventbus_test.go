package eventbus

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSubscribePublishReceives(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	_, events := b.Subscribe(runID)
	b.Publish(runID, EventNewComment, map[string]string{"hello": "world"})

	select {
	case ev := <-events:
		if ev.Type != EventNewComment {
			t.Fatalf("expected event type %q, got %q", EventNewComment, ev.Type)
		}
		if ev.RunID != runID {
			t.Fatalf("expected run id %s, got %s", runID, ev.RunID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New(nil)
	// Should not panic or block when nobody is listening.
	b.Publish(uuid.New(), EventDebateComplete, nil)

	m := b.Metrics()
	if m.TotalPublished != 0 {
		t.Fatalf("expected no publishes counted with zero subscribers, got %d", m.TotalPublished)
	}
}

func TestUnsubscribeClosesChannelAndRemovesFromViewerCount(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	subID, events := b.Subscribe(runID)
	if got := b.ViewerCount(runID); got != 1 {
		t.Fatalf("expected viewer count 1, got %d", got)
	}

	b.Unsubscribe(runID, subID)
	if got := b.ViewerCount(runID); got != 0 {
		t.Fatalf("expected viewer count 0 after unsubscribe, got %d", got)
	}

	if _, ok := <-events; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestPublishDropsOnFullQueue(t *testing.T) {
	b := New(nil)
	runID := uuid.New()
	_, events := b.Subscribe(runID)

	for i := 0; i < subscriberQueueSize+10; i++ {
		b.Publish(runID, EventTurnStart, i)
	}

	m := b.Metrics()
	if m.TotalDropped == 0 {
		t.Fatal("expected some events to be dropped once the subscriber queue filled up")
	}

	// Drain what made it through without blocking the test.
	drained := 0
	for {
		select {
		case <-events:
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least some events to be delivered")
			}
			return
		}
	}
}

func TestMetricsCountsMultipleSubscribers(t *testing.T) {
	b := New(nil)
	runID := uuid.New()
	b.Subscribe(runID)
	b.Subscribe(runID)

	m := b.Metrics()
	if m.TotalSubscribers != 2 {
		t.Fatalf("expected 2 subscribers, got %d", m.TotalSubscribers)
	}
}
