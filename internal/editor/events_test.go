package editor

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherDeliversToSubscriber(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000600, 0).UTC() }
	dispatcher := NewDispatcher(clock)

	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	dispatcher.Publish(Event{Type: EventLocked})

	select {
	case event := <-stream:
		if event.Type != EventLocked {
			t.Fatalf("expected event type %s, got %s", EventLocked, event.Type)
		}
		if !event.Timestamp.Equal(time.Unix(1700000600, 0).UTC()) {
			t.Fatalf("expected dispatcher to stamp the clock time, got %v", event.Timestamp)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event within deadline")
	}
}

func TestDispatcherUnsubscribeStopsDelivery(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	stream, cleanup := dispatcher.Subscribe(context.Background())
	cleanup()

	dispatcher.Publish(Event{Type: EventLocked})

	select {
	case event := <-stream:
		t.Fatalf("did not expect event after unsubscribe, got %s", event.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherContextCancelUnsubscribes(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	cancel()
	// Cancellation unregisters asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		dispatcher.Publish(Event{Type: EventLocked})
		select {
		case <-stream:
		default:
		}
		dispatcher.mu.RLock()
		remaining := len(dispatcher.subscribers)
		dispatcher.mu.RUnlock()
		if remaining == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("expected context cancellation to unsubscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcherDropsEventsForLaggingSubscriber(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	for i := 0; i < 20; i++ {
		dispatcher.Publish(Event{Type: EventSaving})
	}

	received := 0
	for {
		select {
		case <-stream:
			received++
		default:
			if received != 16 {
				t.Fatalf("expected buffer-limited delivery of 16 events, got %d", received)
			}
			return
		}
	}
}

func TestDispatcherIgnoresEmptyEventType(t *testing.T) {
	dispatcher := NewDispatcher(nil)

	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	dispatcher.Publish(Event{})

	select {
	case event := <-stream:
		t.Fatalf("did not expect delivery of an empty event, got %q", event.Type)
	case <-time.After(100 * time.Millisecond):
	}
}