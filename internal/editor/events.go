package editor

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
)

// EventType enumerates the session events delivered to subscribers.
type EventType string

const (
	EventDirtyChanged EventType = "dirty-changed"
	EventSaving       EventType = "saving"
	EventSaved        EventType = "saved"
	EventSaveError    EventType = "save-error"
	EventLocked       EventType = "locked"
	EventUnlocked     EventType = "unlocked"
	EventPinError     EventType = "pin-error"
)

// Event carries one session notification. Dirty is populated for
// EventDirtyChanged, Document for save events, Reason for EventSaveError.
type Event struct {
	Type      EventType
	Dirty     bool
	Document  *documents.Document
	Reason    string
	Timestamp time.Time
}

// Dispatcher fans session events out to subscribers. Publishing never blocks:
// a subscriber that has fallen behind its buffer misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type eventSubscriber struct {
	id     int64
	stream chan Event
}

func NewDispatcher(clock func() time.Time) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
		clock:       clock,
	}
}

func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *Dispatcher) Publish(event Event) {
	if event.Type == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock().UTC()
	}
	d.mu.RLock()
	if len(d.subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) registerSubscriber(subscriber *eventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *Dispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
