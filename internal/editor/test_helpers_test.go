package editor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
	"github.com/MarcoPoloResearchLab/inkwell/internal/storage"
)

// fakeScheduler drives single-shot timers on a virtual clock. Advance fires
// due timers in deadline order on the calling goroutine, so tests observe
// every timer effect before Advance returns.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	scheduler *fakeScheduler
	deadline  time.Time
	fn        func()
	fired     bool
	stopped   bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(1700000000, 0).UTC()}
}

func (s *fakeScheduler) AfterFunc(delay time.Duration, fn func()) TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &fakeTimer{scheduler: s, deadline: s.now.Add(delay), fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the virtual clock forward, firing due timers in deadline
// order. Callbacks run without the scheduler lock held and may schedule
// further timers; those within the advanced span fire too.
func (s *fakeScheduler) Advance(step time.Duration) {
	s.mu.Lock()
	target := s.now.Add(step)
	for {
		timer := s.nextDueLocked(target)
		if timer == nil {
			break
		}
		if timer.deadline.After(s.now) {
			s.now = timer.deadline
		}
		timer.fired = true
		fn := timer.fn
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
	if target.After(s.now) {
		s.now = target
	}
	s.mu.Unlock()
}

func (s *fakeScheduler) nextDueLocked(target time.Time) *fakeTimer {
	var due *fakeTimer
	for _, timer := range s.timers {
		if timer.fired || timer.stopped {
			continue
		}
		if timer.deadline.After(target) {
			continue
		}
		if due == nil || timer.deadline.Before(due.deadline) {
			due = timer
		}
	}
	return due
}

// stubStore records saves and answers with backend-assigned identity. A gate
// channel makes saves block until the test feeds it a token, modelling a slow
// backend.
type stubStore struct {
	mu           sync.Mutex
	saves        []storage.SaveRequest
	failuresLeft int
	failErr      error
	gate         chan struct{}
	started      chan struct{}
	listDocs     []documents.Document
	listErr      error
	deleted      []string
	deleteResult bool
	deleteErr    error
}

func newStubStore() *stubStore {
	return &stubStore{started: make(chan struct{}, 16)}
}

func (s *stubStore) openGate() {
	s.mu.Lock()
	s.gate = make(chan struct{})
	s.mu.Unlock()
}

func (s *stubStore) releaseOne() {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	gate <- struct{}{}
}

func (s *stubStore) failNext(n int, err error) {
	s.mu.Lock()
	s.failuresLeft = n
	s.failErr = err
	s.mu.Unlock()
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *stubStore) saveAt(index int) storage.SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[index]
}

func (s *stubStore) List(ctx context.Context) ([]documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listDocs, s.listErr
}

func (s *stubStore) Save(ctx context.Context, request storage.SaveRequest) (documents.Document, error) {
	s.mu.Lock()
	s.saves = append(s.saves, request)
	index := len(s.saves)
	gate := s.gate
	fail := s.failuresLeft > 0
	if fail {
		s.failuresLeft--
	}
	failErr := s.failErr
	s.mu.Unlock()

	s.started <- struct{}{}
	if gate != nil {
		<-gate
	}
	if fail {
		return documents.Document{}, failErr
	}

	doc := request.Document
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", index)
	}
	if doc.StorageKey == "" {
		doc.StorageKey = fmt.Sprintf("key-%d", index)
		if doc.CreatedAtSeconds <= 0 {
			doc.CreatedAtSeconds = 1700000000
		}
	}
	doc.UpdatedAtSeconds = 1700000000 + int64(index)
	return doc, nil
}

func (s *stubStore) Delete(ctx context.Context, storageKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageKey)
	return s.deleteResult, s.deleteErr
}

type stubSettingsStore struct {
	mu      sync.Mutex
	cfg     LockConfig
	loadErr error
	saveErr error
	saved   []LockConfig
}

func newStubSettingsStore() *stubSettingsStore {
	return &stubSettingsStore{cfg: DefaultLockConfig()}
}

func (s *stubSettingsStore) LoadLockConfig() (LockConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return DefaultLockConfig(), s.loadErr
	}
	return s.cfg, nil
}

func (s *stubSettingsStore) SaveLockConfig(cfg LockConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, cfg)
	s.cfg = cfg
	return nil
}

func (s *stubSettingsStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func waitSignal(t *testing.T, signals <-chan struct{}, label string) {
	t.Helper()
	select {
	case <-signals:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %s within deadline", label)
	}
}

// waitEvent drains the stream until an event of the wanted type arrives.
func waitEvent(t *testing.T, stream <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-stream:
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("expected %s event within deadline", want)
		}
	}
}

// expectNoEvent asserts that no event of the given type is already buffered.
func expectNoEvent(t *testing.T, stream <-chan Event, unwanted EventType) {
	t.Helper()
	for {
		select {
		case event := <-stream:
			if event.Type == unwanted {
				t.Fatalf("unexpected %s event", unwanted)
			}
		default:
			return
		}
	}
}

func drainEvents(stream <-chan Event) {
	for {
		select {
		case <-stream:
		default:
			return
		}
	}
}