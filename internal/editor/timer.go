package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInvalidTimeout indicates a non-positive inactivity timeout.
	ErrInvalidTimeout         = errors.New("editor: inactivity timeout must be positive")
	errMissingTimeoutCallback = errors.New("editor: timeout callback is required")
)

// InactivityTimer is a single-shot timer with at most one outstanding
// deadline. Arm replaces any pending deadline, Reset restarts the armed
// deadline from now, Disarm cancels it.
type InactivityTimer struct {
	scheduler Scheduler

	mu         sync.Mutex
	handle     TimerHandle
	timeout    time.Duration
	onTimeout  func()
	generation int64
	armed      bool
}

func NewInactivityTimer(scheduler Scheduler) (*InactivityTimer, error) {
	if scheduler == nil {
		return nil, errMissingScheduler
	}
	return &InactivityTimer{scheduler: scheduler}, nil
}

// Arm schedules the callback to fire once after the timeout elapses.
func (t *InactivityTimer) Arm(timeout time.Duration, onTimeout func()) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	}
	if onTimeout == nil {
		return errMissingTimeoutCallback
	}

	t.mu.Lock()
	t.cancelLocked()
	t.timeout = timeout
	t.onTimeout = onTimeout
	t.scheduleLocked()
	t.mu.Unlock()
	return nil
}

// Reset restarts the armed deadline from now. A disarmed timer stays
// disarmed.
func (t *InactivityTimer) Reset() {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.cancelLocked()
	t.scheduleLocked()
	t.mu.Unlock()
}

// Disarm cancels the pending deadline.
func (t *InactivityTimer) Disarm() {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()
}

// Armed reports whether a deadline is outstanding.
func (t *InactivityTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *InactivityTimer) scheduleLocked() {
	t.generation++
	generation := t.generation
	t.handle = t.scheduler.AfterFunc(t.timeout, func() {
		t.fire(generation)
	})
	t.armed = true
}

func (t *InactivityTimer) cancelLocked() {
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.generation++
	t.armed = false
}

func (t *InactivityTimer) fire(generation int64) {
	t.mu.Lock()
	if !t.armed || generation != t.generation {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.handle = nil
	callback := t.onTimeout
	t.mu.Unlock()

	callback()
}
