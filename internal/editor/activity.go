package editor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SignalKind enumerates the user-interaction signals the monitor observes.
type SignalKind string

const (
	SignalPointerMove SignalKind = "pointer-move"
	SignalPointerDown SignalKind = "pointer-down"
	SignalKeyDown     SignalKind = "key-down"
	SignalTouchMove   SignalKind = "touch-move"
)

// DefaultSignals returns the signal set registered while the lock watches for
// inactivity.
func DefaultSignals() []SignalKind {
	return []SignalKind{SignalPointerMove, SignalPointerDown, SignalKeyDown, SignalTouchMove}
}

const activityWindow = 1000 * time.Millisecond

var (
	errMissingActivityCallback = errors.New("editor: activity callback is required")
	errEmptySignalSet          = errors.New("editor: signal set is required")
)

type ActivityMonitorConfig struct {
	Scheduler Scheduler
	Logger    *zap.Logger
}

// ActivityMonitor coalesces raw interaction signals into activity callbacks,
// at most one per window. The first signal of a burst fires immediately; the
// rest are absorbed until the trailing window timer delivers one coalesced
// callback and opens the next window.
type ActivityMonitor struct {
	scheduler Scheduler
	logger    *zap.Logger

	mu         sync.Mutex
	signals    map[SignalKind]struct{}
	onActivity func()
	window     TimerHandle
	generation int64
	pending    bool
	running    bool
}

func NewActivityMonitor(cfg ActivityMonitorConfig) (*ActivityMonitor, error) {
	if cfg.Scheduler == nil {
		return nil, errMissingScheduler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &ActivityMonitor{
		scheduler: cfg.Scheduler,
		logger:    logger,
	}, nil
}

// Start registers the observed signal set and the callback. Starting an
// already running monitor replaces both.
func (m *ActivityMonitor) Start(signals []SignalKind, onActivity func()) error {
	if len(signals) == 0 {
		return errEmptySignalSet
	}
	if onActivity == nil {
		return errMissingActivityCallback
	}

	registered := make(map[SignalKind]struct{}, len(signals))
	for _, kind := range signals {
		registered[kind] = struct{}{}
	}

	m.mu.Lock()
	m.cancelWindowLocked()
	m.signals = registered
	m.onActivity = onActivity
	m.pending = false
	m.running = true
	m.mu.Unlock()
	return nil
}

// Signal reports one raw interaction. Signals of unregistered kinds, and all
// signals while stopped, are ignored.
func (m *ActivityMonitor) Signal(kind SignalKind) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if _, observed := m.signals[kind]; !observed {
		m.mu.Unlock()
		return
	}
	if m.window != nil {
		m.pending = true
		m.mu.Unlock()
		return
	}
	m.openWindowLocked()
	callback := m.onActivity
	m.mu.Unlock()

	callback()
}

// Stop cancels the pending window and drops buffered activity. Stopping a
// stopped monitor is a no-op.
func (m *ActivityMonitor) Stop() {
	m.mu.Lock()
	m.cancelWindowLocked()
	m.pending = false
	m.running = false
	m.mu.Unlock()
}

func (m *ActivityMonitor) openWindowLocked() {
	m.generation++
	generation := m.generation
	m.window = m.scheduler.AfterFunc(activityWindow, func() {
		m.windowElapsed(generation)
	})
}

func (m *ActivityMonitor) cancelWindowLocked() {
	if m.window != nil {
		m.window.Stop()
		m.window = nil
	}
	m.generation++
}

func (m *ActivityMonitor) windowElapsed(generation int64) {
	m.mu.Lock()
	if generation != m.generation || !m.running {
		m.mu.Unlock()
		return
	}
	m.window = nil
	if !m.pending {
		m.mu.Unlock()
		return
	}
	m.pending = false
	m.openWindowLocked()
	callback := m.onActivity
	m.mu.Unlock()

	callback()
}
