package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
	"github.com/MarcoPoloResearchLab/inkwell/internal/storage"
	"go.uber.org/zap"
)

const (
	autosaveDebounce = 2000 * time.Millisecond

	opAutosave = "editor.autosave"
)

var (
	// ErrSessionClosed indicates a save requested after teardown.
	ErrSessionClosed       = errors.New("editor: session closed")
	errMissingStore        = errors.New("editor: document store is required")
	errMissingDirtyTracker = errors.New("editor: dirty tracker is required")
)

type AutosaveCoordinatorConfig struct {
	Store      storage.Store
	Dirty      *DirtyTracker
	Dispatcher *Dispatcher
	Scheduler  Scheduler
	Clock      func() time.Time
	Logger     *zap.Logger
}

// AutosaveCoordinator owns the current document and drives its persistence.
// Every edit restarts a debounce window; the window firing saves the snapshot
// if it is still dirty. At most one save is in flight at a time: an autosave
// arriving mid-flight is deferred until the flight resolves, a manual save
// waits for it. Failed saves keep the document dirty and are not retried by
// the coordinator.
type AutosaveCoordinator struct {
	store      storage.Store
	dirty      *DirtyTracker
	dispatcher *Dispatcher
	scheduler  Scheduler
	clock      func() time.Time
	logger     *zap.Logger

	mu                 sync.Mutex
	current            *documents.Document
	editSequence       int64
	documentGeneration int64
	debounce           TimerHandle
	debounceGeneration int64
	inFlight           bool
	flightDone         chan struct{}
	pendingAuto        bool
	closed             bool
}

func NewAutosaveCoordinator(cfg AutosaveCoordinatorConfig) (*AutosaveCoordinator, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Dirty == nil {
		return nil, errMissingDirtyTracker
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if cfg.Scheduler == nil {
		return nil, errMissingScheduler
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &AutosaveCoordinator{
		store:      cfg.Store,
		dirty:      cfg.Dirty,
		dispatcher: cfg.Dispatcher,
		scheduler:  cfg.Scheduler,
		clock:      clock,
		logger:     logger,
		current:    &documents.Document{},
	}, nil
}

// SetDocument replaces the current document and cancels any pending debounce.
// A save already in flight for the previous document resolves normally but no
// longer touches coordinator state.
func (c *AutosaveCoordinator) SetDocument(doc documents.Document) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	docCopy := doc
	c.current = &docCopy
	c.documentGeneration++
	c.editSequence++
	c.pendingAuto = false
	c.cancelDebounceLocked()
	c.mu.Unlock()
}

// Document returns a snapshot of the current document.
func (c *AutosaveCoordinator) Document() documents.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return documents.Document{}
	}
	return *c.current
}

// Edit applies the mutation to the current document, marks it dirty and
// restarts the debounce window. A nil mutation records the edit without
// changing the snapshot.
func (c *AutosaveCoordinator) Edit(mutate func(*documents.Document)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.current == nil {
		c.current = &documents.Document{}
	}
	if mutate != nil {
		mutate(c.current)
	}
	c.editSequence++
	c.cancelDebounceLocked()
	generation := c.debounceGeneration
	c.debounce = c.scheduler.AfterFunc(autosaveDebounce, func() {
		c.debounceFire(generation)
	})
	c.mu.Unlock()

	c.dirty.MarkEdited()
}

// SaveNow saves the current document immediately, waiting out any in-flight
// save first. The debounced autosave pending at call time is cancelled.
func (c *AutosaveCoordinator) SaveNow(ctx context.Context) (documents.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	c.cancelDebounceLocked()
	for c.inFlight {
		done := c.flightDone
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return documents.Document{}, ctx.Err()
		case <-done:
		}
		c.mu.Lock()
	}
	if c.closed {
		c.mu.Unlock()
		return documents.Document{}, ErrSessionClosed
	}
	snapshot, sequence, generation := c.beginFlightLocked()
	c.mu.Unlock()

	return c.performSave(ctx, snapshot, sequence, generation, false)
}

// Close cancels the pending debounce and rejects further saves. An in-flight
// save resolves normally.
func (c *AutosaveCoordinator) Close() {
	c.mu.Lock()
	c.cancelDebounceLocked()
	c.pendingAuto = false
	c.closed = true
	c.mu.Unlock()
}

func (c *AutosaveCoordinator) debounceFire(generation int64) {
	c.mu.Lock()
	if c.closed || generation != c.debounceGeneration {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	if !c.dirty.IsDirty() {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.pendingAuto = true
		c.mu.Unlock()
		return
	}
	snapshot, sequence, docGeneration := c.beginFlightLocked()
	c.mu.Unlock()

	c.performSave(context.Background(), snapshot, sequence, docGeneration, true)
}

func (c *AutosaveCoordinator) runPendingAutosave() {
	c.mu.Lock()
	if c.closed || c.inFlight || !c.dirty.IsDirty() {
		c.mu.Unlock()
		return
	}
	snapshot, sequence, generation := c.beginFlightLocked()
	c.mu.Unlock()

	c.performSave(context.Background(), snapshot, sequence, generation, true)
}

func (c *AutosaveCoordinator) beginFlightLocked() (documents.Document, int64, int64) {
	c.inFlight = true
	c.flightDone = make(chan struct{})
	snapshot := documents.Document{}
	if c.current != nil {
		snapshot = *c.current
	}
	return snapshot, c.editSequence, c.documentGeneration
}

func (c *AutosaveCoordinator) performSave(ctx context.Context, snapshot documents.Document, sequence, generation int64, isAutoSave bool) (documents.Document, error) {
	saving := snapshot
	c.dispatcher.Publish(Event{Type: EventSaving, Document: &saving})

	saved, err := c.store.Save(ctx, storage.SaveRequest{Document: snapshot, AutoSave: isAutoSave})

	c.mu.Lock()
	c.inFlight = false
	close(c.flightDone)
	clean := false
	if err == nil {
		if generation == c.documentGeneration && c.current != nil {
			c.current.ID = saved.ID
			c.current.StorageKey = saved.StorageKey
			c.current.CreatedAtSeconds = saved.CreatedAtSeconds
			c.current.UpdatedAtSeconds = saved.UpdatedAtSeconds
		}
		clean = sequence == c.editSequence
	}
	deferred := c.pendingAuto && !c.closed
	c.pendingAuto = false
	c.mu.Unlock()

	if err != nil {
		c.logError(opAutosave, "save_failed", err, zap.Bool("auto_save", isAutoSave))
		failed := snapshot
		c.dispatcher.Publish(Event{Type: EventSaveError, Reason: err.Error(), Document: &failed})
		if deferred {
			go c.runPendingAutosave()
		}
		return documents.Document{}, err
	}

	if clean {
		c.dirty.MarkSaved()
	}
	savedCopy := saved
	c.dispatcher.Publish(Event{Type: EventSaved, Document: &savedCopy})
	if deferred {
		go c.runPendingAutosave()
	}
	return saved, nil
}

func (c *AutosaveCoordinator) cancelDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGeneration++
}

func (c *AutosaveCoordinator) logError(operation, reason string, err error, fields ...zap.Field) {
	logComponentError(c.logger, operation, reason, err, fields...)
}
