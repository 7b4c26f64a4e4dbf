package editor

import (
	"errors"
	"sync"
)

var errMissingDispatcher = errors.New("editor: dispatcher is required")

// DirtyTracker records whether the current document has unsaved changes.
type DirtyTracker struct {
	dispatcher *Dispatcher

	mu    sync.Mutex
	dirty bool
}

func NewDirtyTracker(dispatcher *Dispatcher) (*DirtyTracker, error) {
	if dispatcher == nil {
		return nil, errMissingDispatcher
	}
	return &DirtyTracker{dispatcher: dispatcher}, nil
}

// MarkEdited sets the flag and notifies on every call, including calls that
// find the flag already set.
func (t *DirtyTracker) MarkEdited() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
	t.dispatcher.Publish(Event{Type: EventDirtyChanged, Dirty: true})
}

// MarkSaved clears the flag after a confirmed save and notifies.
func (t *DirtyTracker) MarkSaved() {
	t.mu.Lock()
	t.dirty = false
	t.mu.Unlock()
	t.dispatcher.Publish(Event{Type: EventDirtyChanged, Dirty: false})
}

// Reset clears the flag without notifying. Used when a document is created or
// loaded, where no save happened.
func (t *DirtyTracker) Reset() {
	t.mu.Lock()
	t.dirty = false
	t.mu.Unlock()
}

func (t *DirtyTracker) IsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}
