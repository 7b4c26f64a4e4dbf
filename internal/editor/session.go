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
	opSessionInit         = "editor.session.init"
	opSessionLockSettings = "editor.session.update_lock_settings"
)

var (
	errMissingSettings = errors.New("editor: settings store is required")
	noOpLogger         = zap.NewNop()
)

// SettingsStore persists the lock settings between sessions.
type SettingsStore interface {
	LoadLockConfig() (LockConfig, error)
	SaveLockConfig(cfg LockConfig) error
}

type SessionConfig struct {
	Store     storage.Store
	Settings  SettingsStore
	Scheduler Scheduler
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Session is the composition root of one editing session. It owns the event
// dispatcher, the dirty tracker, the lock machinery and the autosave
// coordinator, and exposes the surface the editing UI drives.
type Session struct {
	store    storage.Store
	settings SettingsStore
	clock    func() time.Time
	logger   *zap.Logger

	dispatcher *Dispatcher
	dirty      *DirtyTracker
	monitor    *ActivityMonitor
	timer      *InactivityTimer
	lock       *LockController
	autosave   *AutosaveCoordinator

	mu    sync.Mutex
	ready bool
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Settings == nil {
		return nil, errMissingSettings
	}

	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewScheduler()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	dispatcher := NewDispatcher(clock)

	dirty, err := NewDirtyTracker(dispatcher)
	if err != nil {
		return nil, err
	}
	monitor, err := NewActivityMonitor(ActivityMonitorConfig{Scheduler: scheduler, Logger: logger})
	if err != nil {
		return nil, err
	}
	timer, err := NewInactivityTimer(scheduler)
	if err != nil {
		return nil, err
	}
	autosave, err := NewAutosaveCoordinator(AutosaveCoordinatorConfig{
		Store:      cfg.Store,
		Dirty:      dirty,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	lock, err := NewLockController(LockControllerConfig{
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Monitor:    monitor,
		Timer:      timer,
		Config:     DefaultLockConfig(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		store:      cfg.Store,
		settings:   cfg.Settings,
		clock:      clock,
		logger:     logger,
		dispatcher: dispatcher,
		dirty:      dirty,
		monitor:    monitor,
		timer:      timer,
		lock:       lock,
		autosave:   autosave,
	}, nil
}

// Init loads the persisted lock settings and applies them. A missing or
// unreadable settings record falls back to the disabled default.
func (s *Session) Init() error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.ready = true
	s.mu.Unlock()

	cfg, err := s.settings.LoadLockConfig()
	if err != nil {
		logComponentError(s.logger, opSessionInit, "settings_load_failed", err)
		cfg = DefaultLockConfig()
	}
	return s.lock.UpdateConfig(cfg)
}

// Teardown cancels every pending timer and rejects further saves. An
// in-flight save resolves normally.
func (s *Session) Teardown() {
	s.lock.Shutdown()
	s.autosave.Close()
}

// Subscribe delivers session events until the context is cancelled.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return s.dispatcher.Subscribe(ctx)
}

// Signal reports one raw user-interaction signal to the activity monitor.
func (s *Session) Signal(kind SignalKind) {
	s.monitor.Signal(kind)
}

func (s *Session) Lock() {
	s.lock.Lock()
}

func (s *Session) Unlock(pin string) bool {
	return s.lock.Unlock(pin)
}

func (s *Session) IsLocked() bool {
	return s.lock.IsLocked()
}

func (s *Session) PressDigit(digit rune) {
	s.lock.PressDigit(digit)
}

func (s *Session) Backspace() {
	s.lock.Backspace()
}

func (s *Session) SubmitPin() {
	s.lock.Submit()
}

// PinErrorVisible reports whether the failed-attempt indicator is showing.
func (s *Session) PinErrorVisible() bool {
	return s.lock.ErrorVisible()
}

// PinBufferLength reports how many digits are buffered on the lock screen.
func (s *Session) PinBufferLength() int {
	return s.lock.BufferLength()
}

// LockSettings returns the active lock configuration.
func (s *Session) LockSettings() LockConfig {
	return s.lock.Config()
}

// UpdateLockSettings validates, persists and applies new lock settings. On
// rejection or persistence failure the previous settings stay in effect.
func (s *Session) UpdateLockSettings(cfg LockConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.settings.SaveLockConfig(cfg); err != nil {
		logComponentError(s.logger, opSessionLockSettings, "settings_save_failed", err)
		return err
	}
	return s.lock.UpdateConfig(cfg)
}

// NewDocument makes a blank document current. The dirty flag clears without
// notification; backend identity is assigned on first save.
func (s *Session) NewDocument() {
	s.autosave.SetDocument(documents.Document{})
	s.dirty.Reset()
	s.timer.Reset()
}

// OpenDocument makes the given document current.
func (s *Session) OpenDocument(doc documents.Document) {
	s.autosave.SetDocument(doc)
	s.dirty.Reset()
	s.timer.Reset()
}

// CurrentDocument returns a snapshot of the document being edited.
func (s *Session) CurrentDocument() documents.Document {
	return s.autosave.Document()
}

// UpdateTitle replaces the current title and schedules an autosave.
func (s *Session) UpdateTitle(title string) {
	s.autosave.Edit(func(doc *documents.Document) {
		doc.Title = title
	})
}

// UpdateContent replaces the current body and plain-text extract and
// schedules an autosave.
func (s *Session) UpdateContent(content, plainText string) {
	s.autosave.Edit(func(doc *documents.Document) {
		doc.Content = content
		doc.PlainText = plainText
	})
}

// SetFavorite toggles the favorite flag and schedules an autosave.
func (s *Session) SetFavorite(favorite bool) {
	s.autosave.Edit(func(doc *documents.Document) {
		doc.Favorite = favorite
	})
}

// NotifyEdited records an edit without changing the snapshot, marking the
// document dirty and scheduling an autosave.
func (s *Session) NotifyEdited() {
	s.autosave.Edit(nil)
}

// SaveNow saves the current document immediately, waiting out any in-flight
// save first.
func (s *Session) SaveNow(ctx context.Context) (documents.Document, error) {
	return s.autosave.SaveNow(ctx)
}

func (s *Session) IsDirty() bool {
	return s.dirty.IsDirty()
}

// ListDocuments returns every persisted document, newest first.
func (s *Session) ListDocuments(ctx context.Context) ([]documents.Document, error) {
	return s.store.List(ctx)
}

// DeleteDocument removes the stored document. The boolean reports whether the
// backend had it.
func (s *Session) DeleteDocument(ctx context.Context, storageKey string) (bool, error) {
	return s.store.Delete(ctx, storageKey)
}

func logComponentError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("editor error", attrs...)
}
