package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// PinLengthShort and PinLengthLong are the only accepted PIN lengths.
	PinLengthShort = 4
	PinLengthLong  = 6

	pinErrorWindow = 500 * time.Millisecond
	pinCheckDelay  = 150 * time.Millisecond

	opLockWatch = "editor.lock.watch"
)

var (
	// ErrInvalidLockConfig indicates a lock configuration that violates its
	// structural invariants.
	ErrInvalidLockConfig = errors.New("editor: invalid lock config")
	errMissingMonitor    = errors.New("editor: activity monitor is required")
	errMissingTimer      = errors.New("editor: inactivity timer is required")
)

// LockConfig holds the PIN lock settings persisted across sessions. The PIN
// is a plain digit string.
type LockConfig struct {
	Enabled       bool   `json:"enabled"`
	PinLength     int    `json:"pin_length"`
	Pin           string `json:"pin"`
	TimeoutMillis int64  `json:"timeout_ms"`
}

// DefaultLockConfig returns the disabled configuration new installations
// start from.
func DefaultLockConfig() LockConfig {
	return LockConfig{Enabled: false, PinLength: PinLengthShort, TimeoutMillis: 300000}
}

// Timeout converts the persisted millisecond value.
func (c LockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// Validate checks the structural invariants.
func (c LockConfig) Validate() error {
	if c.PinLength != PinLengthShort && c.PinLength != PinLengthLong {
		return fmt.Errorf("%w: pin length must be %d or %d, got %d",
			ErrInvalidLockConfig, PinLengthShort, PinLengthLong, c.PinLength)
	}
	if c.TimeoutMillis <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %dms", ErrInvalidLockConfig, c.TimeoutMillis)
	}
	if c.Enabled && c.Pin == "" {
		return fmt.Errorf("%w: enabled lock requires a pin", ErrInvalidLockConfig)
	}
	if c.Pin != "" {
		if len(c.Pin) != c.PinLength {
			return fmt.Errorf("%w: pin must be exactly %d digits", ErrInvalidLockConfig, c.PinLength)
		}
		for _, ch := range c.Pin {
			if ch < '0' || ch > '9' {
				return fmt.Errorf("%w: pin must contain only digits", ErrInvalidLockConfig)
			}
		}
	}
	return nil
}

type LockControllerConfig struct {
	Dispatcher *Dispatcher
	Scheduler  Scheduler
	Monitor    *ActivityMonitor
	Timer      *InactivityTimer
	Config     LockConfig
	Logger     *zap.Logger
}

// LockController owns the two-state lock machine. While unlocked with the
// lock enabled it keeps the activity monitor and inactivity timer running;
// while locked it collects PIN digits and checks attempts.
type LockController struct {
	dispatcher *Dispatcher
	scheduler  Scheduler
	monitor    *ActivityMonitor
	timer      *InactivityTimer
	logger     *zap.Logger

	mu              sync.Mutex
	config          LockConfig
	locked          bool
	buffer          []byte
	errorVisible    bool
	errorClear      TimerHandle
	errorGeneration int64
	checkTimer      TimerHandle
	checkGeneration int64
}

func NewLockController(cfg LockControllerConfig) (*LockController, error) {
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if cfg.Scheduler == nil {
		return nil, errMissingScheduler
	}
	if cfg.Monitor == nil {
		return nil, errMissingMonitor
	}
	if cfg.Timer == nil {
		return nil, errMissingTimer
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &LockController{
		dispatcher: cfg.Dispatcher,
		scheduler:  cfg.Scheduler,
		monitor:    cfg.Monitor,
		timer:      cfg.Timer,
		logger:     logger,
		config:     cfg.Config,
	}, nil
}

// Lock transitions to Locked. Locking an already locked controller is a
// no-op and emits nothing.
func (l *LockController) Lock() {
	l.mu.Lock()
	if l.locked {
		l.mu.Unlock()
		return
	}
	l.locked = true
	l.buffer = l.buffer[:0]
	l.cancelCheckLocked()
	l.mu.Unlock()

	l.unwatch()
	l.dispatcher.Publish(Event{Type: EventLocked})
}

// Unlock checks the full PIN in one step and reports whether the controller
// ends up unlocked.
func (l *LockController) Unlock(pin string) bool {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return true
	}
	l.cancelCheckLocked()
	l.buffer = l.buffer[:0]
	l.mu.Unlock()

	return l.performCheck(pin)
}

// PressDigit appends one digit to the PIN buffer. Digits beyond the
// configured length are ignored. Reaching the configured length schedules an
// automatic check once the entry settles.
func (l *LockController) PressDigit(digit rune) {
	if digit < '0' || digit > '9' {
		return
	}
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return
	}
	if len(l.buffer) >= l.config.PinLength {
		l.mu.Unlock()
		return
	}
	l.buffer = append(l.buffer, byte(digit))
	if len(l.buffer) == l.config.PinLength {
		l.scheduleCheckLocked()
	}
	l.mu.Unlock()
}

// Backspace removes the most recent buffered digit and cancels any pending
// automatic check.
func (l *LockController) Backspace() {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return
	}
	if len(l.buffer) > 0 {
		l.buffer = l.buffer[:len(l.buffer)-1]
	}
	l.cancelCheckLocked()
	l.mu.Unlock()
}

// Submit checks whatever is buffered, at any length.
func (l *LockController) Submit() {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return
	}
	l.cancelCheckLocked()
	attempt := string(l.buffer)
	l.mu.Unlock()

	l.performCheck(attempt)
}

// UpdateConfig validates and applies new lock settings. A rejected
// configuration leaves the previous one in effect. Disabling while locked
// does not unlock; it suppresses inactivity watching after the next unlock.
func (l *LockController) UpdateConfig(next LockConfig) error {
	if err := next.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	l.config = next
	locked := l.locked
	if locked {
		l.buffer = l.buffer[:0]
		l.cancelCheckLocked()
	}
	l.mu.Unlock()

	if locked {
		return nil
	}
	if next.Enabled {
		l.watch()
	} else {
		l.unwatch()
	}
	return nil
}

// Shutdown cancels every pending timer. The lock state itself is left as is.
func (l *LockController) Shutdown() {
	l.mu.Lock()
	l.cancelCheckLocked()
	l.cancelErrorClearLocked()
	l.mu.Unlock()

	l.unwatch()
}

func (l *LockController) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// ErrorVisible reports whether a failed attempt is currently displayed.
func (l *LockController) ErrorVisible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorVisible
}

// BufferLength reports how many digits are buffered, for masked rendering.
func (l *LockController) BufferLength() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Config returns the active lock settings.
func (l *LockController) Config() LockConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

func (l *LockController) performCheck(attempt string) bool {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return true
	}
	l.buffer = l.buffer[:0]
	if attempt == l.config.Pin {
		l.locked = false
		l.errorVisible = false
		l.cancelErrorClearLocked()
		enabled := l.config.Enabled
		l.mu.Unlock()

		l.dispatcher.Publish(Event{Type: EventUnlocked})
		if enabled {
			l.watch()
		}
		return true
	}
	l.errorVisible = true
	l.scheduleErrorClearLocked()
	l.mu.Unlock()

	l.dispatcher.Publish(Event{Type: EventPinError})
	return false
}

func (l *LockController) handleActivity() {
	l.timer.Reset()
}

func (l *LockController) handleInactivity() {
	l.mu.Lock()
	if l.locked || !l.config.Enabled {
		l.mu.Unlock()
		return
	}
	l.locked = true
	l.buffer = l.buffer[:0]
	l.cancelCheckLocked()
	l.mu.Unlock()

	l.unwatch()
	l.dispatcher.Publish(Event{Type: EventLocked})
}

func (l *LockController) watch() {
	if err := l.monitor.Start(DefaultSignals(), l.handleActivity); err != nil {
		logComponentError(l.logger, opLockWatch, "monitor_start_failed", err)
	}
	l.mu.Lock()
	timeout := l.config.Timeout()
	l.mu.Unlock()
	if err := l.timer.Arm(timeout, l.handleInactivity); err != nil {
		logComponentError(l.logger, opLockWatch, "timer_arm_failed", err)
	}
}

func (l *LockController) unwatch() {
	l.monitor.Stop()
	l.timer.Disarm()
}

func (l *LockController) scheduleCheckLocked() {
	l.cancelCheckLocked()
	generation := l.checkGeneration
	l.checkTimer = l.scheduler.AfterFunc(pinCheckDelay, func() {
		l.autoCheck(generation)
	})
}

func (l *LockController) cancelCheckLocked() {
	if l.checkTimer != nil {
		l.checkTimer.Stop()
		l.checkTimer = nil
	}
	l.checkGeneration++
}

func (l *LockController) autoCheck(generation int64) {
	l.mu.Lock()
	if generation != l.checkGeneration || !l.locked || len(l.buffer) != l.config.PinLength {
		l.mu.Unlock()
		return
	}
	l.checkTimer = nil
	attempt := string(l.buffer)
	l.mu.Unlock()

	l.performCheck(attempt)
}

func (l *LockController) scheduleErrorClearLocked() {
	l.cancelErrorClearLocked()
	generation := l.errorGeneration
	l.errorClear = l.scheduler.AfterFunc(pinErrorWindow, func() {
		l.clearError(generation)
	})
}

func (l *LockController) cancelErrorClearLocked() {
	if l.errorClear != nil {
		l.errorClear.Stop()
		l.errorClear = nil
	}
	l.errorGeneration++
}

func (l *LockController) clearError(generation int64) {
	l.mu.Lock()
	if generation != l.errorGeneration {
		l.mu.Unlock()
		return
	}
	l.errorClear = nil
	l.errorVisible = false
	l.mu.Unlock()
}
