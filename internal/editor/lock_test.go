package editor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type lockFixture struct {
	lock      *LockController
	monitor   *ActivityMonitor
	timer     *InactivityTimer
	scheduler *fakeScheduler
	events    <-chan Event
}

func newLockFixture(t *testing.T, cfg LockConfig) *lockFixture {
	t.Helper()
	scheduler := newFakeScheduler()
	dispatcher := NewDispatcher(scheduler.Now)

	monitor, err := NewActivityMonitor(ActivityMonitorConfig{Scheduler: scheduler})
	if err != nil {
		t.Fatalf("failed to construct activity monitor: %v", err)
	}
	timer, err := NewInactivityTimer(scheduler)
	if err != nil {
		t.Fatalf("failed to construct inactivity timer: %v", err)
	}
	lock, err := NewLockController(LockControllerConfig{
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Monitor:    monitor,
		Timer:      timer,
		Config:     DefaultLockConfig(),
	})
	if err != nil {
		t.Fatalf("failed to construct lock controller: %v", err)
	}
	if err := lock.UpdateConfig(cfg); err != nil {
		t.Fatalf("failed to apply lock config: %v", err)
	}

	stream, cleanup := dispatcher.Subscribe(context.Background())
	t.Cleanup(cleanup)
	t.Cleanup(lock.Shutdown)

	return &lockFixture{lock: lock, monitor: monitor, timer: timer, scheduler: scheduler, events: stream}
}

func enabledLockConfig() LockConfig {
	return LockConfig{Enabled: true, PinLength: PinLengthShort, Pin: "1234", TimeoutMillis: 300000}
}

func TestLockConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     LockConfig
		wantErr bool
	}{
		{name: "valid-short-pin", cfg: LockConfig{Enabled: true, PinLength: 4, Pin: "1234", TimeoutMillis: 300000}},
		{name: "valid-long-pin", cfg: LockConfig{Enabled: true, PinLength: 6, Pin: "123456", TimeoutMillis: 60000}},
		{name: "valid-disabled-without-pin", cfg: LockConfig{Enabled: false, PinLength: 4, TimeoutMillis: 300000}},
		{name: "valid-disabled-with-pin", cfg: LockConfig{Enabled: false, PinLength: 4, Pin: "1234", TimeoutMillis: 300000}},
		{name: "rejects-unsupported-pin-length", cfg: LockConfig{Enabled: false, PinLength: 5, TimeoutMillis: 300000}, wantErr: true},
		{name: "rejects-zero-timeout", cfg: LockConfig{Enabled: false, PinLength: 4, TimeoutMillis: 0}, wantErr: true},
		{name: "rejects-negative-timeout", cfg: LockConfig{Enabled: false, PinLength: 4, TimeoutMillis: -1000}, wantErr: true},
		{name: "rejects-enabled-without-pin", cfg: LockConfig{Enabled: true, PinLength: 4, TimeoutMillis: 300000}, wantErr: true},
		{name: "rejects-pin-length-mismatch", cfg: LockConfig{Enabled: true, PinLength: 6, Pin: "1234", TimeoutMillis: 300000}, wantErr: true},
		{name: "rejects-non-digit-pin", cfg: LockConfig{Enabled: true, PinLength: 4, Pin: "12a4", TimeoutMillis: 300000}, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.cfg.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidLockConfig) {
					t.Fatalf("expected invalid lock config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestDefaultLockConfigIsDisabled(t *testing.T) {
	cfg := DefaultLockConfig()
	if cfg.Enabled {
		t.Fatalf("expected default config to be disabled")
	}
	if cfg.PinLength != PinLengthShort {
		t.Fatalf("expected default pin length %d, got %d", PinLengthShort, cfg.PinLength)
	}
	if cfg.TimeoutMillis != 300000 {
		t.Fatalf("expected default timeout 300000ms, got %d", cfg.TimeoutMillis)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
}

func TestLockEmitsLockedOnceAndIgnoresRepeatedLocks(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected controller to be locked")
	}
	waitEvent(t, fixture.events, EventLocked)

	fixture.lock.Lock()
	expectNoEvent(t, fixture.events, EventLocked)
}

func TestUnlockWithCorrectPinEmitsUnlockedAndRestartsWatch(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)
	if fixture.timer.Armed() {
		t.Fatalf("expected inactivity timer to stop while locked")
	}

	if !fixture.lock.Unlock("1234") {
		t.Fatalf("expected correct pin to unlock")
	}
	if fixture.lock.IsLocked() {
		t.Fatalf("expected controller to be unlocked")
	}
	waitEvent(t, fixture.events, EventUnlocked)

	if !fixture.timer.Armed() {
		t.Fatalf("expected inactivity timer to rearm after unlock")
	}
}

func TestUnlockWithWrongPinShowsAutoClearingError(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	if fixture.lock.Unlock("9999") {
		t.Fatalf("expected wrong pin to keep the controller locked")
	}
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected controller to stay locked")
	}
	waitEvent(t, fixture.events, EventPinError)
	if !fixture.lock.ErrorVisible() {
		t.Fatalf("expected error indicator after mismatch")
	}

	fixture.scheduler.Advance(499 * time.Millisecond)
	if !fixture.lock.ErrorVisible() {
		t.Fatalf("expected error indicator to persist inside the window")
	}
	fixture.scheduler.Advance(time.Millisecond)
	if fixture.lock.ErrorVisible() {
		t.Fatalf("expected error indicator to clear after the window")
	}
}

func TestUnlockWhileUnlockedIsNoOp(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	if !fixture.lock.Unlock("9999") {
		t.Fatalf("expected unlock of an unlocked controller to report unlocked")
	}
	expectNoEvent(t, fixture.events, EventPinError)
	expectNoEvent(t, fixture.events, EventUnlocked)
}

func TestPinEntryAutoChecksAfterSettling(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	for _, digit := range "1234" {
		fixture.lock.PressDigit(digit)
	}
	if fixture.lock.BufferLength() != 4 {
		t.Fatalf("expected 4 buffered digits, got %d", fixture.lock.BufferLength())
	}
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected check to wait for the settling delay")
	}

	fixture.scheduler.Advance(150 * time.Millisecond)
	if fixture.lock.IsLocked() {
		t.Fatalf("expected full correct buffer to unlock after settling")
	}
	waitEvent(t, fixture.events, EventUnlocked)
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected buffer to clear on check, got %d digits", fixture.lock.BufferLength())
	}
}

func TestPinEntryWrongAutoCheckClearsBufferAndFlagsError(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	for _, digit := range "9999" {
		fixture.lock.PressDigit(digit)
	}
	fixture.scheduler.Advance(150 * time.Millisecond)

	if !fixture.lock.IsLocked() {
		t.Fatalf("expected wrong pin to keep the controller locked")
	}
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected mismatch to clear the buffer, got %d digits", fixture.lock.BufferLength())
	}
	waitEvent(t, fixture.events, EventPinError)
	if !fixture.lock.ErrorVisible() {
		t.Fatalf("expected error indicator after mismatch")
	}

	fixture.scheduler.Advance(500 * time.Millisecond)
	if fixture.lock.ErrorVisible() {
		t.Fatalf("expected error indicator to clear")
	}
}

func TestBackspaceCancelsPendingAutoCheck(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	for _, digit := range "1234" {
		fixture.lock.PressDigit(digit)
	}
	fixture.lock.Backspace()
	if fixture.lock.BufferLength() != 3 {
		t.Fatalf("expected 3 buffered digits after backspace, got %d", fixture.lock.BufferLength())
	}

	fixture.scheduler.Advance(150 * time.Millisecond)
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected cancelled check not to run")
	}
	expectNoEvent(t, fixture.events, EventPinError)
	expectNoEvent(t, fixture.events, EventUnlocked)

	fixture.lock.PressDigit('4')
	fixture.scheduler.Advance(150 * time.Millisecond)
	if fixture.lock.IsLocked() {
		t.Fatalf("expected completed buffer to unlock")
	}
}

func TestBackspaceOnEmptyBufferIsNoOp(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	fixture.lock.Backspace()
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected empty buffer to stay empty, got %d digits", fixture.lock.BufferLength())
	}
}

func TestSubmitChecksBufferAtAnyLength(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	fixture.lock.PressDigit('1')
	fixture.lock.PressDigit('2')
	fixture.lock.Submit()

	if !fixture.lock.IsLocked() {
		t.Fatalf("expected short attempt to fail")
	}
	waitEvent(t, fixture.events, EventPinError)
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected submit to clear the buffer, got %d digits", fixture.lock.BufferLength())
	}
}

func TestPressDigitIgnoresInputBeyondCapacityAndNonDigits(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	fixture.lock.PressDigit('x')
	fixture.lock.PressDigit('#')
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected non-digit input to be ignored, got %d digits", fixture.lock.BufferLength())
	}

	for _, digit := range "12345" {
		fixture.lock.PressDigit(digit)
	}
	if fixture.lock.BufferLength() != 4 {
		t.Fatalf("expected input beyond the pin length to be ignored, got %d digits", fixture.lock.BufferLength())
	}

	fixture.scheduler.Advance(150 * time.Millisecond)
	if fixture.lock.IsLocked() {
		t.Fatalf("expected buffered pin to unlock")
	}
}

func TestPressDigitIgnoredWhileUnlocked(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.PressDigit('1')
	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected digits while unlocked to be ignored, got %d", fixture.lock.BufferLength())
	}
}

func TestInactivityLocksExactlyOnce(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.scheduler.Advance(300000 * time.Millisecond)
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected inactivity to lock the controller")
	}
	waitEvent(t, fixture.events, EventLocked)

	fixture.scheduler.Advance(300000 * time.Millisecond)
	expectNoEvent(t, fixture.events, EventLocked)
}

func TestActivityPostponesInactivityLock(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.scheduler.Advance(200000 * time.Millisecond)
	fixture.monitor.Signal(SignalKeyDown)

	fixture.scheduler.Advance(200000 * time.Millisecond)
	if fixture.lock.IsLocked() {
		t.Fatalf("expected activity to postpone the lock")
	}

	fixture.scheduler.Advance(100000 * time.Millisecond)
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected lock after a full quiet timeout")
	}
}

func TestDisableWhileLockedStaysLocked(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	drainEvents(fixture.events)

	disabled := enabledLockConfig()
	disabled.Enabled = false
	if err := fixture.lock.UpdateConfig(disabled); err != nil {
		t.Fatalf("unexpected config update error: %v", err)
	}

	if !fixture.lock.IsLocked() {
		t.Fatalf("expected controller to stay locked after disabling")
	}
	expectNoEvent(t, fixture.events, EventUnlocked)

	if !fixture.lock.Unlock("1234") {
		t.Fatalf("expected pin to still unlock")
	}
	if fixture.timer.Armed() {
		t.Fatalf("expected no inactivity watch after unlocking a disabled lock")
	}
}

func TestUpdateConfigRejectsInvalidAndKeepsPrevious(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	bad := LockConfig{Enabled: true, PinLength: 4, Pin: "", TimeoutMillis: 300000}
	if err := fixture.lock.UpdateConfig(bad); !errors.Is(err, ErrInvalidLockConfig) {
		t.Fatalf("expected invalid lock config error, got %v", err)
	}

	current := fixture.lock.Config()
	if current.Pin != "1234" || !current.Enabled {
		t.Fatalf("expected previous config to stay in effect, got %+v", current)
	}
}

func TestUpdateConfigWhileLockedClearsBufferedDigits(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	fixture.lock.Lock()
	fixture.lock.PressDigit('1')
	fixture.lock.PressDigit('2')

	next := enabledLockConfig()
	next.Pin = "5678"
	if err := fixture.lock.UpdateConfig(next); err != nil {
		t.Fatalf("unexpected config update error: %v", err)
	}

	if fixture.lock.BufferLength() != 0 {
		t.Fatalf("expected config change to clear the buffer, got %d digits", fixture.lock.BufferLength())
	}
	if !fixture.lock.IsLocked() {
		t.Fatalf("expected controller to stay locked through a config change")
	}

	if fixture.lock.Unlock("1234") {
		t.Fatalf("expected old pin to be rejected")
	}
	drainEvents(fixture.events)
	if !fixture.lock.Unlock("5678") {
		t.Fatalf("expected new pin to unlock")
	}
}

func TestDisablingStopsInactivityWatch(t *testing.T) {
	fixture := newLockFixture(t, enabledLockConfig())

	if !fixture.timer.Armed() {
		t.Fatalf("expected enabled config to arm the inactivity timer")
	}

	disabled := DefaultLockConfig()
	if err := fixture.lock.UpdateConfig(disabled); err != nil {
		t.Fatalf("unexpected config update error: %v", err)
	}
	if fixture.timer.Armed() {
		t.Fatalf("expected disabling to disarm the inactivity timer")
	}

	fixture.scheduler.Advance(600000 * time.Millisecond)
	if fixture.lock.IsLocked() {
		t.Fatalf("expected no inactivity lock while disabled")
	}
}