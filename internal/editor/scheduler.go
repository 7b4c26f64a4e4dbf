package editor

import (
	"errors"
	"time"
)

var errMissingScheduler = errors.New("editor: scheduler is required")

// TimerHandle is a single-shot timer owned by exactly one component slot.
// Stop cancels the pending fire and reports whether the timer had not yet
// fired or been stopped.
type TimerHandle interface {
	Stop() bool
}

// Scheduler schedules single-shot timers. The process implementation
// delegates to time.AfterFunc; tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) TimerHandle
}

type wallScheduler struct{}

// NewScheduler returns the wall-clock Scheduler.
func NewScheduler() Scheduler {
	return wallScheduler{}
}

func (wallScheduler) AfterFunc(delay time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(delay, fn)
}
