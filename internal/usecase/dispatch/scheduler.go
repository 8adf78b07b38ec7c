package dispatch

import "time"

// Scheduler arms a one-shot callback after a delay. It exists so tests can
// drive flushes deterministically instead of sleeping on real timers.
type Scheduler interface {
	// Schedule runs fn after d on its own goroutine and returns a cancel
	// function. Cancel is a no-op once fn has started.
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

// Schedule implements Scheduler.
func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
