// Package clock abstracts delayed callbacks so cooldowns and minimum
// durations can be driven manually in tests.
package clock

import "time"

// CancelFunc stops a scheduled callback. It reports whether the callback
// was stopped before it ran.
type CancelFunc func() bool

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) CancelFunc

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real is the wall-clock Scheduler.
type Real struct{}

// AfterFunc implements Scheduler using time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// After implements Scheduler using time.After.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
