// Package clock abstracts time so the kiosk timers (debounce, auto-reset,
// idle watchdog, long press, drain interval) can be driven deterministically
// in tests. Production code injects Real(); tests inject Fake().
package clock

import "time"

// Clock is the subset of the time package used by the kiosk.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. The returned Timer cancels the
	// pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a cancelable scheduled call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns false if the timer has
// already fired or been stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Ticker delivers ticks on C until stopped. C has capacity 1; ticks are
// dropped when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
