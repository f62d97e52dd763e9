package kiosk

import "time"

// TapResult is the outcome of an operator input.
type TapResult string

const (
	Accepted  TapResult = "accepted"
	Debounced TapResult = "debounced"
	Locked    TapResult = "locked"
	// Disabled means the control is not active on the current screen.
	Disabled TapResult = "disabled"
	Unknown  TapResult = "unknown"
)

// inputGuard absorbs double-fired touch events: a tap is ignored within
// debounce of the last accepted one, and every accepted tap locks input
// for lock. The two windows are independent.
type inputGuard struct {
	debounce time.Duration
	lock     time.Duration

	lastAccepted time.Time
	lockedUntil  time.Time
}

func (g *inputGuard) admit(now time.Time) TapResult {
	if now.Before(g.lockedUntil) {
		return Locked
	}
	if !g.lastAccepted.IsZero() && now.Sub(g.lastAccepted) < g.debounce {
		return Debounced
	}
	g.lastAccepted = now
	g.lockedUntil = now.Add(g.lock)
	return Accepted
}
