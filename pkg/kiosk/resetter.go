package kiosk

import (
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
)

// Resetter holds at most one scheduled return to Home. Every Schedule
// cancels the previous timer first, and a fired timer only takes effect if
// its token is still current when the caller claims it.
//
// Resetter is not safe for concurrent use; the Engine guards it with its
// mutex, including inside the fire callback before calling Claim.
type Resetter struct {
	clock   clock.Clock
	timer   *clock.Timer
	token   uint64
	pending bool
}

func NewResetter(clk clock.Clock) *Resetter {
	return &Resetter{clock: clk}
}

// Schedule replaces any pending reset with one firing after d. fire
// receives the token to pass to Claim.
func (r *Resetter) Schedule(d time.Duration, fire func(token uint64)) {
	r.Cancel()
	token := r.token
	r.pending = true
	r.timer = r.clock.AfterFunc(d, func() { fire(token) })
}

// Cancel stops the pending reset, if any. Callbacks already in flight are
// invalidated.
func (r *Resetter) Cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = false
	r.token++
}

// Claim reports whether token belongs to the pending reset and consumes it.
func (r *Resetter) Claim(token uint64) bool {
	if !r.pending || token != r.token {
		return false
	}
	r.pending = false
	r.timer = nil
	r.token++
	return true
}

func (r *Resetter) Pending() bool {
	return r.pending
}
