package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until Advance
// is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline order,
// without the clock's lock held, so callbacks may schedule or stop other
// timers. Do not call Advance from within a callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	channel  chan time.Time
	interval time.Duration
	stopped  bool
	fired    bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f after d. If d <= 0, f runs synchronously before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if waiter.stopped || waiter.fired {
			return false
		}
		waiter.stopped = true
		return true
	}}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{deadline: c.current.Add(d), channel: channel, interval: d}
	c.waiters = append(c.waiters, waiter)

	return &Ticker{C: channel, stopFunc: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		waiter.stopped = true
	}}
}

// Advance moves the clock forward by d, firing every timer and ticker
// whose deadline falls within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		waiter := c.nextDueLocked(target)
		if waiter == nil {
			break
		}
		if waiter.deadline.After(c.current) {
			c.current = waiter.deadline
		}
		if waiter.interval > 0 {
			select {
			case waiter.channel <- c.current:
			default:
			}
			waiter.deadline = waiter.deadline.Add(waiter.interval)
			continue
		}
		waiter.fired = true
		if waiter.callback != nil {
			callback := waiter.callback
			c.mu.Unlock()
			callback()
			c.mu.Lock()
		}
	}
	c.current = target
	c.pruneLocked()
	c.mu.Unlock()
}

// Pending reports how many one-shot timers are still scheduled.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, w := range c.waiters {
		if w.interval == 0 && !w.stopped && !w.fired {
			count++
		}
	}
	return count
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	var next *fakeWaiter
	for _, w := range c.waiters {
		if w.stopped || w.fired || w.deadline.After(target) {
			continue
		}
		if next == nil || w.deadline.Before(next.deadline) {
			next = w
		}
	}
	return next
}

func (c *FakeClock) pruneLocked() {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.stopped || w.fired {
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}
