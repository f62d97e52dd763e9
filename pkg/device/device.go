// Package device keeps the kiosk display fullscreen and awake. Every
// operation is best-effort: failures are logged and swallowed.
package device

import (
	"context"
	"sync"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// Fullscreen controls the kiosk window.
type Fullscreen interface {
	IsFullscreen(ctx context.Context) bool
	RequestFullscreen(ctx context.Context) error
}

// WakeLock keeps the screen from sleeping. Held turns false when the
// platform drops the lock.
type WakeLock interface {
	Held() bool
	Acquire(ctx context.Context) error
	Release() error
}

// Keeper applies the retention policy: request both at startup, re-request
// fullscreen whenever the screen resets and it was lost, re-acquire the
// wake lock when the display becomes visible again and it is not held.
type Keeper struct {
	fullscreen Fullscreen
	wakeLock   WakeLock
	logger     log.Printer

	mu sync.Mutex
}

func NewKeeper(fs Fullscreen, wl WakeLock, logger log.Printer) *Keeper {
	if fs == nil {
		fs = Noop{}
	}
	if wl == nil {
		wl = &NoopWakeLock{}
	}
	return &Keeper{fullscreen: fs, wakeLock: wl, logger: log.OrDefault(logger)}
}

func (k *Keeper) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.fullscreen.RequestFullscreen(ctx); err != nil {
		log.Warnf(k.logger, "[device] fullscreen request failed: %v", err)
	}
	if err := k.wakeLock.Acquire(ctx); err != nil {
		log.Warnf(k.logger, "[device] wake lock request failed: %v", err)
	}
}

// ScreenReset is called on every return to Home.
func (k *Keeper) ScreenReset(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.fullscreen.IsFullscreen(ctx) {
		return
	}
	if err := k.fullscreen.RequestFullscreen(ctx); err != nil {
		log.Warnf(k.logger, "[device] fullscreen re-request failed: %v", err)
	}
}

// Visible is called when the display regains visibility or focus.
func (k *Keeper) Visible(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.wakeLock.Held() {
		return
	}
	if err := k.wakeLock.Acquire(ctx); err != nil {
		log.Warnf(k.logger, "[device] wake lock re-acquire failed: %v", err)
	}
}

// WakeLockHeld reports the current lock state.
func (k *Keeper) WakeLockHeld() bool {
	return k.wakeLock.Held()
}

func (k *Keeper) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.wakeLock.Release(); err != nil {
		log.Warnf(k.logger, "[device] wake lock release failed: %v", err)
	}
}

// Noop is used when no fullscreen command is configured; it reports the
// window as already fullscreen.
type Noop struct{}

func (Noop) IsFullscreen(context.Context) bool       { return true }
func (Noop) RequestFullscreen(context.Context) error { return nil }

// NoopWakeLock tracks Acquire/Release without touching the platform.
type NoopWakeLock struct {
	mu   sync.Mutex
	held bool
}

func (n *NoopWakeLock) Held() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.held
}

func (n *NoopWakeLock) Acquire(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held = true
	return nil
}

func (n *NoopWakeLock) Release() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held = false
	return nil
}
