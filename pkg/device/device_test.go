package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type silent struct{}

func (silent) Printf(string, ...any) {}

type fakeFullscreen struct {
	mu       sync.Mutex
	active   bool
	requests int
	err      error
}

func (f *fakeFullscreen) IsFullscreen(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeFullscreen) RequestFullscreen(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.err != nil {
		return f.err
	}
	f.active = true
	return nil
}

type fakeWakeLock struct {
	held     bool
	acquires int
	err      error
}

func (f *fakeWakeLock) Held() bool { return f.held }

func (f *fakeWakeLock) Acquire(context.Context) error {
	f.acquires++
	if f.err != nil {
		return f.err
	}
	f.held = true
	return nil
}

func (f *fakeWakeLock) Release() error {
	f.held = false
	return nil
}

func TestKeeperStartRequestsBoth(t *testing.T) {
	fs, wl := &fakeFullscreen{}, &fakeWakeLock{}
	k := NewKeeper(fs, wl, silent{})
	k.Start(context.Background())
	assert.Equal(t, 1, fs.requests)
	assert.Equal(t, 1, wl.acquires)
	assert.True(t, k.WakeLockHeld())
}

func TestKeeperReRequestsFullscreenOnlyWhenLost(t *testing.T) {
	fs := &fakeFullscreen{active: true}
	k := NewKeeper(fs, &fakeWakeLock{}, silent{})
	ctx := context.Background()

	k.ScreenReset(ctx)
	assert.Equal(t, 0, fs.requests)

	fs.active = false
	k.ScreenReset(ctx)
	assert.Equal(t, 1, fs.requests)
}

func TestKeeperReacquiresWakeLockOnVisibility(t *testing.T) {
	wl := &fakeWakeLock{}
	k := NewKeeper(&fakeFullscreen{}, wl, silent{})
	ctx := context.Background()
	k.Start(ctx)

	k.Visible(ctx)
	assert.Equal(t, 1, wl.acquires, "already held")

	wl.held = false
	k.Visible(ctx)
	assert.Equal(t, 2, wl.acquires)
}

func TestKeeperSwallowsFailures(t *testing.T) {
	fs := &fakeFullscreen{err: errors.New("denied")}
	wl := &fakeWakeLock{err: errors.New("denied")}
	k := NewKeeper(fs, wl, silent{})
	ctx := context.Background()

	k.Start(ctx)
	k.ScreenReset(ctx)
	k.Visible(ctx)
	assert.Equal(t, 2, fs.requests)
	assert.Equal(t, 2, wl.acquires)
	assert.False(t, k.WakeLockHeld())
}

func TestKeeperDefaultsToNoop(t *testing.T) {
	k := NewKeeper(nil, nil, silent{})
	k.Start(context.Background())
	assert.True(t, k.WakeLockHeld())
	k.Close()
	assert.False(t, k.WakeLockHeld())
}

func TestCommandFullscreen(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, CommandFullscreen{}.RequestFullscreen(ctx))
	assert.False(t, CommandFullscreen{}.IsFullscreen(ctx))

	c := CommandFullscreen{Request: []string{"true"}, Check: []string{"false"}}
	assert.NoError(t, c.RequestFullscreen(ctx))
	assert.False(t, c.IsFullscreen(ctx))
}

func TestCommandWakeLockLifecycle(t *testing.T) {
	w := &CommandWakeLock{Argv: []string{"sleep", "30"}, Logger: silent{}}
	require.NoError(t, w.Acquire(context.Background()))
	assert.True(t, w.Held())
	require.NoError(t, w.Acquire(context.Background()), "second acquire is a no-op")

	require.NoError(t, w.Release())
	assert.False(t, w.Held())
}

func TestCommandWakeLockLossIsDetected(t *testing.T) {
	w := &CommandWakeLock{Argv: []string{"true"}, Logger: silent{}}
	require.NoError(t, w.Acquire(context.Background()))
	require.Eventually(t, func() bool { return !w.Held() }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, w.Release())
}
