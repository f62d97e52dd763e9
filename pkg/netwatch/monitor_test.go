package netwatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
)

type silent struct{}

func (silent) Printf(string, ...any) {}

type endpoint string

func (e endpoint) APIURL(context.Context) string { return string(e) }

type switchChecker struct {
	mu    sync.Mutex
	down  bool
	calls int
}

func (s *switchChecker) Health(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.down {
		return errors.New("unreachable")
	}
	return nil
}

func (s *switchChecker) set(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *switchChecker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestProbeTransitions(t *testing.T) {
	checker := &switchChecker{}
	var kicks int32
	m := New(Options{
		Checker:  checker,
		Endpoint: endpoint("http://collector"),
		OnOnline: func() { atomic.AddInt32(&kicks, 1) },
		Logger:   silent{},
	})
	ctx := context.Background()

	assert.True(t, m.Probe(ctx, false))
	assert.Equal(t, int32(0), kicks, "startup is not a reconnect")

	checker.set(true)
	assert.False(t, m.Probe(ctx, false))
	assert.False(t, m.Online())

	checker.set(false)
	assert.True(t, m.Probe(ctx, false))
	assert.True(t, m.Online())
	assert.Equal(t, int32(1), kicks)

	m.Probe(ctx, false)
	assert.Equal(t, int32(1), kicks)
	m.Probe(ctx, true)
	assert.Equal(t, int32(2), kicks)
}

func TestSignalIsRateLimited(t *testing.T) {
	m := New(Options{
		Checker:  &switchChecker{},
		Endpoint: endpoint("http://collector"),
		Limiter:  rate.NewLimiter(rate.Every(time.Hour), 2),
		Logger:   silent{},
	})
	assert.True(t, m.Signal())
	assert.True(t, m.Signal())
	assert.False(t, m.Signal())
}

func TestRunPollsAndHonoursSignals(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	checker := &switchChecker{}
	kicked := make(chan struct{}, 4)
	m := New(Options{
		Checker:  checker,
		Endpoint: endpoint("http://collector"),
		Clock:    clk,
		Interval: 10 * time.Second,
		OnOnline: func() { kicked <- struct{}{} },
		Logger:   silent{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	require.Eventually(t, func() bool { return checker.count() == 1 }, time.Second, time.Millisecond)

	checker.set(true)
	clk.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, time.Millisecond)

	checker.set(false)
	require.True(t, m.Signal())
	select {
	case <-kicked:
	case <-time.After(time.Second):
		t.Fatalf("signal did not trigger a reconnect")
	}
	assert.True(t, m.Online())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
