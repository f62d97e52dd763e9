// Package netwatch tracks collector reachability and turns regained
// connectivity into reconnect signals for the delivery queue.
package netwatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
)

const DefaultInterval = 10 * time.Second

// HealthChecker probes the collector.
type HealthChecker interface {
	Health(ctx context.Context, baseURL string) error
}

// EndpointSource resolves the collector base URL at probe time.
type EndpointSource interface {
	APIURL(ctx context.Context) string
}

type Options struct {
	Checker  HealthChecker
	Endpoint EndpointSource
	Clock    clock.Clock
	Interval time.Duration
	// OnOnline runs after a successful probe that follows an offline one,
	// and after every successful probe requested through Signal.
	OnOnline func()
	// Limiter bounds how often Signal may force a probe.
	Limiter *rate.Limiter
	Logger  log.Printer
}

// Monitor polls the collector health endpoint. The state starts optimistic
// (online) so startup does not count as a reconnect.
type Monitor struct {
	opts   Options
	signal chan struct{}
	logger log.Printer

	mu     sync.RWMutex
	online bool
}

func New(opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(2*time.Second), 3)
	}
	metrics.ConnectivityOnline.Set(1)
	return &Monitor{
		opts:   opts,
		signal: make(chan struct{}, 1),
		logger: log.OrDefault(opts.Logger),
		online: true,
	}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Signal reports that the front-end saw connectivity return. It forces a
// probe unless signals are arriving faster than the limiter allows.
func (m *Monitor) Signal() bool {
	if !m.opts.Limiter.Allow() {
		log.Debugf(m.logger, "[netwatch] online signal dropped by rate limit")
		return false
	}
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// Run blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.opts.Clock.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Probe(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx, false)
		case <-m.signal:
			m.Probe(ctx, true)
		}
	}
}

// Probe checks the collector once and updates the state. forced makes a
// success fire OnOnline even if the kiosk was already online.
func (m *Monitor) Probe(ctx context.Context, forced bool) bool {
	err := m.opts.Checker.Health(ctx, m.opts.Endpoint.APIURL(ctx))
	now := err == nil

	m.mu.Lock()
	was := m.online
	m.online = now
	m.mu.Unlock()
	metrics.ConnectivityOnline.Set(metrics.BoolGauge(now))

	switch {
	case was && !now:
		log.Warnf(m.logger, "[netwatch] collector unreachable: %v", err)
	case !was && now:
		m.logger.Printf("[netwatch] collector reachable again")
	}
	if now && (!was || forced) && m.opts.OnOnline != nil {
		m.opts.OnOnline()
	}
	return now
}
