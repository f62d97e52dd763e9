package queue

import (
	"context"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// DefaultDrainInterval is the periodic drain cadence.
const DefaultDrainInterval = 30 * time.Second

// Drainer is the part of Queue the runner needs.
type Drainer interface {
	Drain(ctx context.Context) (DrainResult, error)
}

// AfterDrainFunc observes each completed pass.
type AfterDrainFunc func(ctx context.Context, result DrainResult)

// Runner drains the queue at startup, on every tick and whenever Kick is
// called (reconnect).
type Runner struct {
	queue      Drainer
	clock      clock.Clock
	interval   time.Duration
	kick       chan struct{}
	afterDrain AfterDrainFunc
	logger     log.Printer
}

func NewRunner(q Drainer, clk clock.Clock, interval time.Duration, afterDrain AfterDrainFunc, logger log.Printer) *Runner {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &Runner{
		queue:      q,
		clock:      clk,
		interval:   interval,
		kick:       make(chan struct{}, 1),
		afterDrain: afterDrain,
		logger:     log.OrDefault(logger),
	}
}

// Kick requests a drain without blocking. Kicks arriving while one is
// pending collapse into it.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.drainOnce(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drainOnce(ctx, "timer")
		case <-r.kick:
			r.drainOnce(ctx, "reconnect")
		}
	}
}

func (r *Runner) drainOnce(ctx context.Context, trigger string) {
	result, err := r.queue.Drain(ctx)
	if err != nil {
		log.Errorf(r.logger, "[queue.Runner] %s drain failed: %v", trigger, err)
		return
	}
	if r.afterDrain != nil {
		r.afterDrain(ctx, result)
	}
}
