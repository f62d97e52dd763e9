// Package alert warns operators when a kiosk cannot drain its delivery
// queue for long.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
	"github.com/dkalashnik/kiosk-survey/pkg/ports/alertport"
	"github.com/dkalashnik/kiosk-survey/pkg/queue"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

const (
	DefaultThreshold = 100
	DefaultCooldown  = time.Hour
)

type BacklogOptions struct {
	Notifier  alertport.Notifier
	Threshold int
	Cooldown  time.Duration
	Clock     clock.Clock
	Kind      string
	Identity  record.IdentitySource
	Logger    log.Printer
}

// Backlog sends one alert per cooldown while the queue stays at or above
// the threshold after a drain.
type Backlog struct {
	opts   BacklogOptions
	logger log.Printer

	mu       sync.Mutex
	lastSent time.Time
}

func NewBacklog(opts BacklogOptions) *Backlog {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	logger := log.OrDefault(opts.Logger)
	if opts.Notifier == nil {
		opts.Notifier = &LogNotifier{Logger: logger}
	}
	return &Backlog{opts: opts, logger: logger}
}

// Observe has the queue.AfterDrainFunc signature.
func (b *Backlog) Observe(ctx context.Context, result queue.DrainResult) {
	if b.opts.Threshold < 0 || result.Remaining < b.opts.Threshold {
		return
	}

	b.mu.Lock()
	now := b.opts.Clock.Now()
	if !b.lastSent.IsZero() && now.Sub(b.lastSent) < b.opts.Cooldown {
		b.mu.Unlock()
		return
	}
	b.lastSent = now
	b.mu.Unlock()

	text := b.message(ctx, result)
	if _, err := b.opts.Notifier.Notify(ctx, text); err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		log.Errorf(b.logger, "[alert.Backlog] notify failed: %v", err)
		if alertport.IsCode(err, "rate_limited") {
			return
		}
		b.mu.Lock()
		b.lastSent = time.Time{}
		b.mu.Unlock()
		return
	}
	metrics.AlertsTotal.WithLabelValues("sent").Inc()
}

func (b *Backlog) message(ctx context.Context, result queue.DrainResult) string {
	site, device := "?", "?"
	if b.opts.Identity != nil {
		site, device = b.opts.Identity.Identity(ctx)
	}
	return fmt.Sprintf(
		"Kiosco %s (%s, %s): %d encuestas pendientes de envío. Último intento: %d de %d entregadas.",
		device, b.opts.Kind, site, result.Remaining, result.Delivered, result.Attempted,
	)
}

// LogNotifier writes alerts to the log when no chat is configured.
type LogNotifier struct {
	Logger log.Printer
}

var _ alertport.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Notify(_ context.Context, text string) (alertport.Alert, error) {
	log.OrDefault(n.Logger).Printf("[alert] %s", text)
	return alertport.Alert{Transport: "log", Text: text, SentAt: time.Now()}, nil
}
