// Package metrics holds the kiosk's Prometheus collectors, exposed on
// /metrics by the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth is the number of records waiting for delivery.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_queue_depth",
		Help: "Survey records waiting in the delivery queue",
	})

	// QueueEvicted counts records dropped because the queue hit its cap.
	QueueEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_queue_evicted_total",
		Help: "Queued records evicted by the capacity limit",
	})

	// SubmissionsTotal counts submission outcomes (delivered, queued, lost).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_submissions_total",
		Help: "Survey submissions by outcome",
	}, []string{"outcome"})

	DrainsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_queue_drains_total",
		Help: "Delivery queue drain passes",
	})

	// DrainEntries counts per-entry drain results (delivered, failed).
	DrainEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_queue_drain_entries_total",
		Help: "Queued records attempted during drains by result",
	}, []string{"result"})

	// TapsTotal counts operator input by guard result.
	TapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_taps_total",
		Help: "Operator taps by guard result",
	}, []string{"result"})

	ScreensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_screens_total",
		Help: "Screen entries by screen",
	}, []string{"screen"})

	ConnectivityOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_connectivity_online",
		Help: "1 when the collector health check last succeeded",
	})

	// AlertsTotal counts backlog alerts by result (sent, failed).
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_alerts_total",
		Help: "Backlog alerts by result",
	}, []string{"result"})
)

// BoolGauge converts a boolean to a gauge value.
func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
