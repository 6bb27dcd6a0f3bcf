// Package metrics exposes Prometheus counters for the auto-reconcile
// cron. Registration uses promauto on the default registry so any
// embedding process can scrape them alongside its own metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesChecked counts statement lines evaluated by the cron,
	// whether or not they reconciled.
	LinesChecked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reconciler",
		Subsystem: "cron",
		Name:      "lines_checked_total",
		Help:      "Statement lines evaluated by the auto-reconcile cron.",
	})

	// LinesReconciled counts statement lines auto-reconciled.
	LinesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reconciler",
		Subsystem: "cron",
		Name:      "lines_reconciled_total",
		Help:      "Statement lines successfully auto-reconciled.",
	})

	// Retriggers counts self-retriggers scheduled after a productive
	// batch that left work behind.
	Retriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reconciler",
		Subsystem: "cron",
		Name:      "retriggers_total",
		Help:      "Cron self-retriggers scheduled for remaining work.",
	})

	// RunDuration observes full cron invocation durations.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reconciler",
		Subsystem: "cron",
		Name:      "run_duration_seconds",
		Help:      "Duration of one auto-reconcile cron invocation.",
		Buckets:   prometheus.DefBuckets,
	})
)
