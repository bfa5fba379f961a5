// Package metrics registers the pipeline counters exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartattend_scans_started_total",
		Help: "Recognition scans started, by mode.",
	}, []string{"mode"})

	ScansCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartattend_scans_cancelled_total",
		Help: "Recognition scans cancelled by the operator.",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartattend_frames_processed_total",
		Help: "Captured frames fed through a resolver.",
	})

	Matches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartattend_matches_total",
		Help: "Successful identity resolutions, by mode.",
	}, []string{"mode"})

	LedgerAppends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartattend_ledger_appends_total",
		Help: "Attendance records appended to the ledger.",
	})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartattend_notify_failures_total",
		Help: "Notification dispatches that failed.",
	})
)
