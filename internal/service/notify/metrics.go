package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tuition"

var (
	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_runs_total",
		Help:      "Number of notification sweeps started.",
	})
	sweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_failures_total",
		Help:      "Number of notification sweeps that ended with an error.",
	})
	notificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "notifications_emitted_total",
		Help:      "Notifications written by the sweep, by type.",
	}, []string{"type"})
	ledgersFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ledgers_flagged_overdue_total",
		Help:      "Ledgers flipped to Overdue by the sweep.",
	})
)
