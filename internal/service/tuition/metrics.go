package tuition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var paymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tuition",
	Name:      "payments_recorded_total",
	Help:      "Payments accepted against tuition ledgers",
})
