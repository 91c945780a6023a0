// Package services – payment pipeline metrics.
//
// Domain-level Prometheus collectors, complementing the HTTP-level metrics in
// the middleware package. Labels are kept to small closed sets (payment
// status, reconciliation trigger) to bound cardinality.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// paymentsInitiated counts ledger rows created by the initiation path.
	paymentsInitiated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total number of payment initiations that created a ledger row.",
		},
	)

	// paymentsFinalized counts terminal transitions by outcome and by which
	// path won the race (webhook or verify). No-op repeats are not counted.
	paymentsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_finalized_total",
			Help: "Total number of pending→terminal payment transitions.",
		},
		[]string{"status", "trigger"},
	)

	// enrollmentsGranted counts entitlements created by completed payments.
	enrollmentsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_granted_total",
			Help: "Total number of course enrollments granted by payments.",
		},
	)
)

func init() {
	prometheus.MustRegister(paymentsInitiated, paymentsFinalized, enrollmentsGranted)
}
