// Package metrics exposes Prometheus collectors for the marketplace ledgers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "state",
			Name:      "transitions_total",
			Help:      "Total entity state transitions, by entity kind and resulting status.",
		},
		[]string{"entity", "status"},
	)

	disbursements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "escrow",
			Name:      "disbursed_total",
			Help:      "Total value disbursed from escrow, by leg (payout, fee, refund).",
		},
		[]string{"leg"},
	)

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "crosschain",
			Name:      "dispatches_total",
			Help:      "Cross-chain dispatch attempts, by transport path and outcome.",
		},
		[]string{"path", "outcome"},
	)
)

func init() {
	Registry.MustRegister(transitions, disbursements, dispatches)
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveTransition counts one entity state transition.
func ObserveTransition(entity, status string) {
	transitions.WithLabelValues(entity, status).Inc()
}

// ObserveDisbursement counts value leaving escrow.
func ObserveDisbursement(leg string, amount int64) {
	if amount > 0 {
		disbursements.WithLabelValues(leg).Add(float64(amount))
	}
}

// ObserveDispatch counts one transport attempt.
func ObserveDispatch(path, outcome string) {
	dispatches.WithLabelValues(path, outcome).Inc()
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
