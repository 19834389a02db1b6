package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors. The state gauge uses the State values: 0 closed, 1 open, 2 half-open.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cbhub",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Current breaker state per upstream: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cbhub",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Breaker state transitions per upstream.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cbhub",
		Subsystem: "breaker",
		Name:      "open_total",
		Help:      "Times a breaker opened.",
	}, []string{"target"})
	BreakerRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cbhub",
		Subsystem: "breaker",
		Name:      "rejected_total",
		Help:      "Calls refused without reaching the upstream.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, BreakerRejectedTotal)
}
