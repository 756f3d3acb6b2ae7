// Package metrics registers the Prometheus metrics used by the routing
// layer. Import this package from the server entry point so all metrics are
// registered before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SelectionsTotal counts routing decisions labelled by provider, model,
	// and outcome ("selected", "no_eligible", "mismatch", "unknown_model").
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_selections_total",
			Help: "Total routing selections by primary provider, model, and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	// SelectionDuration observes time spent inside the selection engine.
	SelectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "router_selection_duration_seconds",
			Help:    "Time spent computing a routing decision.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		},
	)

	// DispatchAttempts counts candidate invocations by provider and result
	// classification ("success", "transient", "fatal", "skipped").
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_dispatch_attempts_total",
			Help: "Total dispatch attempts by provider and classification.",
		},
		[]string{"provider", "classification"},
	)

	// CircuitState tracks per-provider circuit breaker state as a gauge:
	// 0 = closed, 1 = open, 2 = half_open.
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "router_circuit_state",
			Help: "Circuit breaker state per provider (0=closed 1=open 2=half_open).",
		},
		[]string{"provider"},
	)

	// EstimatedCostUSD accumulates the estimated cost of selected primaries.
	EstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_estimated_cost_usd_total",
			Help: "Accumulated estimated cost of selected candidates in USD.",
		},
		[]string{"provider", "model"},
	)

	// BootstrapSteps counts executed (not short-circuited) bootstrap steps.
	BootstrapSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_bootstrap_steps_total",
			Help: "Bootstrap initialization steps actually executed.",
		},
		[]string{"step"},
	)
)
