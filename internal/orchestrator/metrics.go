package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	tierLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "orchestrator",
			Name:      "tier_loads_total",
			Help:      "Total successful tier instance loads",
		},
		[]string{"tier"},
	)

	tierLoadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "orchestrator",
			Name:      "tier_load_failures_total",
			Help:      "Total failed tier instance loads",
		},
		[]string{"tier", "reason"},
	)

	tierUnloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "orchestrator",
			Name:      "tier_unloads_total",
			Help:      "Total tier instance unloads",
		},
		[]string{"tier", "reason"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "orchestrator",
			Name:      "fallback_total",
			Help:      "Total fallback attempts onto a cheaper tier",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(tierLoadsTotal, tierLoadFailuresTotal, tierUnloadsTotal, fallbackTotal)
}
