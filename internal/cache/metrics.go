package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by outcome (hot, warm, miss)",
		},
		[]string{"outcome"},
	)

	storesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "cache",
			Name:      "stores_total",
			Help:      "Cache store attempts by outcome (stored, rejected)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal, storesTotal)
}
