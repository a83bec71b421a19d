package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inferd_health_check_failures_total",
		Help: "Failed health probe runs by component.",
	}, []string{"component"})

	healAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inferd_health_heal_attempts_total",
		Help: "Auto-remediation attempts by component.",
	}, []string{"component"})
)
