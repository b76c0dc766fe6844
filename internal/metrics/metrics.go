package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PlanFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "build_plan_failed",
			Help: "Number of times plan construction has failed",
		},
		[]string{"root", "error_type"},
	)

	PlanCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "build_plan_count",
			Help: "Total number of times a plan has been constructed",
		},
	)

	PlanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "build_plan_duration_seconds",
			Help:    "Plan construction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
		[]string{"root"},
	)

	ConfigFilesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "build_config_files_loaded",
			Help: "Total number of per-package build configuration files parsed",
		},
	)
)

func PlanSucceeded(root string, start time.Time) {
	PlanCount.Inc()
	PlanDuration.WithLabelValues(root).Observe(time.Since(start).Seconds())
}
