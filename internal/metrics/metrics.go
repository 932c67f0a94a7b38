package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DistributionsCalculatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewardflow_distributions_calculated_total",
			Help: "Total number of monthly distributions calculated",
		},
	)

	WindowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardflow_window_transitions_total",
			Help: "Total number of collection window state transitions won",
		},
		[]string{"to"},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardflow_claims_total",
			Help: "Total number of holder claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	BurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardflow_burns_total",
			Help: "Total number of burn executions by outcome",
		},
		[]string{"outcome"},
	)

	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardflow_scheduler_ticks_total",
			Help: "Total number of window scheduler ticks",
		},
		[]string{"status"},
	)

	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rewardflow_scheduler_tick_duration_seconds",
			Help:    "Duration of window scheduler ticks",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
