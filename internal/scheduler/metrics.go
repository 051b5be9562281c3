package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindd_scheduler_ticks_total",
			Help: "Scheduler ticks by outcome (scanned, debounced, no_settings, aborted).",
		},
		[]string{"outcome"},
	)
	occasionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindd_scheduler_occasions_total",
			Help: "Reminder occasions handled by the scheduler, by result.",
		},
		[]string{"result"},
	)
	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remindd_scheduler_tick_duration_seconds",
			Help:    "Duration of scanning ticks.",
			Buckets: prometheus.DefBuckets,
		},
	)
	sweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindd_scheduler_swept_total",
			Help: "Occasion records removed by the retention sweep.",
		},
	)
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindd_dedup_cache_entries",
			Help: "Entries in the in-process occasion cache.",
		},
	)
)
