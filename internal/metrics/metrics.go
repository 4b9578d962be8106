// Package metrics exports the pipeline's Prometheus collectors: stage
// timings, strategy success rate, conflict counts, and resource level.
// Collectors are registered against a caller-supplied registry rather than
// the global default, so concurrent tests never collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every gauge/counter/histogram the pipeline touches.
type Collectors struct {
	StageDuration      *prometheus.HistogramVec
	StrategySuccess    *prometheus.CounterVec
	ConflictCount      *prometheus.GaugeVec
	ResourceLevelGauge prometheus.Gauge
	DeferredSessions   prometheus.Gauge
	GAFitness          prometheus.Gauge
	StagePanics        *prometheus.CounterVec
}

// New constructs collectors and registers them against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timetabled",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"stage"}),
		StrategySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetabled",
			Name:      "cpsat_strategy_total",
			Help:      "CP-SAT strategy ladder outcomes by strategy name and result.",
		}, []string{"strategy", "result"}),
		ConflictCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "timetabled",
			Name:      "conflict_count",
			Help:      "Residual conflicts in the current assignment by kind.",
		}, []string{"kind"}),
		ResourceLevelGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetabled",
			Name:      "resource_level",
			Help:      "Current resource monitor level (0=normal .. 3=emergency).",
		}),
		DeferredSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetabled",
			Name:      "deferred_sessions",
			Help:      "Sessions left unassigned after greedy fallback.",
		}),
		GAFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetabled",
			Name:      "ga_best_fitness",
			Help:      "Best fitness score across all GA islands.",
		}),
		StagePanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetabled",
			Name:      "stage_panics_total",
			Help:      "Recovered panics per stage and per-unit-of-work (cluster/island/episode).",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		c.StageDuration,
		c.StrategySuccess,
		c.ConflictCount,
		c.ResourceLevelGauge,
		c.DeferredSessions,
		c.GAFitness,
		c.StagePanics,
	)
	return c
}

// ObserveStage records how long a stage took.
func (c *Collectors) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordPanic increments the recovered-panic counter for stage.
func (c *Collectors) RecordPanic(stage string) {
	if c == nil {
		return
	}
	c.StagePanics.WithLabelValues(stage).Inc()
}

// ResourceLevelToFloat converts the resource monitor's level to the numeric
// scale the gauge exports.
func ResourceLevelToFloat(level string) float64 {
	switch level {
	case "warn":
		return 1
	case "critical":
		return 2
	case "emergency":
		return 3
	default:
		return 0
	}
}
