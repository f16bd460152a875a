package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for analysis runs.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	PhaseDuration   *prometheus.HistogramVec
	ChunksTotal     prometheus.Counter
	OracleCalls     *prometheus.CounterVec
	TasksTotal      *prometheus.CounterVec
	GuardRejections prometheus.Counter
}

// NewMetrics registers the collectors with the default registry once and
// returns the shared set.
//
//   - meeting_insights_runs_total{outcome}
//   - meeting_insights_run_duration_seconds
//   - meeting_insights_phase_duration_seconds{phase}
//   - meeting_insights_chunks_total
//   - meeting_insights_oracle_calls_total{result}
//   - meeting_insights_tasks_total{assignment}
//   - meeting_insights_guard_rejections_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meeting_insights_runs_total",
					Help: "Analysis runs by outcome",
				},
				[]string{"outcome"}, // "ok", "invalid_input", "failed", "cancelled"
			),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "meeting_insights_run_duration_seconds",
				Help:    "Wall time of a full analysis run",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			}),
			PhaseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "meeting_insights_phase_duration_seconds",
					Help:    "Wall time per pipeline phase",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"phase"},
			),
			ChunksTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "meeting_insights_chunks_total",
				Help: "Transcript chunks sent for extraction",
			}),
			OracleCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meeting_insights_oracle_calls_total",
					Help: "Oracle calls by result",
				},
				[]string{"result"}, // "ok", "retry", "error"
			),
			TasksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "meeting_insights_tasks_total",
					Help: "Resolved tasks by owner assignment",
				},
				[]string{"assignment"}, // "assigned", "unassigned"
			),
			GuardRejections: promauto.NewCounter(prometheus.CounterOpts{
				Name: "meeting_insights_guard_rejections_total",
				Help: "Re-analysis requests rejected by the run guard",
			}),
		}
	})
	return globalMetrics
}
