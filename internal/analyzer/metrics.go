package analyzer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for comparisonsTotal.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeTimeout  = "timeout"
	outcomeCanceled = "canceled"
)

var (
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_comparisons_total",
		Help: "Archive comparisons by final outcome",
	}, []string{"outcome"})

	comparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_comparison_duration_seconds",
		Help:    "Duration of single comparison attempts",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	inflightComparisons = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "analyzer_inflight_comparisons",
		Help: "Comparison subprocesses currently running",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_retries_total",
		Help: "Comparison attempts retried after a retryable failure",
	})
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrCanceled):
		return outcomeCanceled
	default:
		return outcomeFailure
	}
}
