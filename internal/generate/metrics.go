package generate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lowkeyllama",
			Subsystem: "generate",
			Name:      "requests_total",
			Help:      "Generation requests by outcome",
		},
		[]string{"outcome"},
	)

	generateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lowkeyllama",
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Time from request to final answer",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	streamLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lowkeyllama",
			Subsystem: "stream",
			Name:      "lines_total",
			Help:      "Backend stream lines by parse result",
		},
		[]string{"result"},
	)

	streamRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lowkeyllama",
			Subsystem: "stream",
			Name:      "recoveries_total",
			Help:      "Responses recovered by the fallback extractor, by strategy",
		},
		[]string{"strategy"},
	)
)

func init() {
	prometheus.MustRegister(generateTotal, generateDuration, streamLines, streamRecoveries)
}

const (
	outcomeOK          = "ok"
	outcomeFallback    = "fallback"
	outcomeIncomplete  = "incomplete"
	outcomeBadRequest  = "bad_request"
	outcomeNotFound    = "model_not_found"
	outcomeUnavailable = "unavailable"
	outcomeTimeout     = "timeout"
	outcomeFailed      = "failed"
	outcomeCanceled    = "canceled"
)

func observe(outcome string, start time.Time) {
	generateTotal.WithLabelValues(outcome).Inc()
	generateDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
