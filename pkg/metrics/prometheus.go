package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quotesProcessed *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	fusionRuns      prometheus.Counter
	fusedEvents     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		quotesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfuse_quotes_processed_total",
				Help: "Total quotes fetched and stored per symbol",
			},
			[]string{"symbol"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfuse_signals_total",
				Help: "Total anomaly signals emitted by type",
			},
			[]string{"type"},
		),
		fusionRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signalfuse_fusion_runs_total",
				Help: "Total fusion cycles executed",
			},
		),
		fusedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfuse_fused_events_total",
				Help: "Total fused events produced by match type",
			},
			[]string{"match"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordQuoteProcessed records one stored quote for a symbol.
func (r *Recorder) RecordQuoteProcessed(symbol string) {
	r.quotesProcessed.WithLabelValues(symbol).Inc()
}

// RecordSignal records one emitted anomaly signal.
func (r *Recorder) RecordSignal(signalType string) {
	r.signalsTotal.WithLabelValues(signalType).Inc()
}

// RecordFusionRun records one fusion cycle.
func (r *Recorder) RecordFusionRun() {
	r.fusionRuns.Inc()
}

// RecordFusedEvent records one produced fused event.
func (r *Recorder) RecordFusedEvent(matchType string) {
	r.fusedEvents.WithLabelValues(matchType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
