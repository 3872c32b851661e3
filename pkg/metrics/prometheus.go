package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	queries           *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	rowsReturned      *prometheus.HistogramVec
	streamConnections prometheus.Gauge
	streamInvocations *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		queries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barpulse_queries_total",
				Help: "Total number of bar queries served",
			},
			[]string{"mode", "level"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barpulse_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind"},
		),
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barpulse_query_duration_seconds",
				Help:    "Duration of bar queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		rowsReturned: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barpulse_rows_returned",
				Help:    "Rows returned per query",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"mode"},
		),
		streamConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "barpulse_stream_connections",
				Help: "Current number of open streaming connections",
			},
		),
		streamInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barpulse_stream_invocations_total",
				Help: "Total streaming tool invocations by outcome",
			},
			[]string{"tool", "outcome"},
		),
	}
}

// RecordQuery records a served query.
func (r *Recorder) RecordQuery(mode, level string) {
	r.queries.WithLabelValues(mode, level).Inc()
}

// RecordError records an error occurrence by kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordQueryDuration records query latency in seconds.
func (r *Recorder) RecordQueryDuration(mode string, seconds float64) {
	r.queryDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordRowsReturned records the result set size for a query.
func (r *Recorder) RecordRowsReturned(mode string, rows int) {
	r.rowsReturned.WithLabelValues(mode).Observe(float64(rows))
}

// StreamConnectionOpened increments the open connection gauge.
func (r *Recorder) StreamConnectionOpened() {
	r.streamConnections.Inc()
}

// StreamConnectionClosed decrements the open connection gauge.
func (r *Recorder) StreamConnectionClosed() {
	r.streamConnections.Dec()
}

// RecordStreamInvocation records a tool invocation outcome.
func (r *Recorder) RecordStreamInvocation(tool, outcome string) {
	r.streamInvocations.WithLabelValues(tool, outcome).Inc()
}
