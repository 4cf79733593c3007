package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the replay and ingest paths.
type Metrics struct {
	RecordsReplayed *prometheus.CounterVec
	SequenceGaps    *prometheus.CounterVec
	BarsEmitted     *prometheus.CounterVec
	ReplaySeconds   *prometheus.HistogramVec

	EventsIngested *prometheus.CounterVec
	FilesFinalized *prometheus.CounterVec
	FileRecords    prometheus.Histogram

	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RecordsReplayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_replay_records_total",
			Help: "Total number of records applied during replay",
		}, []string{"symbol"}),

		SequenceGaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_replay_sequence_gaps_total",
			Help: "Total number of sequence gaps seen during replay",
		}, []string{"symbol"}),

		BarsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_replay_bars_total",
			Help: "Total number of closed candle bars",
		}, []string{"symbol", "interval"}),

		ReplaySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tickstore_replay_duration_seconds",
			Help:    "Wall time of one replay session",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"symbol"}),

		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_ingest_events_total",
			Help: "Total number of raw events accepted by ingest",
		}, []string{"symbol"}),

		FilesFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_ingest_files_finalized_total",
			Help: "Total number of DTF files written and announced",
		}, []string{"symbol"}),

		FileRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickstore_ingest_file_records",
			Help:    "Records per finalized DTF file",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstore_errors_total",
			Help: "Total number of errors by component and type",
		}, []string{"component", "error_type"}),
	}
}

// RecordRecords adds n applied records for symbol.
func (m *Metrics) RecordRecords(symbol string, n int) {
	m.RecordsReplayed.WithLabelValues(symbol).Add(float64(n))
}

// RecordGap counts one sequence gap.
func (m *Metrics) RecordGap(symbol string) {
	m.SequenceGaps.WithLabelValues(symbol).Inc()
}

// RecordBar counts one closed bar.
func (m *Metrics) RecordBar(symbol, interval string) {
	m.BarsEmitted.WithLabelValues(symbol, interval).Inc()
}

// RecordReplayDuration observes the wall time of a session.
func (m *Metrics) RecordReplayDuration(symbol string, d time.Duration) {
	m.ReplaySeconds.WithLabelValues(symbol).Observe(d.Seconds())
}

// RecordEventIngested counts one accepted raw event.
func (m *Metrics) RecordEventIngested(symbol string) {
	m.EventsIngested.WithLabelValues(symbol).Inc()
}

// RecordFileFinalized counts one finalized file of records records.
func (m *Metrics) RecordFileFinalized(symbol string, records int) {
	m.FilesFinalized.WithLabelValues(symbol).Inc()
	m.FileRecords.Observe(float64(records))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
