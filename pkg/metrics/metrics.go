package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Builder metrics (C6), dimensioned by (item_type, target_count) per
	// the fdb_multi_indexer_* convention.
	ItemsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdb_multi_indexer_items_indexed_total",
			Help: "Total number of items processed by the online index builder",
		},
		[]string{"item_type", "target_count"},
	)

	BatchesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdb_multi_indexer_batches_processed_total",
			Help: "Total number of batches processed by the online index builder",
		},
		[]string{"item_type", "target_count"},
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fdb_multi_indexer_batch_duration_seconds",
			Help:    "Duration of a single index builder batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"item_type", "target_count"},
	)

	BuilderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdb_multi_indexer_errors_total",
			Help: "Total number of errors encountered by the online index builder",
		},
		[]string{"item_type", "target_count"},
	)

	// Transaction orchestrator metrics (C8).
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estore_transactions_total",
			Help: "Total number of transactions by terminal result",
		},
		[]string{"result"}, // committed | failed | cancelled
	)

	TransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estore_transaction_duration_seconds",
			Help:    "Duration of a transaction save pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Read-version cache metrics (C7).
	ReadVersionCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estore_readversion_cache_hits_total",
			Help: "Total number of read-version cache hits",
		},
	)

	ReadVersionCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estore_readversion_cache_misses_total",
			Help: "Total number of read-version cache misses",
		},
	)

	// Uniqueness violations recorded by the index dispatcher (C4/I5).
	UniquenessViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estore_uniqueness_violations_total",
			Help: "Total number of uniqueness violations recorded per index",
		},
		[]string{"index"},
	)

	// Gauges sampled periodically by Collector rather than updated
	// inline by the component that owns the underlying state.
	ReadVersionCacheHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "estore_readversion_cache_hit_ratio",
			Help: "Read-version cache hit ratio observed since the process started",
		},
	)

	IndexBuilderPendingRanges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fdb_multi_indexer_pending_ranges",
			Help: "Number of unprocessed key ranges remaining in an online index build",
		},
		[]string{"item_type", "target_count"},
	)
)

func init() {
	prometheus.MustRegister(
		ItemsIndexedTotal,
		BatchesProcessedTotal,
		BatchDuration,
		BuilderErrorsTotal,
		TransactionsTotal,
		TransactionDuration,
		ReadVersionCacheHitsTotal,
		ReadVersionCacheMissesTotal,
		UniquenessViolationsTotal,
		ReadVersionCacheHitRatio,
		IndexBuilderPendingRanges,
	)
}

// Handler returns the Prometheus HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
