package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Record/document metrics
	RecordUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polydb_record_upserts_total",
			Help: "Total number of record upserts by table",
		},
		[]string{"table"},
	)

	RecordDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polydb_record_deletes_total",
			Help: "Total number of record deletes by table",
		},
		[]string{"table"},
	)

	RecordUpsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polydb_record_upsert_duration_seconds",
			Help:    "Time taken to upsert a record, including index maintenance, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	RecordDeleteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polydb_record_delete_duration_seconds",
			Help:    "Time taken to delete a record, including cascade and index cleanup, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	// Secondary index maintenance metrics
	IndexMaintainTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polydb_index_maintain_total",
			Help: "Total number of secondary index maintenance operations by index kind and op",
		},
		[]string{"kind", "op"},
	)

	IndexMaintainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polydb_index_maintain_duration_seconds",
			Help:    "Time taken to apply one secondary index maintenance operation, by index kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// M-Tree vector index metrics
	MTreeVectorsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polydb_mtree_vectors_indexed_total",
			Help: "Total number of vectors inserted into M-Tree indexes",
		},
	)

	MTreeSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polydb_mtree_search_duration_seconds",
			Help:    "Time taken for a nearest-neighbor M-Tree search",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Full-text index metrics
	FullTextDocumentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polydb_fulltext_documents_indexed_total",
			Help: "Total number of documents tokenized and indexed into full-text indexes",
		},
	)

	FullTextQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polydb_fulltext_query_duration_seconds",
			Help:    "Time taken for a BM25-ranked full-text query",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Change-feed metrics
	ChangeFeedEntriesBuffered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polydb_changefeed_entries_buffered_total",
			Help: "Total number of record-change entries buffered for the change feed",
		},
	)

	ChangeFeedFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polydb_changefeed_flush_duration_seconds",
			Help:    "Time taken to flush a transaction's buffered change-feed entries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transaction metrics
	TxCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polydb_tx_commits_total",
			Help: "Total number of committed transactions",
		},
	)

	TxCancelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "polydb_tx_cancels_total",
			Help: "Total number of cancelled transactions",
		},
	)

	TxCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polydb_tx_commit_duration_seconds",
			Help:    "Time taken to commit a transaction, including change-feed flush",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Streaming executor metrics
	ExecBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polydb_exec_batch_size",
			Help:    "Row count of batches passed between streaming executor operators",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
		},
	)

	ExecOperatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polydb_exec_operator_duration_seconds",
			Help:    "Time taken for one Next() call on a streaming executor operator, by operator kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operator"},
	)
)

func init() {
	prometheus.MustRegister(RecordUpsertsTotal)
	prometheus.MustRegister(RecordDeletesTotal)
	prometheus.MustRegister(RecordUpsertDuration)
	prometheus.MustRegister(RecordDeleteDuration)

	prometheus.MustRegister(IndexMaintainTotal)
	prometheus.MustRegister(IndexMaintainDuration)

	prometheus.MustRegister(MTreeVectorsIndexed)
	prometheus.MustRegister(MTreeSearchDuration)

	prometheus.MustRegister(FullTextDocumentsIndexed)
	prometheus.MustRegister(FullTextQueryDuration)

	prometheus.MustRegister(ChangeFeedEntriesBuffered)
	prometheus.MustRegister(ChangeFeedFlushDuration)

	prometheus.MustRegister(TxCommitsTotal)
	prometheus.MustRegister(TxCancelsTotal)
	prometheus.MustRegister(TxCommitDuration)

	prometheus.MustRegister(ExecBatchSize)
	prometheus.MustRegister(ExecOperatorDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
