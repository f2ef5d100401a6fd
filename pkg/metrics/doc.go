/*
Package metrics provides Prometheus metrics collection and exposition for the
document engine.

The metrics package defines and registers all engine metrics using the
Prometheus client library, providing observability into record throughput,
secondary index maintenance, vector and full-text index activity, change-feed
flushes, transaction outcomes, and streaming executor operator cost. Metrics
are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Counter: Monotonic increases (upserts)     │          │
	│  │  Histogram: Distributions (latency, size)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Record: upserts, deletes, duration         │          │
	│  │  Index: maintenance count and duration      │          │
	│  │  M-Tree: vectors indexed, search duration   │          │
	│  │  Full-text: documents indexed, query time   │          │
	│  │  Change feed: entries buffered, flush time  │          │
	│  │  Transaction: commits, cancels, duration    │          │
	│  │  Executor: operator batch size and duration │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Counter Metrics:
  - Monotonically increasing value
  - Examples: record upserts total, vectors indexed total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: record upsert duration, index maintain duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Record Metrics:

polydb_record_upserts_total{table}:
  - Type: Counter
  - Description: Total record upserts by table

polydb_record_deletes_total{table}:
  - Type: Counter
  - Description: Total record deletes by table

polydb_record_upsert_duration_seconds{table}:
  - Type: Histogram
  - Description: Time to upsert a record, including index maintenance

polydb_record_delete_duration_seconds{table}:
  - Type: Histogram
  - Description: Time to delete a record, including cascade and index cleanup

Index Maintenance Metrics:

polydb_index_maintain_total{kind, op}:
  - Type: Counter
  - Description: Total secondary index maintenance operations by index kind
    (standard, unique, mtree, fulltext) and op (upsert, delete)

polydb_index_maintain_duration_seconds{kind}:
  - Type: Histogram
  - Description: Time to apply one secondary index maintenance operation

M-Tree Metrics:

polydb_mtree_vectors_indexed_total:
  - Type: Counter
  - Description: Total vectors inserted into M-Tree indexes

polydb_mtree_search_duration_seconds:
  - Type: Histogram
  - Description: Time for a nearest-neighbor M-Tree search

Full-text Metrics:

polydb_fulltext_documents_indexed_total:
  - Type: Counter
  - Description: Total documents tokenized and indexed into full-text indexes

polydb_fulltext_query_duration_seconds:
  - Type: Histogram
  - Description: Time for a BM25-ranked full-text query

Change-feed Metrics:

polydb_changefeed_entries_buffered_total:
  - Type: Counter
  - Description: Total record-change entries buffered for the change feed

polydb_changefeed_flush_duration_seconds:
  - Type: Histogram
  - Description: Time to flush a transaction's buffered change-feed entries

Transaction Metrics:

polydb_tx_commits_total:
  - Type: Counter
  - Description: Total committed transactions

polydb_tx_cancels_total:
  - Type: Counter
  - Description: Total cancelled transactions

polydb_tx_commit_duration_seconds:
  - Type: Histogram
  - Description: Time to commit a transaction, including change-feed flush

Streaming Executor Metrics:

polydb_exec_batch_size:
  - Type: Histogram
  - Description: Row count of batches passed between streaming operators
  - Buckets: 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024

polydb_exec_operator_duration_seconds{operator}:
  - Type: Histogram
  - Description: Time for one Next() call on a streaming operator

# Usage

Updating Counter Metrics:

	import "github.com/cuemby/polydb/pkg/metrics"

	metrics.RecordUpsertsTotal.WithLabelValues("person").Inc()
	metrics.MTreeVectorsIndexed.Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.ExecBatchSize.Observe(128)

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.MTreeSearchDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.RecordUpsertDuration, "person")

Complete Example:

	package main

	import (
		"net/http"

		"github.com/cuemby/polydb/pkg/metrics"
	)

	func main() {
		timer := metrics.NewTimer()
		upsertPerson()
		timer.ObserveDurationVec(metrics.RecordUpsertDuration, "person")
		metrics.RecordUpsertsTotal.WithLabelValues("person").Inc()

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

# Integration Points

This package integrates with:

  - pkg/exec: Records record upsert/delete counters and durations
  - pkg/planner: Records index maintenance counters and durations
  - pkg/txn: Records transaction commit/cancel counters and durations
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (table name, index
    kind, operator kind)
  - Avoid high-cardinality labels (record IDs, timestamps)

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration/ObserveDurationVec once the operation finishes
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any engine package
  - Thread-safe concurrent updates

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
