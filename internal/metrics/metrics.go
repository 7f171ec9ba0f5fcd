// Package metrics provides Prometheus metrics for the PGI toolkit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pgi"

var (
	// FitDuration tracks wall-clock time of complete EM fits.
	FitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall-clock duration of EM mixture fits",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// FitIterations tracks the iteration count of the winning trial.
	FitIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_iterations",
			Help:      "EM iterations used by the best trial of a fit",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// FitNonConverged counts fits whose every trial exhausted max_iter.
	FitNonConverged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fit_nonconverged_total",
			Help:      "Fits that stopped at max_iter without meeting tolerance",
		},
	)

	// SensitivityBuildDuration tracks end-to-end Jacobian build time.
	SensitivityBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sensitivity_build_duration_seconds",
			Help:      "Wall-clock duration of sensitivity matrix builds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	// SensitivityBlocks counts per-receiver sensitivity blocks computed.
	SensitivityBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensitivity_blocks_total",
			Help:      "Per-receiver sensitivity blocks assembled",
		},
	)

	// SolverWaitSeconds tracks time spent blocked on pending factorizations.
	SolverWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_wait_seconds_total",
			Help:      "Cumulative seconds spent waiting on solver factorizations",
		},
	)

	// ChunksWritten counts sensitivity chunks persisted to storage.
	ChunksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Sensitivity chunks persisted",
		},
		[]string{"store"},
	)

	// ChunkBytes counts compressed bytes persisted to storage.
	ChunkBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_total",
			Help:      "Compressed sensitivity bytes persisted",
		},
		[]string{"store"},
	)

	// ChunkCacheHits counts chunk reads served from the in-memory cache.
	ChunkCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_cache_hits_total",
			Help:      "Sensitivity chunk reads served from cache",
		},
	)

	// ChunkCacheMisses counts chunk reads that fell through to storage.
	ChunkCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_cache_misses_total",
			Help:      "Sensitivity chunk reads that went to the object store",
		},
	)

	// ChunkCacheEvictions counts chunks evicted under the byte budget.
	ChunkCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_cache_evictions_total",
			Help:      "Sensitivity chunks evicted from cache",
		},
	)

	// StoreOperations counts object store calls by backend and operation.
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Object store operations",
		},
		[]string{"store", "op", "status"},
	)

	// StoreOperationDuration tracks object store call latency.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Object store operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store", "op"},
	)
)
