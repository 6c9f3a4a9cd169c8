package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChainReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_desk_chain_reads_total",
			Help: "Total number of contract reads by cache result",
		},
		[]string{"method", "result"},
	)

	ChainReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meme_desk_chain_read_duration_seconds",
			Help:    "Duration of contract reads that reached the RPC endpoint",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meme_desk_cache_invalidations_total",
			Help: "Total number of invalidated read cache keys",
		},
	)

	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_desk_simulations_total",
			Help: "Total number of transaction simulations",
		},
		[]string{"method", "result"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_desk_submissions_total",
			Help: "Total number of submitted transactions by outcome",
		},
		[]string{"method", "outcome"},
	)
)
