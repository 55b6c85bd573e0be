package rpcnode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spaced",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "Round trip latency of JSON-RPC requests, by method.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"method"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spaced",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Retries performed for temporary failures, by method.",
	}, []string{"method"})
)
