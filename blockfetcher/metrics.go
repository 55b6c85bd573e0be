package blockfetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaced",
		Subsystem: "block_fetcher",
		Name:      "blocks_emitted_total",
		Help:      "Blocks emitted in order on the consumer channel.",
	})

	blockMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spaced",
		Subsystem: "block_fetcher",
		Name:      "block_mismatches_total",
		Help:      "Parent hash mismatches observed at the ordering stage (reorg signals).",
	})
)
