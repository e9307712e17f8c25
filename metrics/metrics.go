// Package metrics exposes prometheus counters for ledger and content-store
// operations. Registration uses the default registry; callers scrape it (or
// not) however their process does.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_ledger_calls_total",
		Help: "Escrow contract calls by operation and outcome.",
	}, []string{"op", "outcome"})

	storageTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_storage_transfers_total",
		Help: "Encrypted content store transfers by operation and outcome.",
	}, []string{"op", "outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLedger records one ledger call result for op.
func ObserveLedger(op string, err error) {
	ledgerCalls.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveStorage records one content-store transfer result for op.
func ObserveStorage(op string, err error) {
	storageTransfers.WithLabelValues(op, outcome(err)).Inc()
}
