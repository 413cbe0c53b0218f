package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	committedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfers_committed_total",
		Help: "Pending transfers approved into the ledger",
	})

	discardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfers_discarded_total",
		Help: "Pending transfers rejected before commit",
	})

	authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_auth_failures_total",
		Help: "Candidate tokens that failed hash-chain verification",
	}, []string{"op"})
)
