// Package pool defines the interface for a batch pool. It holds the batches of
// the peers until a proposal includes them and the consensus finalizes it.
//
// The pool keeps the arrival order of the batches which is the order used to
// select them into a proposal.
package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/txn"
	"golang.org/x/xerrors"
)

// ErrPoolExhausted is returned when the pool reached its capacity. The batch is
// rejected and the caller may try again later.
var ErrPoolExhausted = xerrors.New("pool exhausted")

// AddResult is the outcome of adding a batch.
type AddResult int

const (
	// Accepted means the batch is now pending in the pool.
	Accepted AddResult = iota

	// Duplicate means the batch is already pending, or was consumed recently.
	Duplicate

	// Rejected means the batch has not been added. It comes with an error.
	Rejected
)

func (r AddResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Stats is a summary of the activity of the pool.
type Stats struct {
	Len        int
	Capacity   int
	Accepted   uint64
	Duplicates uint64
	Exhausted  uint64
	Consumed   uint64
}

// Pool is the maintainer of the list of pending batches.
type Pool interface {
	// Len returns the number of pending batches.
	Len() int

	// Add adds the batch to the pool. Submitting a batch already known is
	// not an error and returns Duplicate.
	Add(txn.Batch) (AddResult, error)

	// Snapshot returns a copy of the pending batches in arrival order.
	Snapshot() []txn.Batch

	// MarkConsumed removes the batches from the pending ones and returns how
	// many were actually removed.
	MarkConsumed(ids ...txn.BatchID) int

	// Stats returns the statistics of the pool.
	Stats() Stats
}

// defines prometheus metrics
var (
	PromSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odo_pool_batches",
		Help: "number of pending batches in the pool",
	})

	PromAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odo_pool_add_total",
		Help: "number of batches submitted to the pool by outcome",
	}, []string{"outcome"})
)

func init() {
	odo.PromCollectors = append(odo.PromCollectors, PromSize, PromAdded)
}
