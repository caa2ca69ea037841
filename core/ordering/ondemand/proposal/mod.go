// Package proposal implements the factory that selects the batches of a
// proposal.
//
// The selection takes the pending batches in arrival order, drops those that
// may belong to the exclusion filter, and accumulates the rest until one of
// the bounds is reached. A false positive of the filter leaves a batch out of
// the proposal but never proposes it twice. The result only depends on the
// pending batches and the filter so that the same inputs produce the same
// proposal.
package proposal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/odo"
	"go.dedis.ch/odo/core/ordering/ondemand/bloom"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
)

const (
	// DefaultMaxBatches is the default maximum number of batches in a
	// proposal.
	DefaultMaxBatches = 100

	// DefaultMaxTransactions is the default maximum number of transactions in
	// a proposal.
	DefaultMaxTransactions = 1000
)

var (
	promBatches = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "odo_proposal_batches",
		Help:    "number of batches in the proposals built locally",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})

	promExcluded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odo_proposal_excluded_total",
		Help: "number of pending batches excluded by the filter",
	})
)

func init() {
	odo.PromCollectors = append(odo.PromCollectors, promBatches, promExcluded)
}

// Snapshotter is the source of the pending batches.
type Snapshotter interface {
	// Snapshot returns the pending batches in arrival order.
	Snapshot() []txn.Batch
}

// Limits are the bounds of a proposal. A zero value disables the bound.
type Limits struct {
	MaxBatches      int
	MaxTransactions int
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBatches:      DefaultMaxBatches,
		MaxTransactions: DefaultMaxTransactions,
	}
}

// Factory builds the proposals.
type Factory struct {
	logger zerolog.Logger
	limits Limits
}

// NewFactory returns a new factory with the given limits.
func NewFactory(limits Limits) Factory {
	return Factory{
		logger: odo.Logger.With().Str("component", "proposal").Logger(),
		limits: limits,
	}
}

// GetLimits returns the limits of the factory.
func (f Factory) GetLimits() Limits {
	return f.limits
}

// Build returns the proposal of the round made of the pending batches of the
// source that are not in the exclusion filter. The filter can be nil.
func (f Factory) Build(round types.Round, src Snapshotter, exclusion *bloom.Filter) types.Proposal {
	pending := src.Snapshot()

	selected := make([]txn.Batch, 0, len(pending))
	numTxs := 0
	excluded := 0

	for _, batch := range pending {
		if exclusion != nil && exclusion.MayContain(batch.GetID()) {
			excluded++
			continue
		}

		if f.limits.MaxTransactions > 0 && batch.Len() > f.limits.MaxTransactions {
			// The batch can never fit in a proposal so it would otherwise
			// stop every proposal at the same position.
			f.logger.Warn().
				Stringer("batch", batch.GetID()).
				Int("size", batch.Len()).
				Msg("batch larger than a proposal is skipped")

			continue
		}

		if f.limits.MaxBatches > 0 && len(selected) >= f.limits.MaxBatches {
			break
		}

		if f.limits.MaxTransactions > 0 && numTxs+batch.Len() > f.limits.MaxTransactions {
			break
		}

		selected = append(selected, batch)
		numTxs += batch.Len()
	}

	promBatches.Observe(float64(len(selected)))
	promExcluded.Add(float64(excluded))

	proposal := types.NewProposal(round, selected...)

	f.logger.Debug().
		Stringer("round", round).
		Int("pending", len(pending)).
		Int("excluded", excluded).
		Int("batches", len(selected)).
		Int("transactions", numTxs).
		Stringer("hash", proposal.GetHash()).
		Msg("proposal built")

	return proposal
}
