package ondemand

import (
	"go.dedis.ch/odo/core/txn"
)

// Grouper splits a list of transactions into batches.
type Grouper interface {
	Group(txs []txn.Transaction) []txn.Batch
}

// keyGrouper groups the consecutive transactions that share the same batch
// key. A transaction without a key forms a batch on its own.
//
// - implements ondemand.Grouper
type keyGrouper struct{}

// NewKeyGrouper returns the default grouper.
func NewKeyGrouper() Grouper {
	return keyGrouper{}
}

// Group implements ondemand.Grouper.
func (keyGrouper) Group(txs []txn.Transaction) []txn.Batch {
	batches := make([]txn.Batch, 0, len(txs))

	start := 0
	for i := 1; i <= len(txs); i++ {
		if i < len(txs) && txn.SameBatchKey(txs[start], txs[i]) {
			continue
		}

		// The range is never empty so the batch is always valid.
		batch, _ := txn.NewBatch(txs[start:i]...)
		batches = append(batches, batch)

		start = i
	}

	return batches
}
