package types

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/core/txn"
)

func TestProposal_Getters(t *testing.T) {
	b1 := makeBatch(t, "b1")
	b2 := makeBatch(t, "b2", "b2bis")

	p := NewProposal(NewRound(1, 0), b1, b2)

	require.Equal(t, NewRound(1, 0), p.GetRound())
	require.Len(t, p.GetBatches(), 2)
	require.Equal(t, []txn.BatchID{b1.GetID(), b2.GetID()}, p.GetBatchIDs())
	require.Equal(t, 2, p.Len())
	require.Equal(t, 3, p.NumTransactions())
	require.False(t, p.IsEmpty())

	id1 := b1.GetID()
	id2 := b2.GetID()
	expected := sha256.Sum256(append(id1[:], id2[:]...))

	hash, ok := p.GetHash().Get()
	require.True(t, ok)
	require.Equal(t, Digest(expected), hash)
}

func TestProposal_Empty(t *testing.T) {
	p := EmptyProposal(NewRound(5, 0))

	require.True(t, p.IsEmpty())
	require.False(t, p.GetHash().IsPresent())
	require.Equal(t, "Proposal[(5, 0):0:none]", p.String())
}

func TestProposal_Equal(t *testing.T) {
	b1 := makeBatch(t, "b1")
	b2 := makeBatch(t, "b2")

	p := NewProposal(NewRound(1, 0), b1, b2)

	require.True(t, p.Equal(NewProposal(NewRound(1, 0), b1, b2)))
	require.False(t, p.Equal(NewProposal(NewRound(1, 0), b2, b1)))
	require.False(t, p.Equal(NewProposal(NewRound(1, 1), b1, b2)))
}

func TestProposal_Immutable(t *testing.T) {
	batches := []txn.Batch{makeBatch(t, "b1")}

	p := NewProposal(NewRound(1, 0), batches...)
	batches[0] = makeBatch(t, "b2")

	require.True(t, p.GetBatches()[0].Equal(makeBatch(t, "b1")))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBatch(t *testing.T, payloads ...string) txn.Batch {
	txs := make([]txn.Transaction, len(payloads))
	for i, payload := range payloads {
		txs[i] = txn.NewTransaction([]byte(payload), nil)
	}

	batch, err := txn.NewBatch(txs...)
	require.NoError(t, err)

	return batch
}
