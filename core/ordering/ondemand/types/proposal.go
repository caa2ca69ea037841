package types

import (
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/odo/core/txn"
)

// Proposal is the ordered list of batches offered to the consensus for a
// round. It is immutable once created.
type Proposal struct {
	round   Round
	batches []txn.Batch
	hash    OptionalDigest
}

// NewProposal creates a proposal for the round. The hash is computed from the
// ordered batch identifiers and it is absent when there is no batch.
func NewProposal(round Round, batches ...txn.Batch) Proposal {
	list := make([]txn.Batch, len(batches))
	copy(list, batches)

	return Proposal{
		round:   round,
		batches: list,
		hash:    HashBatches(list),
	}
}

// EmptyProposal returns a proposal without any batch for the round.
func EmptyProposal(round Round) Proposal {
	return NewProposal(round)
}

// GetRound returns the round of the proposal.
func (p Proposal) GetRound() Round {
	return p.round
}

// GetBatches returns the batches of the proposal in order.
func (p Proposal) GetBatches() []txn.Batch {
	return append([]txn.Batch{}, p.batches...)
}

// GetBatchIDs returns the identifiers of the batches in order.
func (p Proposal) GetBatchIDs() []txn.BatchID {
	ids := make([]txn.BatchID, len(p.batches))
	for i, batch := range p.batches {
		ids[i] = batch.GetID()
	}

	return ids
}

// GetHash returns the hash of the proposal, which is absent when the proposal
// is empty.
func (p Proposal) GetHash() OptionalDigest {
	return p.hash
}

// Len returns the number of batches.
func (p Proposal) Len() int {
	return len(p.batches)
}

// NumTransactions returns the number of transactions across the batches.
func (p Proposal) NumTransactions() int {
	n := 0
	for _, batch := range p.batches {
		n += batch.Len()
	}

	return n
}

// IsEmpty returns true if the proposal has no batch.
func (p Proposal) IsEmpty() bool {
	return len(p.batches) == 0
}

// Equal returns true when both proposals are for the same round with the same
// content.
func (p Proposal) Equal(other Proposal) bool {
	return p.round == other.round && p.hash == other.hash
}

// String implements fmt.Stringer.
func (p Proposal) String() string {
	return fmt.Sprintf("Proposal[%v:%d:%v]", p.round, len(p.batches), p.hash)
}

// HashBatches returns the digest of the ordered batch identifiers, or an
// absent digest for an empty list.
func HashBatches(batches []txn.Batch) OptionalDigest {
	if len(batches) == 0 {
		return NoDigest()
	}

	h := sha256.New()
	for _, batch := range batches {
		id := batch.GetID()
		h.Write(id[:])
	}

	var digest Digest
	copy(digest[:], h.Sum(nil))

	return SomeDigest(digest)
}

// ProposalRequest is the request of a proposal for a round. The bloom filter is
// optional and contains the batches the requester already knows as proposed.
type ProposalRequest struct {
	Round       Round
	BloomFilter OptionalBytes
}

// ProposalResponse is the answer to a proposal request. The bloom filter is the
// updated exclusion filter of the lineage. The hash is present only when the
// proposal is not empty.
type ProposalResponse struct {
	BloomFilter  []byte
	Proposal     Proposal
	ProposalHash OptionalDigest
}
