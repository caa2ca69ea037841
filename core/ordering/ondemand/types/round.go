// Package types defines the messages of the on-demand ordering service.
package types

import "fmt"

// Round identifies a consensus attempt. The block round advances when a block
// is committed and the reject round counts the retries of a block round. The
// reject round starts again from zero for every new block round.
type Round struct {
	BlockRound  uint64
	RejectRound uint32
}

// NewRound returns the round for the block and reject rounds.
func NewRound(block uint64, reject uint32) Round {
	return Round{BlockRound: block, RejectRound: reject}
}

// Compare returns -1, 0 or 1 whether the round is respectively before, equal
// or after the other one in the lexicographic order of (block, reject).
func (r Round) Compare(other Round) int {
	switch {
	case r.BlockRound < other.BlockRound:
		return -1
	case r.BlockRound > other.BlockRound:
		return 1
	case r.RejectRound < other.RejectRound:
		return -1
	case r.RejectRound > other.RejectRound:
		return 1
	default:
		return 0
	}
}

// Less returns true if the round is strictly before the other one.
func (r Round) Less(other Round) bool {
	return r.Compare(other) < 0
}

// Equal returns true if both rounds are the same.
func (r Round) Equal(other Round) bool {
	return r == other
}

// SameLineage returns true if both rounds retry the same block round.
func (r Round) SameLineage(other Round) bool {
	return r.BlockRound == other.BlockRound
}

// NextReject returns the round that retries the current block round.
func (r Round) NextReject() Round {
	return Round{BlockRound: r.BlockRound, RejectRound: r.RejectRound + 1}
}

// NextBlock returns the first round of the next block round.
func (r Round) NextBlock() Round {
	return Round{BlockRound: r.BlockRound + 1}
}

// String implements fmt.Stringer.
func (r Round) String() string {
	return fmt.Sprintf("(%d, %d)", r.BlockRound, r.RejectRound)
}
