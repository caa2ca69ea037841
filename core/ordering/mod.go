// Package ordering defines the interfaces of the on-demand ordering service.
// The high-level purpose of this service is to offer to the consensus, round
// after round, an ordered list of the batches of transactions submitted by the
// peers.
//
// The service is split into narrow capabilities so that a participant only
// depends on what it uses. A peer pushes transactions or batches, a consensus
// participant requests the proposals and reports the progress of the rounds.
package ordering

import (
	"context"

	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
)

// GateTransport is the capability to receive the proposals of the peers.
type GateTransport interface {
	// OnProposal records the proposal a peer generated for its round.
	OnProposal(ctx context.Context, proposal types.Proposal) error
}

// ServiceTransport is the capability to receive the transactions submitted by
// the clients.
type ServiceTransport interface {
	// OnBatch groups the transactions into batches and submits them.
	OnBatch(ctx context.Context, txs []txn.Transaction) error
}

// OnDemandOrdering is the capability to submit batches and request the
// proposals.
type OnDemandOrdering interface {
	// SendBatches submits the batches. A duplicate or a batch refused because
	// the pool is full is not an error.
	SendBatches(ctx context.Context, batches []txn.Batch) error

	// RequestProposal returns the proposal of the round of the request. The
	// proposal is generated only once per round.
	RequestProposal(ctx context.Context, req types.ProposalRequest) (types.ProposalResponse, error)
}

// Engine is the capability of the consensus to report the progress of the
// rounds.
type Engine interface {
	// Advance moves the service to the round.
	Advance(round types.Round) error

	// Commit reports the proposal of the round as finalized.
	Commit(round types.Round) error

	// Watch returns a channel populated with the events of the service until
	// the context is done.
	Watch(ctx context.Context) <-chan Event
}

// Event is an event of the service.
type Event interface {
	// GetRound returns the round concerned by the event.
	GetRound() types.Round
}

// EventAdvanced is emitted when the service moves to a new round.
type EventAdvanced struct {
	Previous types.Round
	Round    types.Round
}

// GetRound implements ordering.Event.
func (e EventAdvanced) GetRound() types.Round {
	return e.Round
}

// EventCommitted is emitted when the proposal of a round is finalized.
type EventCommitted struct {
	Proposal types.Proposal
}

// GetRound implements ordering.Event.
func (e EventCommitted) GetRound() types.Round {
	return e.Proposal.GetRound()
}

// EventConflict is emitted when a peer reports a proposal that differs from
// the local one.
type EventConflict struct {
	Local  types.Proposal
	Remote types.Proposal
}

// GetRound implements ordering.Event.
func (e EventConflict) GetRound() types.Round {
	return e.Local.GetRound()
}
