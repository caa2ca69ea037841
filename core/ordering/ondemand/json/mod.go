// Package json implements the JSON format of the proposals stored in the
// archive.
package json

import (
	"encoding/json"

	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"golang.org/x/xerrors"
)

// TransactionJSON is the JSON message of a transaction.
type TransactionJSON struct {
	Payload  []byte
	BatchKey []byte `json:",omitempty"`
}

// BatchJSON is the JSON message of a batch.
type BatchJSON struct {
	Transactions []TransactionJSON
}

// ProposalJSON is the JSON message of a proposal.
type ProposalJSON struct {
	BlockRound  uint64
	RejectRound uint32
	Batches     []BatchJSON
	Hash        []byte `json:",omitempty"`
}

// Format is the JSON format engine for proposals.
type Format struct {
	fac txn.Factory
}

// NewFormat returns a format that instantiates the transactions with the
// factory.
func NewFormat(fac txn.Factory) Format {
	return Format{fac: fac}
}

// Encode returns the JSON data of the proposal.
func (f Format) Encode(p types.Proposal) ([]byte, error) {
	m := ProposalJSON{
		BlockRound:  p.GetRound().BlockRound,
		RejectRound: p.GetRound().RejectRound,
		Batches:     make([]BatchJSON, p.Len()),
	}

	for i, batch := range p.GetBatches() {
		txs := batch.GetTransactions()

		m.Batches[i].Transactions = make([]TransactionJSON, len(txs))
		for j, tx := range txs {
			m.Batches[i].Transactions[j] = TransactionJSON{
				Payload:  tx.GetPayload(),
				BatchKey: tx.GetBatchKey(),
			}
		}
	}

	hash, ok := p.GetHash().Get()
	if ok {
		m.Hash = hash[:]
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode returns the proposal of the JSON data. The hash is computed again and
// it must match the one of the message.
func (f Format) Decode(data []byte) (types.Proposal, error) {
	m := ProposalJSON{}

	err := json.Unmarshal(data, &m)
	if err != nil {
		return types.Proposal{}, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	batches := make([]txn.Batch, len(m.Batches))

	for i, bm := range m.Batches {
		txs := make([]txn.Transaction, len(bm.Transactions))

		for j, tm := range bm.Transactions {
			txs[j], err = f.fac.TransactionOf(tm.Payload, tm.BatchKey)
			if err != nil {
				return types.Proposal{}, xerrors.Errorf("failed to decode tx: %v", err)
			}
		}

		batches[i], err = txn.NewBatch(txs...)
		if err != nil {
			return types.Proposal{}, xerrors.Errorf("failed to create batch: %v", err)
		}
	}

	p := types.NewProposal(types.NewRound(m.BlockRound, m.RejectRound), batches...)

	var expected []byte
	hash, ok := p.GetHash().Get()
	if ok {
		expected = hash[:]
	}

	if string(expected) != string(m.Hash) {
		return types.Proposal{}, xerrors.Errorf("mismatch hash: %#x != %v", m.Hash, p.GetHash())
	}

	return p, nil
}
