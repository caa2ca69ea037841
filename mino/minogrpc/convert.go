package minogrpc

import (
	"bytes"

	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
	"golang.org/x/xerrors"
)

func txsToProto(txs []txn.Transaction) []*ptypes.Transaction {
	msgs := make([]*ptypes.Transaction, len(txs))
	for i, tx := range txs {
		msgs[i] = &ptypes.Transaction{
			Payload:  tx.GetPayload(),
			BatchKey: tx.GetBatchKey(),
		}
	}

	return msgs
}

func txsFromProto(fac txn.Factory, msgs []*ptypes.Transaction) ([]txn.Transaction, error) {
	txs := make([]txn.Transaction, len(msgs))

	for i, msg := range msgs {
		tx, err := fac.TransactionOf(msg.Payload, msg.BatchKey)
		if err != nil {
			return nil, xerrors.Errorf("invalid transaction #%d: %v", i, err)
		}

		txs[i] = tx
	}

	return txs, nil
}

func batchesToProto(batches []txn.Batch) []*ptypes.Batch {
	msgs := make([]*ptypes.Batch, len(batches))
	for i, batch := range batches {
		msgs[i] = &ptypes.Batch{Transactions: txsToProto(batch.GetTransactions())}
	}

	return msgs
}

func batchesFromProto(fac txn.Factory, msgs []*ptypes.Batch) ([]txn.Batch, error) {
	batches := make([]txn.Batch, len(msgs))

	for i, msg := range msgs {
		txs, err := txsFromProto(fac, msg.Transactions)
		if err != nil {
			return nil, xerrors.Errorf("batch #%d: %v", i, err)
		}

		batches[i], err = txn.NewBatch(txs...)
		if err != nil {
			return nil, xerrors.Errorf("batch #%d: %v", i, err)
		}
	}

	return batches, nil
}

func roundToProto(round types.Round) *ptypes.Round {
	return &ptypes.Round{
		BlockRound:  round.BlockRound,
		RejectRound: round.RejectRound,
	}
}

// roundFromProto returns the round of the message. A missing round is the
// first one.
func roundFromProto(msg *ptypes.Round) types.Round {
	if msg == nil {
		return types.Round{}
	}

	return types.NewRound(msg.BlockRound, msg.RejectRound)
}

func proposalToProto(p types.Proposal) *ptypes.Proposal {
	return &ptypes.Proposal{
		Round:   roundToProto(p.GetRound()),
		Batches: batchesToProto(p.GetBatches()),
	}
}

func proposalFromProto(fac txn.Factory, msg *ptypes.Proposal) (types.Proposal, error) {
	if msg == nil {
		return types.Proposal{}, xerrors.New("missing proposal")
	}

	batches, err := batchesFromProto(fac, msg.Batches)
	if err != nil {
		return types.Proposal{}, xerrors.Errorf("failed to decode batches: %v", err)
	}

	return types.NewProposal(roundFromProto(msg.Round), batches...), nil
}

func requestToProto(req types.ProposalRequest) *ptypes.ProposalRequest {
	msg := &ptypes.ProposalRequest{
		Round: roundToProto(req.Round),
	}

	filter, ok := req.BloomFilter.Get()
	if ok {
		msg.BloomFilter = append([]byte{}, filter...)
	}

	return msg
}

func requestFromProto(msg *ptypes.ProposalRequest) types.ProposalRequest {
	req := types.ProposalRequest{
		Round:       roundFromProto(msg.Round),
		BloomFilter: types.NoBytes(),
	}

	if msg.BloomFilter != nil {
		req.BloomFilter = types.SomeBytes(msg.BloomFilter)
	}

	return req
}

func responseToProto(resp types.ProposalResponse) *ptypes.ProposalResponse {
	msg := &ptypes.ProposalResponse{
		BloomFilter: resp.BloomFilter,
		Proposal:    proposalToProto(resp.Proposal),
	}

	hash, ok := resp.ProposalHash.Get()
	if ok {
		msg.ProposalHash = hash[:]
	}

	return msg
}

// responseFromProto returns the response of the message. The hash is computed
// from the batches and it must match the one of the message.
func responseFromProto(fac txn.Factory, msg *ptypes.ProposalResponse) (types.ProposalResponse, error) {
	p, err := proposalFromProto(fac, msg.Proposal)
	if err != nil {
		return types.ProposalResponse{}, xerrors.Errorf("failed to decode proposal: %v", err)
	}

	var expected []byte
	hash, ok := p.GetHash().Get()
	if ok {
		expected = hash[:]
	}

	if (msg.ProposalHash == nil) != (expected == nil) || !bytes.Equal(msg.ProposalHash, expected) {
		return types.ProposalResponse{}, xerrors.Errorf("mismatch hash: %#x != %v",
			msg.ProposalHash, p.GetHash())
	}

	resp := types.ProposalResponse{
		BloomFilter:  msg.BloomFilter,
		Proposal:     p,
		ProposalHash: p.GetHash(),
	}

	return resp, nil
}
