package ptypes

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestProposalRequest_OptionalFilter(t *testing.T) {
	req := &ProposalRequest{Round: &Round{BlockRound: 3, RejectRound: 1}}

	decoded := new(ProposalRequest)
	require.NoError(t, decoded.Unmarshal(req.AppendTo(nil)))
	require.Nil(t, decoded.BloomFilter)
	require.Equal(t, &Round{BlockRound: 3, RejectRound: 1}, decoded.Round)

	// Present but empty survives the round trip.
	req.BloomFilter = []byte{}

	require.NoError(t, decoded.Unmarshal(req.AppendTo(nil)))
	require.NotNil(t, decoded.BloomFilter)
	require.Empty(t, decoded.BloomFilter)

	req.BloomFilter = []byte{1, 2, 3}

	require.NoError(t, decoded.Unmarshal(req.AppendTo(nil)))
	require.Equal(t, []byte{1, 2, 3}, decoded.BloomFilter)
}

func TestProposalResponse_OptionalHash(t *testing.T) {
	resp := &ProposalResponse{
		BloomFilter: []byte{0xaa},
		Proposal: &Proposal{
			Round: &Round{BlockRound: 5},
			Batches: []*Batch{
				{Transactions: []*Transaction{{Payload: []byte("a"), BatchKey: []byte("k")}}},
				{Transactions: []*Transaction{{Payload: []byte("b")}, {Payload: []byte("c")}}},
			},
		},
	}

	decoded := new(ProposalResponse)
	require.NoError(t, decoded.Unmarshal(resp.AppendTo(nil)))
	require.Nil(t, decoded.ProposalHash)
	require.Equal(t, []byte{0xaa}, decoded.BloomFilter)
	require.Equal(t, uint64(5), decoded.Proposal.Round.BlockRound)
	require.Len(t, decoded.Proposal.Batches, 2)
	require.Equal(t, []byte("k"), decoded.Proposal.Batches[0].Transactions[0].BatchKey)
	require.Len(t, decoded.Proposal.Batches[1].Transactions, 2)
	require.Nil(t, decoded.Proposal.Batches[1].Transactions[0].BatchKey)

	resp.ProposalHash = []byte{1, 2}

	require.NoError(t, decoded.Unmarshal(resp.AppendTo(nil)))
	require.Equal(t, []byte{1, 2}, decoded.ProposalHash)
}

func TestLists(t *testing.T) {
	txs := &TransactionList{Transactions: []*Transaction{{Payload: []byte("a")}, {Payload: []byte("b")}}}

	decodedTxs := new(TransactionList)
	require.NoError(t, decodedTxs.Unmarshal(txs.AppendTo(nil)))
	require.Equal(t, txs, decodedTxs)

	batches := &BatchList{Batches: []*Batch{{Transactions: txs.Transactions}}}

	decodedBatches := new(BatchList)
	require.NoError(t, decodedBatches.Unmarshal(batches.AppendTo(nil)))
	require.Equal(t, batches, decodedBatches)

	empty := new(Empty)
	require.Empty(t, empty.AppendTo(nil))
	require.NoError(t, empty.Unmarshal(txs.AppendTo(nil)))
}

func TestUnmarshal_UnknownFields(t *testing.T) {
	data := (&Round{BlockRound: 1}).AppendTo(nil)
	data = protowire.AppendTag(data, 9, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))
	data = protowire.AppendTag(data, 10, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)

	round := new(Round)
	require.NoError(t, round.Unmarshal(data))
	require.Equal(t, &Round{BlockRound: 1}, round)
}

func TestUnmarshal_Malformed(t *testing.T) {
	round := new(Round)

	err := round.Unmarshal([]byte{0x80})
	require.EqualError(t, err, "invalid tag: unexpected EOF")

	err = round.Unmarshal([]byte{0x0a, 0x01, 0x00})
	require.EqualError(t, err, "field 1: unexpected wire type 2")

	tx := new(Transaction)

	err = tx.Unmarshal([]byte{0x0a, 0x05, 'a'})
	require.EqualError(t, err, "field 1: unexpected EOF")

	proposal := new(Proposal)

	// The error of the nested message is reported with the path of fields.
	err = proposal.Unmarshal([]byte{0x12, 0x03, 0x0a, 0x01, 0x08})
	require.EqualError(t, err, "field 2: field 1: field 1: unexpected wire type 0")

	err = tx.Unmarshal([]byte{0x1a, 0x05, 'a'})
	require.EqualError(t, err, "field 3: unexpected EOF")
}
