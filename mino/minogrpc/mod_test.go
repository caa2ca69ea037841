package minogrpc

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/odo/core/ordering/ondemand"
	"go.dedis.ch/odo/core/ordering/ondemand/bloom"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/core/txn/pool/mem"
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
	"golang.org/x/xerrors"
)

func TestIntegration_RequestProposal(t *testing.T) {
	srvc, client := makeServerAndClient(t)

	b1 := makeBatch(t, "b1")
	b2 := makeBatch(t, "b2")

	err := client.SendBatches(context.Background(), []txn.Batch{b1, b2, b1})
	require.NoError(t, err)
	require.Equal(t, 2, srvc.pool.Len())

	resp, err := client.RequestProposal(context.Background(), types.ProposalRequest{
		Round: types.NewRound(1, 0),
	})
	require.NoError(t, err)
	require.Equal(t, []txn.BatchID{b1.GetID(), b2.GetID()}, resp.Proposal.GetBatchIDs())
	require.Equal(t, types.NewRound(1, 0), resp.Proposal.GetRound())
	require.True(t, resp.ProposalHash.IsPresent())
	require.Len(t, resp.BloomFilter, bloom.DefaultParams().EncodedLen())

	// The next reject round has nothing left and the hash is absent.
	resp, err = client.RequestProposal(context.Background(), types.ProposalRequest{
		Round:       types.NewRound(1, 1),
		BloomFilter: types.SomeBytes(resp.BloomFilter),
	})
	require.NoError(t, err)
	require.True(t, resp.Proposal.IsEmpty())
	require.False(t, resp.ProposalHash.IsPresent())

	// A malformed filter is not an error.
	resp, err = client.RequestProposal(context.Background(), types.ProposalRequest{
		Round:       types.NewRound(2, 0),
		BloomFilter: types.SomeBytes([]byte{1}),
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Proposal.Len())
}

func TestIntegration_OnBatch(t *testing.T) {
	srvc, client := makeServerAndClient(t)

	txs := []txn.Transaction{
		txn.NewTransaction([]byte("a"), []byte("key")),
		txn.NewTransaction([]byte("b"), []byte("key")),
		txn.NewTransaction([]byte("c"), nil),
	}

	err := client.OnBatch(context.Background(), txs)
	require.NoError(t, err)

	snap := srvc.pool.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, []byte("key"), snap[0].GetTransactions()[1].GetBatchKey())
}

func TestIntegration_OnProposal(t *testing.T) {
	srvc, client := makeServerAndClient(t)

	p := types.NewProposal(types.NewRound(3, 2), makeBatch(t, "b1"))

	err := client.OnProposal(context.Background(), p)
	require.NoError(t, err)

	resp, err := srvc.node.RequestProposal(context.Background(), types.ProposalRequest{
		Round: types.NewRound(3, 2),
	})
	require.NoError(t, err)
	require.True(t, p.Equal(resp.Proposal))
}

func TestIntegration_AdvanceAndCommit(t *testing.T) {
	srvc, client := makeServerAndClient(t)

	err := client.SendBatches(context.Background(), []txn.Batch{makeBatch(t, "b1")})
	require.NoError(t, err)

	_, err = client.RequestProposal(context.Background(), types.ProposalRequest{
		Round: types.NewRound(1, 0),
	})
	require.NoError(t, err)

	err = client.Advance(context.Background(), types.NewRound(1, 0))
	require.NoError(t, err)

	err = client.Advance(context.Background(), types.NewRound(1, 0))
	require.EqualError(t, err, "call to Advance failed: rpc error: code = FailedPrecondition "+
		"desc = failed to advance: round (1, 0) is not after (1, 0): stale round")

	err = client.Commit(context.Background(), types.NewRound(1, 0))
	require.NoError(t, err)
	require.Equal(t, 0, srvc.pool.Len())

	err = client.Commit(context.Background(), types.NewRound(7, 0))
	require.EqualError(t, err, "call to Commit failed: rpc error: code = Internal "+
		"desc = no proposal for round (7, 0)")
}

func TestIntegration_InvalidArgument(t *testing.T) {
	_, client := makeServerAndClient(t)

	req := &ptypes.BatchList{Batches: []*ptypes.Batch{{}}}

	err := client.invoke(context.Background(), orderingService, "SendBatches", req, &ptypes.Empty{})
	require.EqualError(t, err, "call to SendBatches failed: rpc error: code = InvalidArgument "+
		"desc = invalid batches: batch #0: batch must contain at least one transaction")

	client.fac = badFactory{}

	_, err = client.RequestProposal(context.Background(), types.ProposalRequest{})
	require.NoError(t, err)

	err = client.SendBatches(context.Background(), []txn.Batch{makeBatch(t, "b1")})
	require.NoError(t, err)

	_, err = client.RequestProposal(context.Background(), types.ProposalRequest{
		Round: types.NewRound(1, 0),
	})
	require.EqualError(t, err, "invalid response: failed to decode proposal: "+
		"failed to decode batches: batch #0: invalid transaction #0: oops")
}

func TestServer_Stop(t *testing.T) {
	srvc := makeService(t)

	srv, err := NewServer("127.0.0.1:0", srvc, WithTracer(opentracing.NoopTracer{}))
	require.NoError(t, err)
	require.NotNil(t, srv.GetAddress())

	require.NoError(t, srv.Stop())

	_, err = NewServer("invalid address", srvc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to bind: ")
}

// -----------------------------------------------------------------------------
// Utility functions

type testServer struct {
	pool *mem.Pool
	node Node
}

func makeService(t *testing.T) *ondemand.Service {
	p, err := mem.NewPool()
	require.NoError(t, err)

	return ondemand.NewService(p)
}

func makeServerAndClient(t *testing.T) (testServer, *Client) {
	p, err := mem.NewPool()
	require.NoError(t, err)

	srvc := ondemand.NewService(p)

	srv, err := NewServer("127.0.0.1:0", srvc, WithTracer(opentracing.NoopTracer{}))
	require.NoError(t, err)

	t.Cleanup(func() { srv.GracefulStop() })

	client, err := NewClient(srv.GetAddress().String(), WithTracer(opentracing.NoopTracer{}))
	require.NoError(t, err)

	t.Cleanup(func() { client.Close() })

	return testServer{pool: p, node: srvc}, client
}

func makeBatch(t *testing.T, payload string) txn.Batch {
	batch, err := txn.NewBatch(txn.NewTransaction([]byte(payload), nil))
	require.NoError(t, err)

	return batch
}

type badFactory struct{}

func (badFactory) TransactionOf([]byte, []byte) (txn.Transaction, error) {
	return nil, xerrors.New("oops")
}
