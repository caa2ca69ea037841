package minogrpc

import (
	"context"

	otgrpc "github.com/opentracing-contrib/go-grpc"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/internal/tracing"
	"go.dedis.ch/odo/mino/minogrpc/ptypes"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the ordering service of a distant server.
//
// - implements ordering.GateTransport
// - implements ordering.ServiceTransport
// - implements ordering.OnDemandOrdering
type Client struct {
	conn *grpc.ClientConn
	fac  txn.Factory
}

// NewClient returns a client of the server at the address. The connection is
// established on the first call.
func NewClient(addr string, opts ...Option) (*Client, error) {
	tmpl := newTemplate(opts)

	if tmpl.tracer == nil {
		tracer, err := tracing.GetTracer("client-" + addr)
		if err != nil {
			return nil, xerrors.Errorf("failed to get tracer: %v", err)
		}

		tmpl.tracer = tracer
	}

	conn, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
		grpc.WithUnaryInterceptor(otgrpc.OpenTracingClientInterceptor(tmpl.tracer)),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to dial: %v", err)
	}

	c := &Client{
		conn: conn,
		fac:  tmpl.fac,
	}

	return c, nil
}

// OnProposal implements ordering.GateTransport. It sends the proposal to the
// server.
func (c *Client) OnProposal(ctx context.Context, p types.Proposal) error {
	return c.invoke(ctx, gateService, "onProposal", proposalToProto(p), &ptypes.Empty{})
}

// OnBatch implements ordering.ServiceTransport. It sends the transactions to
// the server.
func (c *Client) OnBatch(ctx context.Context, txs []txn.Transaction) error {
	req := &ptypes.TransactionList{Transactions: txsToProto(txs)}

	return c.invoke(ctx, transportService, "onBatch", req, &ptypes.Empty{})
}

// SendBatches implements ordering.OnDemandOrdering. It sends the batches to the
// server.
func (c *Client) SendBatches(ctx context.Context, batches []txn.Batch) error {
	req := &ptypes.BatchList{Batches: batchesToProto(batches)}

	return c.invoke(ctx, orderingService, "SendBatches", req, &ptypes.Empty{})
}

// RequestProposal implements ordering.OnDemandOrdering. It requests the
// proposal of a round to the server.
func (c *Client) RequestProposal(ctx context.Context,
	req types.ProposalRequest) (types.ProposalResponse, error) {

	out := new(ptypes.ProposalResponse)

	err := c.invoke(ctx, orderingService, "RequestProposal", requestToProto(req), out)
	if err != nil {
		return types.ProposalResponse{}, err
	}

	resp, err := responseFromProto(c.fac, out)
	if err != nil {
		return types.ProposalResponse{}, xerrors.Errorf("invalid response: %v", err)
	}

	return resp, nil
}

// Advance moves the server to the round.
func (c *Client) Advance(ctx context.Context, round types.Round) error {
	return c.invoke(ctx, controlService, "Advance", roundToProto(round), &ptypes.Empty{})
}

// Commit reports the proposal of the round as finalized to the server.
func (c *Client) Commit(ctx context.Context, round types.Round) error {
	return c.invoke(ctx, controlService, "Commit", roundToProto(round), &ptypes.Empty{})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, in, out ptypes.Message) error {
	err := c.conn.Invoke(ctx, "/"+service+"/"+method, in, out)
	if err != nil {
		return xerrors.Errorf("call to %s failed: %w", method, err)
	}

	return nil
}
