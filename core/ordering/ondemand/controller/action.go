package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"

	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/core/ordering"
	"go.dedis.ch/odo/core/ordering/ondemand/types"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/mino/minogrpc"
	"golang.org/x/xerrors"
)

// nodeClient is the set of calls the commands make to a running node.
type nodeClient interface {
	ordering.ServiceTransport
	ordering.OnDemandOrdering

	Advance(context.Context, types.Round) error
	Commit(context.Context, types.Round) error
	Close() error
}

var clientFac = func(addr string) (nodeClient, error) {
	return minogrpc.NewClient(addr)
}

// proposeAction requests the proposal of a round and prints it.
type proposeAction struct {
	out io.Writer
}

// Execute implements cli.Action.
func (a proposeAction) Execute(flags cli.Flags) error {
	round, err := readRound(flags)
	if err != nil {
		return err
	}

	req := types.ProposalRequest{
		Round:       round,
		BloomFilter: types.NoBytes(),
	}

	if flags.IsSet(filterFlag) {
		filter, err := base64.StdEncoding.DecodeString(flags.String(filterFlag))
		if err != nil {
			return xerrors.Errorf("failed to decode filter: %v", err)
		}

		req.BloomFilter = types.SomeBytes(filter)
	}

	return withClient(flags, func(ctx context.Context, client nodeClient) error {
		resp, err := client.RequestProposal(ctx, req)
		if err != nil {
			return xerrors.Errorf("failed to request proposal: %v", err)
		}

		p := resp.Proposal

		fmt.Fprintf(a.out, "Proposal for round %v: %d batch(es), %d transaction(s)\n",
			p.GetRound(), p.Len(), p.NumTransactions())

		for _, batch := range p.GetBatches() {
			fmt.Fprintf(a.out, "- %v\n", batch)
		}

		fmt.Fprintf(a.out, "Hash: %v\n", resp.ProposalHash)
		fmt.Fprintf(a.out, "Filter: %s\n", base64.StdEncoding.EncodeToString(resp.BloomFilter))

		return nil
	})
}

// sendAction groups the payloads into transactions and sends them to the pool
// of the node.
type sendAction struct {
	out io.Writer
}

// Execute implements cli.Action.
func (a sendAction) Execute(flags cli.Flags) error {
	payloads := flags.StringSlice(txFlag)
	if len(payloads) == 0 {
		return xerrors.New("no transaction to send")
	}

	var key []byte
	if flags.String(keyFlag) != "" {
		key = []byte(flags.String(keyFlag))
	}

	txs := make([]txn.Transaction, len(payloads))
	for i, payload := range payloads {
		txs[i] = txn.NewTransaction([]byte(payload), key)
	}

	return withClient(flags, func(ctx context.Context, client nodeClient) error {
		err := client.OnBatch(ctx, txs)
		if err != nil {
			return xerrors.Errorf("failed to send: %v", err)
		}

		fmt.Fprintf(a.out, "Sent %d transaction(s)\n", len(txs))

		return nil
	})
}

// advanceAction moves a node to a later round.
type advanceAction struct {
	out io.Writer
}

// Execute implements cli.Action.
func (a advanceAction) Execute(flags cli.Flags) error {
	round, err := readRound(flags)
	if err != nil {
		return err
	}

	return withClient(flags, func(ctx context.Context, client nodeClient) error {
		err := client.Advance(ctx, round)
		if err != nil {
			return xerrors.Errorf("failed to advance: %v", err)
		}

		fmt.Fprintf(a.out, "Node advanced to round %v\n", round)

		return nil
	})
}

// commitAction finalizes the proposal of a round.
type commitAction struct {
	out io.Writer
}

// Execute implements cli.Action.
func (a commitAction) Execute(flags cli.Flags) error {
	round, err := readRound(flags)
	if err != nil {
		return err
	}

	return withClient(flags, func(ctx context.Context, client nodeClient) error {
		err := client.Commit(ctx, round)
		if err != nil {
			return xerrors.Errorf("failed to commit: %v", err)
		}

		fmt.Fprintf(a.out, "Proposal of round %v committed\n", round)

		return nil
	})
}

func readRound(flags cli.Flags) (types.Round, error) {
	reject := flags.Uint64(rejectFlag)
	if reject > math.MaxUint32 {
		return types.Round{}, xerrors.Errorf("reject round out of range: %d", reject)
	}

	return types.NewRound(flags.Uint64(blockFlag), uint32(reject)), nil
}

func withClient(flags cli.Flags, fn func(context.Context, nodeClient) error) error {
	client, err := clientFac(flags.String(addrFlag))
	if err != nil {
		return xerrors.Errorf("failed to create client: %v", err)
	}

	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flags.Duration(timeoutFlag))
	defer cancel()

	return fn(ctx, client)
}
