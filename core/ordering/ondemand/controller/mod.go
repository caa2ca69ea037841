// Package controller implements the initializer of the on-demand ordering
// service. It starts the service behind the gRPC server when the node starts
// and provides the commands to talk to a running node.
package controller

import (
	"os"
	"time"

	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/cli/node"
	"go.dedis.ch/odo/core/ordering/ondemand"
	"go.dedis.ch/odo/core/ordering/ondemand/ledger"
	"go.dedis.ch/odo/core/store/kv"
	"go.dedis.ch/odo/core/txn"
	"go.dedis.ch/odo/core/txn/pool/mem"
	"go.dedis.ch/odo/mino/minogrpc"
	"golang.org/x/xerrors"
)

const (
	listenFlag          = "listen"
	configFlag          = "ordering-config"
	maxBatchesFlag      = "max-batches"
	maxTransactionsFlag = "max-transactions"

	addrFlag    = "addr"
	timeoutFlag = "timeout"
	blockFlag   = "block"
	rejectFlag  = "reject"
	filterFlag  = "filter"
	txFlag      = "tx"
	keyFlag     = "key"

	defaultListen  = "127.0.0.1:2000"
	defaultTimeout = 10 * time.Second
)

type minimal struct{}

// NewMinimal creates a new minimal controller for the on-demand ordering
// service.
func NewMinimal() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. It defines the flags of the start
// command and the client commands.
func (minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:   listenFlag,
			Usage:  "address of the gRPC server",
			EnvVar: "ODO_LISTEN",
			Value:  defaultListen,
		},
		cli.StringFlag{
			Name:   configFlag,
			Usage:  "path to the YAML configuration of the service",
			EnvVar: "ODO_ORDERING_CONFIG",
		},
		cli.IntFlag{
			Name:  maxBatchesFlag,
			Usage: "overrides the maximum number of batches in a proposal",
		},
		cli.IntFlag{
			Name:  maxTransactionsFlag,
			Usage: "overrides the maximum number of transactions in a proposal",
		},
	)

	cmd := builder.SetCommand("ordering")
	cmd.SetDescription("On-demand ordering administration")

	sub := cmd.SetSubCommand("propose")
	sub.SetDescription("Request the proposal of a round")
	sub.SetFlags(append(roundFlags(), cli.StringFlag{
		Name:  filterFlag,
		Usage: "base64 bloom filter of the batches to exclude",
	})...)
	sub.SetAction(proposeAction{out: os.Stdout}.Execute)

	sub = cmd.SetSubCommand("send")
	sub.SetDescription("Send transactions to the pool")
	sub.SetFlags(append(clientFlags(),
		cli.StringSliceFlag{
			Name:     txFlag,
			Required: true,
			Usage:    "one or several transaction payloads",
		},
		cli.StringFlag{
			Name:  keyFlag,
			Usage: "batch key shared by the transactions",
		},
	)...)
	sub.SetAction(sendAction{out: os.Stdout}.Execute)

	sub = cmd.SetSubCommand("advance")
	sub.SetDescription("Move the node to a later round")
	sub.SetFlags(roundFlags()...)
	sub.SetAction(advanceAction{out: os.Stdout}.Execute)

	sub = cmd.SetSubCommand("commit")
	sub.SetDescription("Finalize the proposal of a round")
	sub.SetFlags(roundFlags()...)
	sub.SetAction(commitAction{out: os.Stdout}.Execute)
}

// OnStart implements node.Initializer. It creates the pool and the service,
// restores the frontier from the archive, and starts the gRPC server.
func (minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return xerrors.Errorf("config: %v", err)
	}

	pool, err := mem.NewPool(cfg.PoolOptions()...)
	if err != nil {
		return xerrors.Errorf("pool: %v", err)
	}

	archive := ledger.NewArchive(db, txn.NewFactory())

	srvc := ondemand.NewService(pool, append(cfg.Options(), ondemand.WithArchive(archive))...)

	last, found, err := archive.Last()
	if err != nil {
		return xerrors.Errorf("archive: %v", err)
	}

	if found {
		pool.MarkConsumed(last.GetBatchIDs()...)

		err = srvc.Advance(last.GetRound().NextBlock())
		if err != nil {
			return xerrors.Errorf("failed to restore round: %v", err)
		}
	}

	srv, err := minogrpc.NewServer(flags.String(listenFlag), srvc)
	if err != nil {
		return xerrors.Errorf("server: %v", err)
	}

	inj.Inject(pool)
	inj.Inject(srvc)
	inj.Inject(srv)

	return nil
}

// OnStop implements node.Initializer. It stops the gRPC server after the
// pending calls.
func (minimal) OnStop(inj node.Injector) error {
	var srv *minogrpc.Server
	err := inj.Resolve(&srv)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = srv.GracefulStop()
	if err != nil {
		return xerrors.Errorf("while stopping server: %v", err)
	}

	return nil
}

func loadConfig(flags cli.Flags) (ondemand.Config, error) {
	cfg := ondemand.DefaultConfig()

	path := flags.Path(configFlag)
	if path != "" {
		var err error

		cfg, err = ondemand.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	if flags.IsSet(maxBatchesFlag) {
		cfg.MaxBatches = flags.Int(maxBatchesFlag)
	}

	if flags.IsSet(maxTransactionsFlag) {
		cfg.MaxTransactions = flags.Int(maxTransactionsFlag)
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   addrFlag,
			Usage:  "address of the node",
			EnvVar: "ODO_ADDR",
			Value:  defaultListen,
		},
		cli.DurationFlag{
			Name:  timeoutFlag,
			Usage: "maximum amount of time to wait for the node",
			Value: defaultTimeout,
		},
	}
}

// roundFlags returns the client flags and the flags of a round.
func roundFlags() []cli.Flag {
	return append(clientFlags(),
		cli.Uint64Flag{
			Name:     blockFlag,
			Required: true,
			Usage:    "block round",
		},
		cli.Uint64Flag{
			Name:  rejectFlag,
			Usage: "reject round",
		},
	)
}
