package node

import (
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/odo"
	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/cli/ucli"
	"golang.org/x/xerrors"
)

// ConfigFlag is the name of the global flag holding the path to the folder
// where the node stores its files.
const ConfigFlag = "config"

// CLIBuilder is an application builder that will build a CLI to start and
// control a node.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	injector   Injector
	startFlags []cli.Flag
	inits      []Initializer

	// In production, the node is stopped via SIGTERM. Tests provide their own
	// channel instead.
	enableSignal bool
	sigs         chan os.Signal
}

// NewBuilder returns a new empty builder.
func NewBuilder(inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(nil, inits...)
}

// NewBuilderWithCfg returns a new empty builder that waits on the given
// channel instead of the process signals when it is not nil.
func NewBuilderWithCfg(sigs chan os.Signal, inits ...Initializer) *CLIBuilder {
	enabled := false

	if sigs == nil {
		sigs = make(chan os.Signal, 1)
		enabled = true
	}

	builder := ucli.NewBuilder("odo", nil, cli.StringFlag{
		Name:  ConfigFlag,
		Usage:  "path to the config folder",
		EnvVar: "ODO_CONFIG",
		Value:  ".odo",
	})

	return &CLIBuilder{
		Builder:      builder,
		injector:     NewInjector(),
		enableSignal: enabled,
		sigs:         sigs,
		inits:        inits,
	}
}

// SetStartFlags implements node.Builder. It appends the given flags to the list
// of flags that will be used to create the start command.
func (b *CLIBuilder) SetStartFlags(flags ...cli.Flag) {
	b.startFlags = append(b.startFlags, flags...)
}

// Build implements cli.Builder. It returns the application.
func (b *CLIBuilder) Build() cli.Application {
	for _, controller := range b.inits {
		controller.SetCommands(b)
	}

	cmd := b.SetCommand("start")
	cmd.SetDescription("start the ordering node")
	cmd.SetFlags(b.startFlags...)
	cmd.SetAction(b.start)

	return b.Builder.Build()
}

func (b *CLIBuilder) start(flags cli.Flags) error {
	if b.enableSignal {
		signal.Notify(b.sigs, syscall.SIGINT, syscall.SIGTERM)

		defer signal.Stop(b.sigs)
	}

	dir := flags.Path(ConfigFlag)
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return xerrors.Errorf("couldn't make path: %v", err)
		}
	}

	started := 0

	for _, controller := range b.inits {
		err := controller.OnStart(flags, b.injector)
		if err != nil {
			b.stop(started)
			return xerrors.Errorf("couldn't run the controller: %v", err)
		}

		started++
	}

	odo.Logger.Info().
		Int("controllers", started).
		Strs("components", dependencies(b.injector)).
		Msg("node has started")

	<-b.sigs

	// Controllers are stopped in reverse order so that high level components
	// are stopped before lower level ones (i.e. stop the server before the
	// database).
	err := b.stop(started)
	if err != nil {
		return xerrors.Errorf("couldn't stop controller: %v", err)
	}

	odo.Logger.Info().Msg("node has been stopped")

	return nil
}

// stop stops the first n controllers in reverse order and returns the first
// error, if any, after trying every one of them.
func (b *CLIBuilder) stop(n int) error {
	var first error

	for i := n - 1; i >= 0; i-- {
		err := b.inits[i].OnStop(b.injector)
		if err != nil && first == nil {
			first = err
		}
	}

	return first
}
