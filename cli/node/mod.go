// Package node defines the Builder type, which builds a CLI application to run
// an ordering node.
//
// The application has a start command by default which starts every
// initializer in order and waits for a termination signal. Other commands are
// plain actions executed by the CLI process, usually as clients of a running
// node.
package node

import (
	"go.dedis.ch/odo/cli"
)

// Builder is the builder that will be provided to the initializers, which can
// create commands and start flags.
type Builder interface {
	// SetCommand creates a new command and returns its builder.
	SetCommand(name string) cli.CommandBuilder

	// SetStartFlags appends a list of flags that will be used to create the
	// start command.
	SetStartFlags(...cli.Flag)
}

// Injector is a dependency injection abstraction.
type Injector interface {
	// Resolve populates the input with the dependency if any compatible exists.
	Resolve(interface{}) error

	// Inject stores the dependency to be resolved later on.
	Inject(interface{})
}

// Initializer is the interface that a module can implement to set its own
// commands and inject the dependencies of the node.
type Initializer interface {
	// SetCommands populates the builder with the commands of the controller.
	SetCommands(Builder)

	// OnStart starts the components of the initializer and populates the
	// injector.
	OnStart(cli.Flags, Injector) error

	// OnStop stops the components and cleans the resources.
	OnStop(Injector) error
}
