// Package cli defines the abstraction used to build the command line of a
// node. Packages declare their commands and flags through the Builder and the
// actions read the values through Flags, so that no package depends on the
// library doing the parsing.
//
//	cmd := builder.SetCommand("ordering")
//	sub := cmd.SetSubCommand("propose")
//	sub.SetFlags(cli.Uint64Flag{Name: "block", Required: true})
//	sub.SetAction(func(flags cli.Flags) error {
//		fmt.Println(flags.Uint64("block"))
//		return nil
//	})
package cli

import (
	"time"
)

// Builder is an application builder interface. One can set properties of an
// application then build it.
type Builder interface {
	// SetCommand creates a new command with the given name and returns its
	// builder.
	SetCommand(name string) CommandBuilder

	// Build returns the application.
	Build() Application
}

// Application is the main interface to run the CLI.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder is a command builder interface. One can set properties of a
// specific command like its name and description and what it should do when
// invoked.
type CommandBuilder interface {
	// SetDescription sets the value of the description for this command.
	SetDescription(value string)

	// SetFlags sets the flags for this command.
	SetFlags(...Flag)

	// SetAction sets the action for this command.
	SetAction(Action)

	// SetSubCommand creates a subcommand for this command.
	SetSubCommand(name string) CommandBuilder
}

// Action is a function that will be executed when a command is invoked.
type Action func(Flags) error

// Flag is an identifier for the definition of the flags.
type Flag interface {
	Flag()
}

// Flags provides the primitives to an action to read the flags.
type Flags interface {
	String(name string) string

	StringSlice(name string) []string

	Duration(name string) time.Duration

	Path(name string) string

	Int(name string) int

	Uint64(name string) uint64

	Bool(name string) bool

	// IsSet returns true if the flag has been set by the user.
	IsSet(name string) bool
}
