package node

import (
	"fmt"
	"os"

	"go.dedis.ch/odo/cli"
)

func ExampleCLIBuilder_Build() {
	builder := NewBuilder(exampleController{})

	cmd := builder.SetCommand("bye")

	cmd.SetFlags(cli.StringFlag{
		Name:  "name",
		Usage: "set the name",
		Value: "Bob",
	})

	// This action is only executed on the CLI process.
	cmd.SetAction(func(flags cli.Flags) error {
		fmt.Printf("Bye, %s!", flags.String("name"))
		return nil
	})

	app := builder.Build()

	err := app.Run([]string{os.Args[0], "bye", "--name", "Alice"})
	if err != nil {
		panic("app failed: " + err.Error())
	}

	// Output: Bye, Alice!
}

// exampleController is an example of a controller passed to the builder. It
// defines the flags of the start command and the component that is injected
// when the node starts.
//
// - implements node.Initializer
type exampleController struct{}

// SetCommands implements node.Initializer.
func (exampleController) SetCommands(builder Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:  "greeting",
		Usage: "set the greeting",
		Value: "Hello",
	})
}

// OnStart implements node.Initializer. It injects the greeting.
func (exampleController) OnStart(flags cli.Flags, inj Injector) error {
	inj.Inject(flags.String("greeting"))

	return nil
}

// OnStop implements node.Initializer.
func (exampleController) OnStop(Injector) error {
	return nil
}
