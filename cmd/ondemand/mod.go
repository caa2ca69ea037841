// Package main implements an on-demand ordering node.
//
//	go run mod.go --config /tmp/node1 start --listen 127.0.0.1:2000
//	go run mod.go ordering send --addr 127.0.0.1:2000 --tx hello --tx world
//	go run mod.go ordering propose --addr 127.0.0.1:2000 --block 0
//	go run mod.go ordering commit --addr 127.0.0.1:2000 --block 0
package main

import (
	"fmt"
	"os"

	"go.dedis.ch/odo/cli/node"
	ordering "go.dedis.ch/odo/core/ordering/ondemand/controller"
	db "go.dedis.ch/odo/core/store/kv/controller"
	proxy "go.dedis.ch/odo/mino/proxy/http/controller"
)

func main() {
	err := run(os.Args, node.NewBuilder(initializers()...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

// initializers returns the controllers of the node. The database comes first
// as it is stopped last.
func initializers() []node.Initializer {
	return []node.Initializer{
		db.NewMinimal(),
		ordering.NewMinimal(),
		proxy.NewController(),
	}
}

func run(args []string, builder *node.CLIBuilder) error {
	return builder.Build().Run(args)
}
