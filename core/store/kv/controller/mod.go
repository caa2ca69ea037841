// Package controller opens the database of the node at start and closes it
// once the other components have stopped.
package controller

import (
	"path/filepath"

	"go.dedis.ch/odo"
	"go.dedis.ch/odo/cli"
	"go.dedis.ch/odo/cli/node"
	"go.dedis.ch/odo/core/store/kv"
	"golang.org/x/xerrors"
)

const (
	// DBFlag is the start flag of the database file. A relative path is
	// resolved in the config folder.
	DBFlag = "db"

	// DBName is the default database file.
	DBName = "odo.db"
)

type minimal struct{}

// NewMinimal returns the initializer of the database. It must come before the
// initializers resolving a kv.DB.
func NewMinimal() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer.
func (m minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:   DBFlag,
			Usage:  "database file of the committed proposals",
			EnvVar: "ODO_DB",
			Value:  DBName,
		},
	)
}

// OnStart implements node.Initializer. It injects the kv.DB.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	path := dbPath(flags)

	db, err := kv.New(path)
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	odo.Logger.Info().Str("path", path).Msg("database opened")

	inj.Inject(db)

	return nil
}

// OnStop implements node.Initializer.
func (m minimal) OnStop(inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	return nil
}

func dbPath(flags cli.Flags) string {
	path := flags.Path(DBFlag)
	if path == "" {
		path = DBName
	}

	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(flags.Path(node.ConfigFlag), path)
}
