package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/spadesk/fs"
	"github.com/trezcool/spadesk/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := database.SetupGoose(cli.db); err != nil {
		return err
	}
	// status and version print through the goose logger
	goose.SetLogger(log.New(os.Stdout, "", 0))
	return runGoose(cli.db.DB, args[0], args[1:]...)
}

func runGoose(db *sql.DB, command string, args ...string) error {
	return gooseRunFunc(context.Background(), command, db, appfs.MigrationsDir, args...)
}
