package main

import (
	"context"

	"github.com/atomcode/atomq/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return runMigrationsFunc(context.Background(), cli.db, args[0], args[1:]...)
}
