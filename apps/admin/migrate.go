package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/chuo/apps"
	"github.com/trezcool/chuo/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command on the embedded migrations",
		Long: `Run a goose command on the embedded migrations.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix.

Example:
  admin migrate up
  admin migrate down-to 3`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return apps.NewArgumentError("migrations need a postgres database")
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
