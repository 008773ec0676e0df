package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	appfs "github.com/trezcool/shule/fs"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run goose migration commands (up, down, status, ...)",
		// goose reads its own args (eg. `down-to 1`)
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(cmd.Context(), args[0], args[1:])
		},
	}
}

func (cli *commandLine) migrate(ctx context.Context, command string, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return gooseRunFunc(ctx, command, cli.db, "migrations", args...)
}
