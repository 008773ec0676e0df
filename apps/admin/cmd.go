package main

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/services/identity"
)

var (
	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need a postgres database")
)

type commandLine struct {
	db       *sql.DB // nil with in-memory storage
	schools  school.Repository
	members  access.MembershipWriter
	provider *identity.SessionProvider
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Shule administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addSchoolCmd(),
		cli.addMemberCmd(),
		cli.tokenCmd(),
	)
	return root
}

// run executes the command line args; args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) < 2 {
		_ = root.Usage()
		return errHelp
	}
	root.SetArgs(args[1:])
	return root.Execute()
}
