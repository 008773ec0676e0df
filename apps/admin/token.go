package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/user"
)

// tokenCmd signs session tokens for local testing of the API.
func (cli *commandLine) tokenCmd() *cobra.Command {
	var usr user.User

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := cli.provider.IssueToken(usr)
			if err != nil {
				return errors.Wrap(err, "signing token")
			}
			cli.printf("%s\n", token)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&usr.ID, "user", "", "the user id (subject)")
	flags.StringVar(&usr.Role, "role", "", "the role claim; omitted when empty")
	flags.StringVar(&usr.Email, "email", "", "")
	flags.StringVar(&usr.Username, "username", "", "")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
