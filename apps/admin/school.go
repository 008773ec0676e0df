package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func (cli *commandLine) addSchoolCmd() *cobra.Command {
	var ns school.NewSchool
	var inactive bool

	cmd := &cobra.Command{
		Use:   "addschool",
		Short: "Create a school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ns.Validate(cli.validate); err != nil {
				return err
			}
			sch, err := cli.schools.CreateSchool(cmd.Context(), school.School{
				Name:     ns.Name,
				Code:     ns.Code,
				Address:  ns.Address,
				Phone:    ns.Phone,
				Email:    ns.Email,
				Logo:     ns.Logo,
				IsActive: !inactive,
			})
			if err != nil {
				return errors.Wrap(err, "creating school")
			}
			cli.printf("%s\n", sch.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&ns.Name, "name", "", "the school's name")
	flags.StringVar(&ns.Code, "code", "", "the school's unique code")
	flags.StringVar(&ns.Address, "address", "", "")
	flags.StringVar(&ns.Phone, "phone", "", "")
	flags.StringVar(&ns.Email, "email", "", "")
	flags.StringVar(&ns.Logo, "logo", "", "the URL of the school's logo")
	flags.BoolVar(&inactive, "inactive", false, "create the school as inactive")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func (cli *commandLine) addMemberCmd() *cobra.Command {
	var role, userID, schoolID string

	cmd := &cobra.Command{
		Use:   "addmember",
		Short: "Bind a user to a school with a role",
		Long: "Bind a user to a school with a role.\n" +
			"School roles (admin, teacher, student, parent) belong to one school: the previous one is replaced.\n" +
			"Super admins may administer many schools.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role = core.CleanString(role, true /* lower */)
			if !user.IsValidRole(role) {
				return errors.Wrapf(user.ErrUnknownRole, "role %q", role)
			}
			if _, err := cli.schools.GetSchool(cmd.Context(), schoolID); err != nil {
				return errors.Wrapf(err, "school %q", schoolID)
			}
			if err := cli.members.AddMembership(cmd.Context(), role, userID, schoolID); err != nil {
				return errors.Wrap(err, "adding membership")
			}
			cli.printf("%s is now %s of %s\n", userID, role, schoolID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&role, "role", "", "one of superadmin, admin, teacher, student or parent")
	flags.StringVar(&userID, "user", "", "the user id, as known by the identity provider")
	flags.StringVar(&schoolID, "school", "", "the school id")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("school")
	return cmd
}
