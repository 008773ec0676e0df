package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// MemberTable names the table holding the memberships of a role.
type MemberTable string

const (
	TableSuperAdminSchools MemberTable = "super_admin_schools"
	TableAdmins            MemberTable = "admins"
	TableTeachers          MemberTable = "teachers"
	TableStudents          MemberTable = "students"
	TableParents           MemberTable = "parents"
)

// SingleSchoolTables maps each single-school role to its membership table.
var SingleSchoolTables = map[string]MemberTable{
	user.RoleAdmin:   TableAdmins,
	user.RoleTeacher: TableTeachers,
	user.RoleStudent: TableStudents,
	user.RoleParent:  TableParents,
}

type (
	MembershipRepository interface {
		// GetMemberSchoolID returns the school of a member of a single-school table.
		// It returns ErrNoMembership when the user has no row in the table.
		GetMemberSchoolID(ctx context.Context, table MemberTable, userID string) (string, error)
		// QueryAdministeredSchoolIDs returns the ids of the schools a superadmin administers, in any order.
		QueryAdministeredSchoolIDs(ctx context.Context, userID string) ([]string, error)
	}

	// MembershipWriter records memberships. Only used to seed data; requests never write.
	MembershipWriter interface {
		// AddMembership binds a user to a school in the membership table of role.
		// Single-school roles are re-bound if they were already a member elsewhere.
		AddMembership(ctx context.Context, role, userID, schoolID string) error
	}

	// MembershipFunc returns the ids of the schools a user is a member of.
	// An empty result means no membership.
	MembershipFunc func(ctx context.Context, repo MembershipRepository, userID string) ([]string, error)

	// Capability describes how the schools of a role are resolved.
	Capability struct {
		Memberships MembershipFunc
		// MultiSchool roles may act on several schools and must pick one.
		MultiSchool bool
	}
)

// SingleSchool resolves the one membership of a user in table.
func SingleSchool(table MemberTable) MembershipFunc {
	return func(ctx context.Context, repo MembershipRepository, userID string) ([]string, error) {
		schoolID, err := repo.GetMemberSchoolID(ctx, table, userID)
		if err != nil {
			if errors.Is(err, ErrNoMembership) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "finding %s membership", table)
		}
		return []string{schoolID}, nil
	}
}

// AdministeredSchools resolves the schools administered by a superadmin.
func AdministeredSchools(ctx context.Context, repo MembershipRepository, userID string) ([]string, error) {
	ids, err := repo.QueryAdministeredSchoolIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying administered schools")
	}
	return ids, nil
}

// DefaultCapabilities returns the capability of every known role.
func DefaultCapabilities() map[string]Capability {
	caps := map[string]Capability{
		user.RoleSuperAdmin: {Memberships: AdministeredSchools, MultiSchool: true},
	}
	for role, table := range SingleSchoolTables {
		caps[role] = Capability{Memberships: SingleSchool(table)}
	}
	return caps
}

// TableOf returns the membership table of role.
func TableOf(role string) (MemberTable, bool) {
	if role == user.RoleSuperAdmin {
		return TableSuperAdminSchools, true
	}
	table, ok := SingleSchoolTables[role]
	return table, ok
}
