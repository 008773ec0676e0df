package memdbrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

type membershipRepository struct {
	store *Store
}

var (
	// interface compliance checks
	_ access.MembershipRepository = (*membershipRepository)(nil)
	_ access.MembershipWriter     = (*membershipRepository)(nil)
)

func NewMembershipRepository(store *Store) *membershipRepository {
	return &membershipRepository{store: store}
}

func (repo membershipRepository) schoolIDs(table access.MemberTable, userID string) ([]string, error) {
	txn := repo.store.db.Txn(false)
	it, err := txn.Get(membersTable, "member", string(table), userID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	ids := make([]string, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		ids = append(ids, obj.(*Member).SchoolID)
	}
	return ids, nil
}

func (repo membershipRepository) GetMemberSchoolID(_ context.Context, table access.MemberTable, userID string) (string, error) {
	if table == access.TableSuperAdminSchools {
		return "", errors.Errorf("%s is not a single-school table", table)
	}
	ids, err := repo.schoolIDs(table, userID)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", access.ErrNoMembership
	}
	return ids[0], nil
}

func (repo membershipRepository) QueryAdministeredSchoolIDs(_ context.Context, userID string) ([]string, error) {
	return repo.schoolIDs(access.TableSuperAdminSchools, userID)
}

func (repo membershipRepository) AddMembership(_ context.Context, role, userID, schoolID string) error {
	table, ok := access.TableOf(role)
	if !ok {
		return errors.Wrapf(user.ErrUnknownRole, "role %q", role)
	}

	return repo.store.AddMember(Member{Table: string(table), UserID: userID, SchoolID: schoolID})
}
