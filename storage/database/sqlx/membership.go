package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

type membershipRepository struct {
	exec core.DBExecutor
}

var (
	// interface compliance checks
	_ access.MembershipRepository = (*membershipRepository)(nil)
	_ access.MembershipWriter     = (*membershipRepository)(nil)
)

func NewMembershipRepository(exec core.DBExecutor) *membershipRepository {
	return &membershipRepository{exec: exec}
}

func memberSchoolQuery(table access.MemberTable, userID string) (sq.SelectBuilder, error) {
	if table == access.TableSuperAdminSchools {
		return sq.SelectBuilder{}, errors.Errorf("%s is not a single-school table", table)
	}
	if !isSingleSchoolTable(table) {
		return sq.SelectBuilder{}, errors.Errorf("unknown membership table %q", table)
	}
	return psql.Select("school_id").From(string(table)).Where(sq.Eq{"user_id": userID}), nil
}

func administeredSchoolsQuery(userID string) sq.SelectBuilder {
	return psql.Select("school_id").
		From(string(access.TableSuperAdminSchools)).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("school_id")
}

func addMembershipQuery(role, userID, schoolID string) (sq.InsertBuilder, error) {
	table, ok := access.TableOf(role)
	if !ok {
		return sq.InsertBuilder{}, errors.Wrapf(user.ErrUnknownRole, "role %q", role)
	}
	b := psql.Insert(string(table)).Columns("user_id", "school_id").Values(userID, schoolID)
	if table == access.TableSuperAdminSchools {
		return b.Suffix("ON CONFLICT DO NOTHING"), nil
	}
	return b.Suffix("ON CONFLICT (user_id) DO UPDATE SET school_id = EXCLUDED.school_id"), nil
}

func isSingleSchoolTable(table access.MemberTable) bool {
	for _, t := range access.SingleSchoolTables {
		if t == table {
			return true
		}
	}
	return false
}

func (repo membershipRepository) GetMemberSchoolID(ctx context.Context, table access.MemberTable, userID string) (string, error) {
	b, err := memberSchoolQuery(table, userID)
	if err != nil {
		return "", err
	}
	q, args, err := b.ToSql()
	if err != nil {
		return "", errors.Wrap(err, "building query")
	}

	var schoolID string
	if err = repo.exec.GetContext(ctx, &schoolID, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", access.ErrNoMembership
		}
		return "", errors.Wrapf(err, "finding %s membership", table)
	}
	return schoolID, nil
}

func (repo membershipRepository) QueryAdministeredSchoolIDs(ctx context.Context, userID string) ([]string, error) {
	q, args, err := administeredSchoolsQuery(userID).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	ids := make([]string, 0)
	if err = repo.exec.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying administered schools")
	}
	return ids, nil
}

func (repo membershipRepository) AddMembership(ctx context.Context, role, userID, schoolID string) error {
	b, err := addMembershipQuery(role, userID, schoolID)
	if err != nil {
		return err
	}
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "inserting membership")
	}
	return nil
}
