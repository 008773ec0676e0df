package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

type schoolRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Code      string      `db:"code"`
	Address   null.String `db:"address"`
	Phone     null.String `db:"phone"`
	Email     null.String `db:"email"`
	Logo      null.String `db:"logo"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r schoolRow) unboil() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Code:      r.Code,
		Address:   r.Address.String,
		Phone:     r.Phone.String,
		Email:     r.Email.String,
		Logo:      r.Logo.String,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type directoryRow struct {
	schoolRow
	Students int `db:"students"`
	Teachers int `db:"teachers"`
	Admins   int `db:"admins"`
}

type teacherRow struct {
	ID        string      `db:"id"`
	SchoolID  string      `db:"school_id"`
	Username  null.String `db:"username"`
	Name      string      `db:"name"`
	Surname   string      `db:"surname"`
	Email     null.String `db:"email"`
	Phone     null.String `db:"phone"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r teacherRow) unboil() school.Teacher {
	return school.Teacher{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Username:  r.Username.String,
		Name:      r.Name,
		Surname:   r.Surname,
		Email:     r.Email.String,
		Phone:     r.Phone.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

var schoolColumns = []string{
	"s.id", "s.name", "s.code", "s.address", "s.phone", "s.email", "s.logo", "s.is_active", "s.created_at", "s.updated_at",
}

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func selectSchools() sq.SelectBuilder {
	return psql.Select(schoolColumns...).From("schools s")
}

func getSchoolQuery(id string) sq.SelectBuilder {
	return selectSchools().Where(sq.Eq{"s.id": id})
}

func schoolsByIDQuery(ids []string) sq.SelectBuilder {
	return selectSchools().Where(sq.Eq{"s.id": ids}).OrderBy("s.id")
}

func activeSchoolsQuery() sq.SelectBuilder {
	return selectSchools().Where(sq.Eq{"s.is_active": true}).OrderBy("s.name")
}

func filterSchools(b sq.SelectBuilder, filter school.QueryFilter) sq.SelectBuilder {
	if filter.Search != "" {
		b = b.Where(sq.ILike{"s.name": "%" + filter.Search + "%"})
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"s.is_active": *filter.IsActive})
	}
	return b
}

func memberCount(table, alias string) string {
	return "(SELECT count(*) FROM " + table + " m WHERE m.school_id = s.id) AS " + alias
}

func directoryQuery(filter school.QueryFilter, page core.Page) sq.SelectBuilder {
	b := selectSchools().Columns(
		memberCount("students", "students"),
		memberCount("teachers", "teachers"),
		memberCount("admins", "admins"),
	)
	b = filterSchools(b, filter)
	for _, ord := range filter.OrderingOrDefault() {
		b = b.OrderBy("s." + ord.String())
	}
	// stable pages when the ordering field has ties
	return b.OrderBy("s.id").Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
}

func directoryCountQuery(filter school.QueryFilter) sq.SelectBuilder {
	return filterSchools(psql.Select("count(*)").From("schools s"), filter)
}

func teachersFilter(b sq.SelectBuilder, schoolID string, filter school.TeacherFilter) sq.SelectBuilder {
	b = b.Where(sq.Eq{"t.school_id": schoolID})
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		b = b.Where(sq.Or{sq.ILike{"t.name": val}, sq.ILike{"t.surname": val}})
	}
	if filter.ClassID != "" {
		b = b.Where(sq.Expr("EXISTS (SELECT 1 FROM lessons l WHERE l.teacher_id = t.user_id AND l.class_id = ?)", filter.ClassID))
	}
	return b
}

func teachersQuery(schoolID string, filter school.TeacherFilter, page core.Page) sq.SelectBuilder {
	b := psql.Select(
		"t.user_id AS id", "t.school_id", "t.username", "t.name", "t.surname", "t.email", "t.phone", "t.created_at",
	).From("teachers t")
	return teachersFilter(b, schoolID, filter).
		OrderBy("t.surname", "t.name", "t.user_id").
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset()))
}

func teachersCountQuery(schoolID string, filter school.TeacherFilter) sq.SelectBuilder {
	return teachersFilter(psql.Select("count(*)").From("teachers t"), schoolID, filter)
}

const (
	schoolStatsQuery = `SELECT
	(SELECT count(*) FROM students WHERE school_id = $1) AS students,
	(SELECT count(*) FROM teachers WHERE school_id = $1) AS teachers,
	(SELECT count(*) FROM classes WHERE school_id = $1) AS classes,
	(SELECT count(*) FROM subjects WHERE school_id = $1) AS subjects`

	platformStatsQuery = `SELECT
	(SELECT count(*) FROM schools) AS schools,
	(SELECT count(*) FROM admins) AS admins,
	(SELECT count(*) FROM teachers) AS teachers,
	(SELECT count(*) FROM students) AS students,
	(SELECT count(*) FROM parents) AS parents`
)

func (repo schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	q, args, err := getSchoolQuery(id).ToSql()
	if err != nil {
		return school.School{}, errors.Wrap(err, "building query")
	}
	var row schoolRow
	if err = repo.exec.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "finding school by ID")
	}
	return row.unboil(), nil
}

func (repo schoolRepository) querySchools(ctx context.Context, b sq.SelectBuilder) ([]school.School, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []schoolRow
	if err = repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.unboil())
	}
	return schools, nil
}

func (repo schoolRepository) QuerySchoolsByID(ctx context.Context, ids []string) ([]school.School, error) {
	if len(ids) == 0 {
		return []school.School{}, nil
	}
	schools, err := repo.querySchools(ctx, schoolsByIDQuery(ids))
	return schools, errors.Wrap(err, "querying schools by ID")
}

func (repo schoolRepository) QueryActiveSchools(ctx context.Context) ([]school.School, error) {
	schools, err := repo.querySchools(ctx, activeSchoolsQuery())
	return schools, errors.Wrap(err, "querying active schools")
}

func (repo schoolRepository) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var total int
	err = repo.exec.GetContext(ctx, &total, q, args...)
	return total, err
}

func (repo schoolRepository) QueryDirectory(ctx context.Context, filter school.QueryFilter, page core.Page) ([]school.DirectoryEntry, int, error) {
	total, err := repo.count(ctx, directoryCountQuery(filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting schools")
	}

	q, args, err := directoryQuery(filter, page).ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []directoryRow
	if err = repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying school directory")
	}

	entries := make([]school.DirectoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, school.DirectoryEntry{
			School: r.unboil(),
			Count:  school.MemberCounts{Students: r.Students, Teachers: r.Teachers, Admins: r.Admins},
		})
	}
	return entries, total, nil
}

func (repo schoolRepository) CountSchoolMembers(ctx context.Context, schoolID string) (school.Stats, error) {
	var stats school.Stats
	if err := repo.exec.GetContext(ctx, &stats, schoolStatsQuery, schoolID); err != nil {
		return school.Stats{}, errors.Wrap(err, "counting school members")
	}
	return stats, nil
}

func (repo schoolRepository) CountPlatformMembers(ctx context.Context) (school.PlatformStats, error) {
	var stats school.PlatformStats
	if err := repo.exec.GetContext(ctx, &stats, platformStatsQuery); err != nil {
		return school.PlatformStats{}, errors.Wrap(err, "counting platform members")
	}
	return stats, nil
}

func (repo schoolRepository) QueryTeachers(ctx context.Context, schoolID string, filter school.TeacherFilter, page core.Page) ([]school.Teacher, int, error) {
	total, err := repo.count(ctx, teachersCountQuery(schoolID, filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting teachers")
	}

	q, args, err := teachersQuery(schoolID, filter, page).ToSql()
	if err != nil {
		return nil, 0, errors.Wrap(err, "building query")
	}
	var rows []teacherRow
	if err = repo.exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying teachers")
	}

	teachers := make([]school.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.unboil())
	}
	return teachers, total, nil
}

func createSchoolQuery(sch school.School) sq.InsertBuilder {
	return psql.Insert("schools").
		Columns("id", "name", "code", "address", "phone", "email", "logo", "is_active", "created_at", "updated_at").
		Values(
			sch.ID, sch.Name, sch.Code,
			null.NewString(sch.Address, sch.Address != ""),
			null.NewString(sch.Phone, sch.Phone != ""),
			null.NewString(sch.Email, sch.Email != ""),
			null.NewString(sch.Logo, sch.Logo != ""),
			sch.IsActive, sch.CreatedAt, sch.UpdatedAt,
		)
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)
	sch.CreatedAt, sch.UpdatedAt = now, now

	q, args, err := createSchoolQuery(sch).ToSql()
	if err != nil {
		return school.School{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return school.School{}, school.ErrCodeExists
		}
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}
