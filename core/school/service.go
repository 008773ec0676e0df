package school

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound        = errors.New("school not found")
	ErrCodeExists      = errors.New("a school with this code already exists")
	ErrInvalidOrdering = errors.New("invalid ordering")
)

type (
	Repository interface {
		// GetSchool returns ErrNotFound if no School has the given id.
		GetSchool(ctx context.Context, id string) (School, error)
		// QuerySchoolsByID returns the Schools with the given ids, ordered by id. Unknown ids are skipped.
		QuerySchoolsByID(ctx context.Context, ids []string) ([]School, error)
		// QueryActiveSchools returns all active Schools ordered by name.
		QueryActiveSchools(ctx context.Context) ([]School, error)
		// QueryDirectory returns one page of Schools matching filter, with their member counts,
		// and the total number of matching Schools.
		// QueryFilter.Search does a case-insensitive match on School.Name.
		QueryDirectory(ctx context.Context, filter QueryFilter, page core.Page) ([]DirectoryEntry, int, error)
		CountSchoolMembers(ctx context.Context, schoolID string) (Stats, error)
		CountPlatformMembers(ctx context.Context) (PlatformStats, error)
		// QueryTeachers returns one page of a School's teachers and the total number of matching teachers.
		// TeacherFilter.Search does a case-insensitive match on Teacher.Name or Teacher.Surname;
		// TeacherFilter.ClassID keeps teachers giving at least one lesson to the class.
		QueryTeachers(ctx context.Context, schoolID string, filter TeacherFilter, page core.Page) ([]Teacher, int, error)
		// CreateSchool returns ErrCodeExists if the code is taken.
		CreateSchool(ctx context.Context, sch School) (School, error)
	}

	ServiceInterface interface {
		GetByID(ctx context.Context, id string) (School, error)
		GetByIDs(ctx context.Context, ids []string) ([]School, error)
		IsActive(ctx context.Context, id string) bool
		QueryActive(ctx context.Context) ([]School, error)
		Query(ctx context.Context, filter QueryFilter, page int) (Directory, error)
		Stats(ctx context.Context, id string) (Stats, error)
		PlatformStats(ctx context.Context) (PlatformStats, error)
		QueryTeachers(ctx context.Context, schoolID string, filter TeacherFilter, page int) (TeacherPage, error)
	}

	// Service answers read-only questions about schools.
	// Every school-scoped method expects an id the caller was granted access to.
	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	id = core.CleanString(id)
	if id == "" {
		return School{}, ErrNotFound
	}
	return svc.repo.GetSchool(ctx, id)
}

func (svc *Service) GetByIDs(ctx context.Context, ids []string) ([]School, error) {
	if len(ids) == 0 {
		return []School{}, nil
	}
	return svc.repo.QuerySchoolsByID(ctx, ids)
}

// IsActive reports whether the school exists and is active.
func (svc *Service) IsActive(ctx context.Context, id string) bool {
	sch, err := svc.GetByID(ctx, id)
	if err != nil {
		return false
	}
	return sch.IsActive
}

func (svc *Service) QueryActive(ctx context.Context) ([]School, error) {
	schools, err := svc.repo.QueryActiveSchools(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying active schools")
	}
	return schools, nil
}

// Query returns a page (1-based) of the school directory.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, page int) (Directory, error) {
	pg := core.Page{Number: normalizePage(page), Size: DefaultPageSize}
	entries, total, err := svc.repo.QueryDirectory(ctx, filter, pg)
	if err != nil {
		return Directory{}, errors.Wrap(err, "querying school directory")
	}
	if entries == nil {
		entries = []DirectoryEntry{}
	}
	return Directory{Data: entries, Pagination: core.NewPagination(pg, total)}, nil
}

func (svc *Service) Stats(ctx context.Context, id string) (Stats, error) {
	sch, err := svc.GetByID(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	stats, err := svc.repo.CountSchoolMembers(ctx, sch.ID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting school members")
	}
	return stats, nil
}

func (svc *Service) PlatformStats(ctx context.Context) (PlatformStats, error) {
	stats, err := svc.repo.CountPlatformMembers(ctx)
	if err != nil {
		return PlatformStats{}, errors.Wrap(err, "counting platform members")
	}
	return stats, nil
}

// QueryTeachers returns a page (1-based) of a school's teacher directory.
func (svc *Service) QueryTeachers(ctx context.Context, schoolID string, filter TeacherFilter, page int) (TeacherPage, error) {
	sch, err := svc.GetByID(ctx, schoolID)
	if err != nil {
		return TeacherPage{}, err
	}
	pg := core.Page{Number: normalizePage(page), Size: DefaultPageSize}
	teachers, total, err := svc.repo.QueryTeachers(ctx, sch.ID, filter, pg)
	if err != nil {
		return TeacherPage{}, errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []Teacher{}
	}
	return TeacherPage{Data: teachers, Pagination: core.NewPagination(pg, total)}, nil
}

// maxPage keeps the row offset of any page representable.
const maxPage = math.MaxInt/DefaultPageSize + 1

func normalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > maxPage:
		return maxPage
	}
	return page
}
