package memdbrepos

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	store *Store
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(store *Store) *schoolRepository {
	return &schoolRepository{store: store}
}

func (repo schoolRepository) allSchools(txn *memdb.Txn) ([]school.School, error) {
	it, err := txn.Get(schoolsTable, idIndex)
	if err != nil {
		return nil, errors.Wrap(err, "listing schools")
	}
	var schools []school.School
	for obj := it.Next(); obj != nil; obj = it.Next() {
		schools = append(schools, *obj.(*school.School))
	}
	return schools, nil
}

func (repo schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	txn := repo.store.db.Txn(false)
	raw, err := txn.First(schoolsTable, idIndex, id)
	if err != nil {
		return school.School{}, errors.Wrap(err, "finding school by ID")
	}
	if raw == nil {
		return school.School{}, school.ErrNotFound
	}
	return *raw.(*school.School), nil
}

func (repo schoolRepository) QuerySchoolsByID(_ context.Context, ids []string) ([]school.School, error) {
	txn := repo.store.db.Txn(false)
	schools := make([]school.School, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		raw, err := txn.First(schoolsTable, idIndex, id)
		if err != nil {
			return nil, errors.Wrap(err, "finding school by ID")
		}
		if raw != nil {
			schools = append(schools, *raw.(*school.School))
		}
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].ID < schools[j].ID })
	return schools, nil
}

func (repo schoolRepository) QueryActiveSchools(_ context.Context) ([]school.School, error) {
	txn := repo.store.db.Txn(false)
	it, err := txn.Get(schoolsTable, "active", true)
	if err != nil {
		return nil, errors.Wrap(err, "querying active schools")
	}
	schools := make([]school.School, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		schools = append(schools, *obj.(*school.School))
	}
	sort.SliceStable(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func matchesFilter(sch school.School, filter school.QueryFilter) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(sch.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.IsActive != nil && sch.IsActive != *filter.IsActive {
		return false
	}
	return true
}

// compareSchools compares a and b on field: -1, 0 or 1.
func compareSchools(a, b school.School, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "code":
		return strings.Compare(a.Code, b.Code)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func sortSchools(schools []school.School, ordering []core.DBOrdering) {
	sort.SliceStable(schools, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareSchools(schools[i], schools[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return schools[i].ID < schools[j].ID
	})
}

func paginate(n int, page core.Page) (start, end int) {
	start = page.Offset()
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = n
	if page.Size >= 0 && page.Size < n-start {
		end = start + page.Size
	}
	return start, end
}

func (repo schoolRepository) QueryDirectory(_ context.Context, filter school.QueryFilter, page core.Page) ([]school.DirectoryEntry, int, error) {
	txn := repo.store.db.Txn(false)
	all, err := repo.allSchools(txn)
	if err != nil {
		return nil, 0, err
	}

	matching := make([]school.School, 0, len(all))
	for _, sch := range all {
		if matchesFilter(sch, filter) {
			matching = append(matching, sch)
		}
	}
	sortSchools(matching, filter.OrderingOrDefault())

	start, end := paginate(len(matching), page)
	entries := make([]school.DirectoryEntry, 0, end-start)
	for _, sch := range matching[start:end] {
		entry := school.DirectoryEntry{School: sch}
		counts := []struct {
			table access.MemberTable
			dst   *int
		}{
			{access.TableStudents, &entry.Count.Students},
			{access.TableTeachers, &entry.Count.Teachers},
			{access.TableAdmins, &entry.Count.Admins},
		}
		for _, c := range counts {
			if *c.dst, err = count(txn, membersTable, "school", string(c.table), sch.ID); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, len(matching), nil
}

func (repo schoolRepository) CountSchoolMembers(_ context.Context, schoolID string) (school.Stats, error) {
	txn := repo.store.db.Txn(false)
	var stats school.Stats
	var err error
	if stats.Students, err = count(txn, membersTable, "school", string(access.TableStudents), schoolID); err != nil {
		return school.Stats{}, err
	}
	if stats.Teachers, err = count(txn, membersTable, "school", string(access.TableTeachers), schoolID); err != nil {
		return school.Stats{}, err
	}
	if stats.Classes, err = count(txn, classesTable, "school", schoolID); err != nil {
		return school.Stats{}, err
	}
	if stats.Subjects, err = count(txn, subjectsTable, "school", schoolID); err != nil {
		return school.Stats{}, err
	}
	return stats, nil
}

func (repo schoolRepository) CountPlatformMembers(_ context.Context) (school.PlatformStats, error) {
	txn := repo.store.db.Txn(false)
	var stats school.PlatformStats
	var err error
	if stats.Schools, err = count(txn, schoolsTable, idIndex); err != nil {
		return school.PlatformStats{}, err
	}
	tables := []struct {
		table access.MemberTable
		dst   *int
	}{
		{access.TableAdmins, &stats.Admins},
		{access.TableTeachers, &stats.Teachers},
		{access.TableStudents, &stats.Students},
		{access.TableParents, &stats.Parents},
	}
	for _, t := range tables {
		if *t.dst, err = count(txn, membersTable, "table", string(t.table)); err != nil {
			return school.PlatformStats{}, err
		}
	}
	return stats, nil
}

func (repo schoolRepository) teachesClass(txn *memdb.Txn, teacherID, classID string) (bool, error) {
	it, err := txn.Get(lessonsTable, "class", classID)
	if err != nil {
		return false, errors.Wrap(err, "querying lessons")
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if obj.(*Lesson).TeacherID == teacherID {
			return true, nil
		}
	}
	return false, nil
}

func (repo schoolRepository) QueryTeachers(_ context.Context, schoolID string, filter school.TeacherFilter, page core.Page) ([]school.Teacher, int, error) {
	txn := repo.store.db.Txn(false)
	it, err := txn.Get(membersTable, "school", string(access.TableTeachers), schoolID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying teachers")
	}

	search := strings.ToLower(filter.Search)
	var matching []school.Teacher
	for obj := it.Next(); obj != nil; obj = it.Next() {
		m := obj.(*Member)
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Surname), search) {
			continue
		}
		if filter.ClassID != "" {
			ok, err := repo.teachesClass(txn, m.UserID, filter.ClassID)
			if err != nil {
				return nil, 0, err
			}
			if !ok {
				continue
			}
		}
		matching = append(matching, school.Teacher{
			ID:        m.UserID,
			SchoolID:  m.SchoolID,
			Username:  m.Username,
			Name:      m.Name,
			Surname:   m.Surname,
			Email:     m.Email,
			Phone:     m.Phone,
			CreatedAt: m.CreatedAt,
		})
	}
	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		if a.Surname != b.Surname {
			return a.Surname < b.Surname
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	start, end := paginate(len(matching), page)
	return matching[start:end], len(matching), nil
}

func (repo schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	txn := repo.store.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(schoolsTable, "code", sch.Code)
	if err != nil {
		return school.School{}, errors.Wrap(err, "checking school code")
	}
	if existing != nil {
		return school.School{}, school.ErrCodeExists
	}

	if sch.ID == "" {
		sch.ID = uuid.New().String()
	}
	now := repo.store.now()
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = now
	}
	sch.UpdatedAt = now

	if err = txn.Insert(schoolsTable, &sch); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	txn.Commit()
	return sch, nil
}
