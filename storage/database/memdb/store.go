package memdbrepos

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
)

// table names; member tables are named after access.MemberTable
const (
	schoolsTable  = "schools"
	membersTable  = "members"
	classesTable  = "classes"
	subjectsTable = "subjects"
	lessonsTable  = "lessons"

	idIndex = "id"
)

// Member is a row of a membership table.
type Member struct {
	Table     string
	UserID    string
	SchoolID  string
	Username  string
	Name      string
	Surname   string
	Email     string
	Phone     string
	CreatedAt time.Time
}

type Class struct {
	ID       string
	SchoolID string
	Name     string
}

type Subject struct {
	ID       string
	SchoolID string
	Name     string
}

// Lesson binds a teacher to a class for a subject.
type Lesson struct {
	ID        string
	SchoolID  string
	ClassID   string
	SubjectID string
	TeacherID string
}

func schema() *memdb.DBSchema {
	bySchool := func(name string) *memdb.IndexSchema {
		return &memdb.IndexSchema{Name: name, Indexer: &memdb.StringFieldIndex{Field: "SchoolID"}}
	}
	byID := &memdb.IndexSchema{Name: idIndex, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}}

	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			schoolsTable: {
				Name: schoolsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: byID,
					"code": {
						Name:    "code",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Code", Lowercase: true},
					},
					"active": {
						Name:    "active",
						Indexer: &memdb.BoolFieldIndex{Field: "IsActive"},
					},
				},
			},
			membersTable: {
				Name: membersTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:   idIndex,
						Unique: true,
						Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Table"},
							&memdb.StringFieldIndex{Field: "UserID"},
							&memdb.StringFieldIndex{Field: "SchoolID"},
						}},
					},
					"member": {
						Name: "member",
						Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Table"},
							&memdb.StringFieldIndex{Field: "UserID"},
						}},
					},
					"school": {
						Name: "school",
						Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Table"},
							&memdb.StringFieldIndex{Field: "SchoolID"},
						}},
					},
					"table": {
						Name:    "table",
						Indexer: &memdb.StringFieldIndex{Field: "Table"},
					},
				},
			},
			classesTable: {
				Name:    classesTable,
				Indexes: map[string]*memdb.IndexSchema{idIndex: byID, "school": bySchool("school")},
			},
			subjectsTable: {
				Name:    subjectsTable,
				Indexes: map[string]*memdb.IndexSchema{idIndex: byID, "school": bySchool("school")},
			},
			lessonsTable: {
				Name: lessonsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: byID,
					"class": {Name: "class", Indexer: &memdb.StringFieldIndex{Field: "ClassID"}},
				},
			},
		},
	}
}

// Store is an in-memory database implementing the app repositories.
// It backs the "memory" database engine and the tests.
type Store struct {
	db    *memdb.MemDB
	clock clock.Clock
}

// NewStore returns an empty Store. A nil clk means the wall clock.
func NewStore(clk clock.Clock) (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.Wrap(err, "creating memdb")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Store{db: db, clock: clk}, nil
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Store) insert(table string, obj interface{}) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(table, obj); err != nil {
		return errors.Wrapf(err, "inserting into %s", table)
	}
	txn.Commit()
	return nil
}

func (s *Store) AddClass(c Class) error {
	return s.insert(classesTable, &c)
}

func (s *Store) AddSubject(sub Subject) error {
	return s.insert(subjectsTable, &sub)
}

func (s *Store) AddLesson(l Lesson) error {
	return s.insert(lessonsTable, &l)
}

// AddMember stores m. Members of single-school tables move to m.SchoolID,
// super admins gain one more school.
func (s *Store) AddMember(m Member) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := putMember(txn, &m); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func putMember(txn *memdb.Txn, m *Member) error {
	if m.Table != string(access.TableSuperAdminSchools) {
		if _, err := txn.DeleteAll(membersTable, "member", m.Table, m.UserID); err != nil {
			return errors.Wrap(err, "deleting previous membership")
		}
	}
	return errors.Wrap(txn.Insert(membersTable, m), "inserting membership")
}

func count(txn *memdb.Txn, table, index string, args ...interface{}) (int, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n, nil
}
