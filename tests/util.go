package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/identity"
	memdbrepos "github.com/trezcool/shule/storage/database/memdb"
)

// NewStore returns an empty in-memory store driven by a mock clock.
func NewStore(t *testing.T) (*memdbrepos.Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	store, err := memdbrepos.NewStore(clk)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store, clk
}

func CreateSchool(
	t *testing.T,
	repo school.Repository,
	id, name, code string,
	isActive bool,
	createdAt ...time.Time,
) school.School {
	t.Helper()
	sch := school.School{ID: id, Name: name, Code: code, IsActive: isActive}
	if len(createdAt) > 0 {
		sch.CreatedAt = createdAt[0].UTC()
	}
	sch, err := repo.CreateSchool(context.Background(), sch)
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

// AddMember binds usr to schools with their role.
func AddMember(t *testing.T, members access.MembershipWriter, usr user.User, schoolIDs ...string) user.User {
	t.Helper()
	for _, schoolID := range schoolIDs {
		if err := members.AddMembership(context.Background(), usr.Role, usr.ID, schoolID); err != nil {
			t.Fatalf("AddMember() failed: %v", err)
		}
	}
	return usr
}

// AddTeacher stores a teacher with a name, as listed in the teacher directory.
func AddTeacher(t *testing.T, store *memdbrepos.Store, id, schoolID, name, surname string) user.User {
	t.Helper()
	err := store.AddMember(memdbrepos.Member{
		Table:    string(access.TableTeachers),
		UserID:   id,
		SchoolID: schoolID,
		Name:     name,
		Surname:  surname,
	})
	if err != nil {
		t.Fatalf("AddTeacher() failed: %v", err)
	}
	return user.User{ID: id, Role: user.RoleTeacher}
}

func Token(t *testing.T, provider *identity.SessionProvider, usr user.User) string {
	t.Helper()
	token, err := provider.IssueToken(usr)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return token
}
