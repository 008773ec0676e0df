package access

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var errRepoDown = errors.New("repo down")

type membershipRepoMock struct {
	single   map[MemberTable]map[string]string // table -> user -> school
	multi    map[string][]string               // superadmin -> schools
	failUser string
	calls    int
}

func (m *membershipRepoMock) GetMemberSchoolID(_ context.Context, table MemberTable, userID string) (string, error) {
	m.calls++
	if userID == m.failUser {
		return "", errRepoDown
	}
	if schoolID, ok := m.single[table][userID]; ok {
		return schoolID, nil
	}
	return "", ErrNoMembership
}

func (m *membershipRepoMock) QueryAdministeredSchoolIDs(_ context.Context, userID string) ([]string, error) {
	m.calls++
	if userID == m.failUser {
		return nil, errRepoDown
	}
	return m.multi[userID], nil
}

type schoolSvcMock struct {
	school.ServiceInterface
	schools map[string]school.School
}

func (s schoolSvcMock) GetByID(_ context.Context, id string) (school.School, error) {
	sch, ok := s.schools[id]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (s schoolSvcMock) GetByIDs(_ context.Context, ids []string) ([]school.School, error) {
	res := make([]school.School, 0, len(ids))
	for _, id := range ids {
		if sch, ok := s.schools[id]; ok {
			res = append(res, sch)
		}
	}
	return res, nil
}

var (
	superAdmin   = user.User{ID: "sa-1", Role: user.RoleSuperAdmin}
	loneAdmin    = user.User{ID: "sa-2", Role: user.RoleSuperAdmin}
	idleAdmin    = user.User{ID: "sa-3", Role: user.RoleSuperAdmin}
	schoolAdmin  = user.User{ID: "adm-1", Role: user.RoleAdmin}
	teacher      = user.User{ID: "tch-1", Role: user.RoleTeacher}
	student      = user.User{ID: "std-1", Role: user.RoleStudent}
	parent       = user.User{ID: "par-1", Role: user.RoleParent}
	orphan       = user.User{ID: "tch-404", Role: user.RoleTeacher}
	brokenUser   = user.User{ID: "tch-500", Role: user.RoleTeacher}
	stranger     = user.User{ID: "x-1", Role: "janitor"}
	ghostTeacher = user.User{ID: "tch-2", Role: user.RoleTeacher}
)

func newTestResolver() (*Resolver, *membershipRepoMock) {
	repo := &membershipRepoMock{
		single: map[MemberTable]map[string]string{
			TableAdmins:   {"adm-1": "s-alpha"},
			TableTeachers: {"tch-1": "s-beta", "tch-2": "s-gone"},
			TableStudents: {"std-1": "s-alpha"},
			TableParents:  {"par-1": "s-beta"},
		},
		multi: map[string][]string{
			"sa-1": {"s-gamma", "s-alpha", "s-beta", "s-alpha"},
			"sa-2": {"s-beta"},
		},
		failUser: "tch-500",
	}
	schools := schoolSvcMock{schools: map[string]school.School{
		"s-alpha": {ID: "s-alpha", Name: "Alpha"},
		"s-beta":  {ID: "s-beta", Name: "Beta"},
		"s-gamma": {ID: "s-gamma", Name: "Gamma"},
	}}
	return NewResolver(repo, schools), repo
}

func TestResolver_ResolveSchoolID(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		name     string
		usr      user.User
		explicit string
		want     string
		wantErr  error
	}{
		{name: "superadmin default is smallest id", usr: superAdmin, want: "s-alpha"},
		{name: "superadmin explicit member school", usr: superAdmin, explicit: "s-gamma", want: "s-gamma"},
		{name: "superadmin explicit foreign school", usr: superAdmin, explicit: "s-delta", wantErr: ErrTenantAccessDenied},
		{name: "superadmin single school", usr: loneAdmin, want: "s-beta"},
		{name: "superadmin without schools", usr: idleAdmin, wantErr: ErrNoTenantAccess},
		{name: "superadmin without schools and explicit id", usr: idleAdmin, explicit: "s-alpha", wantErr: ErrNoTenantAccess},
		{name: "admin", usr: schoolAdmin, want: "s-alpha"},
		{name: "teacher", usr: teacher, want: "s-beta"},
		{name: "teacher ignores explicit id", usr: teacher, explicit: "s-alpha", want: "s-beta"},
		{name: "student", usr: student, want: "s-alpha"},
		{name: "parent", usr: parent, want: "s-beta"},
		{name: "teacher without membership", usr: orphan, wantErr: ErrNoTenantAccess},
		{name: "lookup failure", usr: brokenUser, wantErr: errRepoDown},
		{name: "unknown role", usr: stranger, wantErr: user.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveSchoolID(context.Background(), tt.usr, tt.explicit)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v, wantErr %v", err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_ResolveSchoolID_DeniedErrorCarriesSchool(t *testing.T) {
	r, _ := newTestResolver()

	_, err := r.ResolveSchoolID(context.Background(), superAdmin, "s-delta")
	var dErr *DeniedError
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, "s-delta", dErr.SchoolID)
}

func TestResolver_ResolveSchoolID_IsDeterministic(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	first, err := r.ResolveSchoolID(ctx, superAdmin, "")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := r.ResolveSchoolID(ctx, superAdmin, "")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestResolver_ResolvedSchoolIsAccessible(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	for _, usr := range []user.User{superAdmin, loneAdmin, schoolAdmin, teacher, student, parent} {
		schoolID, err := r.ResolveSchoolID(ctx, usr, "")
		require.NoError(t, err, usr.ID)
		assert.NoError(t, r.AssertAccess(ctx, usr, schoolID), usr.ID)
	}
}

func TestResolver_AssertAccess(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		name     string
		usr      user.User
		schoolID string
		wantErr  error
	}{
		{name: "superadmin member school", usr: superAdmin, schoolID: "s-beta"},
		{name: "superadmin foreign school", usr: superAdmin, schoolID: "s-delta", wantErr: ErrTenantAccessDenied},
		{name: "teacher own school", usr: teacher, schoolID: "s-beta"},
		{name: "teacher other school", usr: teacher, schoolID: "s-alpha", wantErr: ErrTenantAccessDenied},
		{name: "empty school id", usr: teacher, schoolID: "", wantErr: ErrTenantAccessDenied},
		{name: "no membership", usr: orphan, schoolID: "s-beta", wantErr: ErrTenantAccessDenied},
		{name: "superadmin without schools", usr: idleAdmin, schoolID: "s-beta", wantErr: ErrTenantAccessDenied},
		{name: "lookup failure propagates", usr: brokenUser, schoolID: "s-beta", wantErr: errRepoDown},
		{name: "unknown role", usr: stranger, schoolID: "s-beta", wantErr: user.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.AssertAccess(context.Background(), tt.usr, tt.schoolID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResolver_HasAccess(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	assert.True(t, r.HasAccess(ctx, superAdmin, "s-gamma"))
	assert.True(t, r.HasAccess(ctx, parent, "s-beta"))
	assert.False(t, r.HasAccess(ctx, parent, "s-alpha"))
	assert.False(t, r.HasAccess(ctx, orphan, "s-beta"))
	assert.False(t, r.HasAccess(ctx, brokenUser, "s-beta"))
	assert.False(t, r.HasAccess(ctx, stranger, "s-beta"))
}

func TestResolver_AccessibleSchoolIDs(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	ids, err := r.AccessibleSchoolIDs(ctx, superAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-alpha", "s-beta", "s-gamma"}, ids)

	ids, err = r.AccessibleSchoolIDs(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-beta"}, ids)

	ids, err = r.AccessibleSchoolIDs(ctx, orphan)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolver_AccessibleSchools(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	got, err := r.AccessibleSchools(ctx, superAdmin)
	require.NoError(t, err)
	assert.Equal(t, []SchoolAccess{
		{SchoolID: "s-alpha", SchoolName: "Alpha", Role: user.RoleSuperAdmin},
		{SchoolID: "s-beta", SchoolName: "Beta", Role: user.RoleSuperAdmin},
		{SchoolID: "s-gamma", SchoolName: "Gamma", Role: user.RoleSuperAdmin},
	}, got)

	got, err = r.AccessibleSchools(ctx, ghostTeacher)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.AccessibleSchools(ctx, brokenUser)
	assert.True(t, errors.Is(err, errRepoDown))
}

func TestResolver_SchoolContext(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	tests := []struct {
		name     string
		usr      user.User
		explicit string
		want     SchoolContext
		wantErr  error
	}{
		{
			name: "superadmin default", usr: superAdmin,
			want: SchoolContext{SchoolID: "s-alpha", SchoolName: "Alpha", UserRole: user.RoleSuperAdmin, HasMultipleSchools: true},
		},
		{
			name: "superadmin explicit", usr: superAdmin, explicit: "s-gamma",
			want: SchoolContext{SchoolID: "s-gamma", SchoolName: "Gamma", UserRole: user.RoleSuperAdmin, HasMultipleSchools: true},
		},
		{
			name: "superadmin with one school", usr: loneAdmin,
			want: SchoolContext{SchoolID: "s-beta", SchoolName: "Beta", UserRole: user.RoleSuperAdmin},
		},
		{
			name: "student", usr: student,
			want: SchoolContext{SchoolID: "s-alpha", SchoolName: "Alpha", UserRole: user.RoleStudent},
		},
		{
			name: "membership to removed school", usr: ghostTeacher,
			want: SchoolContext{SchoolID: "s-gone", UserRole: user.RoleTeacher},
		},
		{name: "denied", usr: superAdmin, explicit: "s-delta", wantErr: ErrTenantAccessDenied},
		{name: "no membership", usr: orphan, wantErr: ErrNoTenantAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SchoolContext(ctx, tt.usr, tt.explicit)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Register(t *testing.T) {
	r, repo := newTestResolver()
	ctx := context.Background()
	auditor := user.User{ID: "aud-1", Role: "auditor"}

	_, err := r.ResolveSchoolID(ctx, auditor, "")
	assert.True(t, errors.Is(err, user.ErrUnknownRole))

	r.Register("auditor", Capability{
		Memberships: func(context.Context, MembershipRepository, string) ([]string, error) {
			return []string{"s-zeta", "s-eta"}, nil
		},
		MultiSchool: true,
	})
	before := repo.calls
	got, err := r.ResolveSchoolID(ctx, auditor, "")
	require.NoError(t, err)
	assert.Equal(t, "s-eta", got)
	assert.Equal(t, before, repo.calls, "custom capability should not hit the repository")
}

func TestDefaultCapabilities(t *testing.T) {
	caps := DefaultCapabilities()
	for _, role := range user.AllRoles {
		capability, ok := caps[role]
		require.True(t, ok, role)
		assert.NotNil(t, capability.Memberships, role)
		assert.Equal(t, role == user.RoleSuperAdmin, capability.MultiSchool, role)
	}
	assert.Len(t, caps, len(user.AllRoles))
}

func TestTableOf(t *testing.T) {
	table, ok := TableOf(user.RoleSuperAdmin)
	assert.True(t, ok)
	assert.Equal(t, TableSuperAdminSchools, table)

	table, ok = TableOf(user.RoleParent)
	assert.True(t, ok)
	assert.Equal(t, TableParents, table)

	_, ok = TableOf("janitor")
	assert.False(t, ok)
}
