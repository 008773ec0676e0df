package tests

import (
	"net/http"
	"testing"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_userApi_me(t *testing.T) {
	app, fx := setup(t)

	kin := testutil.CreateSchool(t, fx.schools, "s-kin", "Kinshasa High", "kin", true)
	goma := testutil.CreateSchool(t, fx.schools, "s-goma", "Goma Academy", "goma", true)
	bkv := testutil.CreateSchool(t, fx.schools, "s-bkv", "Bukavu College", "bkv", false)

	superAdmin := testutil.AddMember(t, fx.members, user.User{ID: "sa-1", Role: user.RoleSuperAdmin}, kin.ID, goma.ID)
	loneSuperAdmin := testutil.AddMember(t, fx.members, user.User{ID: "sa-2", Role: user.RoleSuperAdmin}, bkv.ID)
	idleSuperAdmin := user.User{ID: "sa-3", Role: user.RoleSuperAdmin}
	teacher := testutil.AddMember(t, fx.members, user.User{ID: "tch-1", Role: user.RoleTeacher, Email: "t@test.cd"}, goma.ID)
	orphan := user.User{ID: "std-404", Role: user.RoleStudent}

	me := func(usr user.User, sc access.SchoolContext) []byte {
		return marchallObj(t, MeResponse{User: usr, School: sc})
	}

	tests := []httpTest{
		{name: "auth required", path: "/v1/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errUnauthenticated)},
		{name: "invalid token", path: "/v1/me", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errUnauthenticated)},
		{
			name: "role missing", path: "/v1/me", token: fx.token(t, user.User{ID: "usr-1"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errRoleMissing),
		},
		{
			name: "unknown role", path: "/v1/me", token: fx.token(t, user.User{ID: "usr-1", Role: "janitor"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errUnknownRole),
		},
		{
			name: "superadmin default school", path: "/v1/me", token: fx.token(t, superAdmin),
			wantCode: http.StatusOK,
			wantData: me(superAdmin, access.SchoolContext{
				SchoolID: goma.ID, SchoolName: goma.Name, UserRole: user.RoleSuperAdmin, HasMultipleSchools: true,
			}),
		},
		{
			name: "superadmin explicit school", path: "/v1/me?school_id=" + kin.ID, token: fx.token(t, superAdmin),
			wantCode: http.StatusOK,
			wantData: me(superAdmin, access.SchoolContext{
				SchoolID: kin.ID, SchoolName: kin.Name, UserRole: user.RoleSuperAdmin, HasMultipleSchools: true,
			}),
		},
		{
			name: "superadmin foreign school", path: "/v1/me?school_id=" + bkv.ID, token: fx.token(t, superAdmin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errAccessDenied),
		},
		{
			name: "superadmin with one school", path: "/v1/me", token: fx.token(t, loneSuperAdmin),
			wantCode: http.StatusOK,
			wantData: me(loneSuperAdmin, access.SchoolContext{SchoolID: bkv.ID, SchoolName: bkv.Name, UserRole: user.RoleSuperAdmin}),
		},
		{
			name: "superadmin without school", path: "/v1/me", token: fx.token(t, idleSuperAdmin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errNoTenantAccess),
		},
		{
			name: "teacher", path: "/v1/me", token: fx.token(t, teacher),
			wantCode: http.StatusOK,
			wantData: me(teacher, access.SchoolContext{SchoolID: goma.ID, SchoolName: goma.Name, UserRole: user.RoleTeacher}),
		},
		{
			name: "teacher ignores explicit school", path: "/v1/me?school_id=" + kin.ID, token: fx.token(t, teacher),
			wantCode: http.StatusOK,
			wantData: me(teacher, access.SchoolContext{SchoolID: goma.ID, SchoolName: goma.Name, UserRole: user.RoleTeacher}),
		},
		{
			name: "student without school", path: "/v1/me", token: fx.token(t, orphan),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errNoTenantAccess),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_schools(t *testing.T) {
	app, fx := setup(t)

	kin := testutil.CreateSchool(t, fx.schools, "s-kin", "Kinshasa High", "kin", true)
	goma := testutil.CreateSchool(t, fx.schools, "s-goma", "Goma Academy", "goma", true)

	superAdmin := testutil.AddMember(t, fx.members, user.User{ID: "sa-1", Role: user.RoleSuperAdmin}, kin.ID, goma.ID)
	parent := testutil.AddMember(t, fx.members, user.User{ID: "par-1", Role: user.RoleParent}, kin.ID)

	tests := []httpTest{
		{name: "auth required", path: "/v1/me/schools", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errUnauthenticated)},
		{
			name: "superadmin", path: "/v1/me/schools", token: fx.token(t, superAdmin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []access.SchoolAccess{
				{SchoolID: goma.ID, SchoolName: goma.Name, Role: user.RoleSuperAdmin},
				{SchoolID: kin.ID, SchoolName: kin.Name, Role: user.RoleSuperAdmin},
			}),
		},
		{
			name: "parent", path: "/v1/me/schools", token: fx.token(t, parent),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []access.SchoolAccess{{SchoolID: kin.ID, SchoolName: kin.Name, Role: user.RoleParent}}),
		},
		{
			name: "no membership", path: "/v1/me/schools", token: fx.token(t, user.User{ID: "adm-1", Role: user.RoleAdmin}),
			wantCode: http.StatusOK, wantData: []byte("[]"),
		},
		{
			name: "roles", path: "/v1/me/roles", token: fx.token(t, parent),
			wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles),
		},
	}
	runHTTPTests(t, app, tests)
}
