package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type resolverMock struct {
	access.ContextResolver
	clk *clock.Mock
}

func (r resolverMock) ResolveSchoolID(_ context.Context, usr user.User, explicit string) (string, error) {
	r.clk.Add(20 * time.Millisecond)
	if usr.Role == "" {
		return "", user.ErrRoleMissing
	}
	if explicit == "s-404" {
		return "", &access.DeniedError{SchoolID: explicit}
	}
	return "s-1", nil
}

func (r resolverMock) HasAccess(_ context.Context, _ user.User, schoolID string) bool {
	return schoolID == "s-1"
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.Wrap(user.ErrUnauthenticated, "parsing token"), "unauthenticated"},
		{user.ErrRoleMissing, "role_missing"},
		{errors.Wrapf(user.ErrUnknownRole, "janitor"), "unknown_role"},
		{access.ErrNoTenantAccess, "no_tenant_access"},
		{&access.DeniedError{SchoolID: "s-2"}, "access_denied"},
		{school.ErrNotFound, "not_found"},
		{errors.New("db down"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestResolverMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	clk := clock.NewMock()
	m := NewResolverMetrics(reg, resolverMock{clk: clk}, clk)
	ctx := context.Background()
	teacher := user.User{ID: "tch-1", Role: user.RoleTeacher}

	id, err := m.ResolveSchoolID(ctx, teacher, "")
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	_, err = m.ResolveSchoolID(ctx, teacher, "s-404")
	assert.True(t, errors.Is(err, access.ErrTenantAccessDenied))

	_, err = m.ResolveSchoolID(ctx, user.User{ID: "x"}, "")
	assert.True(t, errors.Is(err, user.ErrRoleMissing))

	assert.True(t, m.HasAccess(ctx, teacher, "s-1"))
	assert.False(t, m.HasAccess(ctx, teacher, "s-2"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.rec.calls.WithLabelValues("resolve_school_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rec.errors.WithLabelValues("resolve_school_id", "access_denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rec.errors.WithLabelValues("resolve_school_id", "role_missing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rec.calls.WithLabelValues("has_access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rec.errors.WithLabelValues("has_access", "access_denied")))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := NewHTTPMetrics(reg, clock.NewMock())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/schools/:id", func(ctx echo.Context) error {
		if ctx.Param("id") == "s-404" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return ctx.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/v1/schools/s-1", "/v1/schools/s-2", "/v1/schools/s-404"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ok := prometheus.Labels{"method": http.MethodGet, "path": "/v1/schools/:id", "status": "200"}
	notFound := prometheus.Labels{"method": http.MethodGet, "path": "/v1/schools/:id", "status": "404"}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.With(ok)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.With(notFound)))
}
