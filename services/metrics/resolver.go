package metrics

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

// ResolverMetrics is a metrics middleware for the tenant resolver.
type ResolverMetrics struct {
	// RED metrics
	rec *REDClient

	resolver access.ContextResolver
}

var _ access.ContextResolver = (*ResolverMetrics)(nil)

func NewResolverMetrics(reg prometheus.Registerer, r access.ContextResolver, clk clock.Clock) *ResolverMetrics {
	return &ResolverMetrics{
		rec:      NewREDClient(reg, "tenant_resolver", clk),
		resolver: r,
	}
}

func (m *ResolverMetrics) ResolveSchoolID(ctx context.Context, usr user.User, explicitSchoolID string) (string, error) {
	rec := m.rec.Record("resolve_school_id")
	id, err := m.resolver.ResolveSchoolID(ctx, usr, explicitSchoolID)
	return id, rec(err)
}

func (m *ResolverMetrics) AccessibleSchoolIDs(ctx context.Context, usr user.User) ([]string, error) {
	rec := m.rec.Record("accessible_school_ids")
	ids, err := m.resolver.AccessibleSchoolIDs(ctx, usr)
	return ids, rec(err)
}

func (m *ResolverMetrics) AccessibleSchools(ctx context.Context, usr user.User) ([]access.SchoolAccess, error) {
	rec := m.rec.Record("accessible_schools")
	schools, err := m.resolver.AccessibleSchools(ctx, usr)
	return schools, rec(err)
}

func (m *ResolverMetrics) SchoolContext(ctx context.Context, usr user.User, explicitSchoolID string) (access.SchoolContext, error) {
	rec := m.rec.Record("school_context")
	sc, err := m.resolver.SchoolContext(ctx, usr, explicitSchoolID)
	return sc, rec(err)
}

func (m *ResolverMetrics) AssertAccess(ctx context.Context, usr user.User, schoolID string) error {
	rec := m.rec.Record("assert_access")
	return rec(m.resolver.AssertAccess(ctx, usr, schoolID))
}

func (m *ResolverMetrics) HasAccess(ctx context.Context, usr user.User, schoolID string) bool {
	rec := m.rec.Record("has_access")
	ok := m.resolver.HasAccess(ctx, usr, schoolID)
	if !ok {
		_ = rec(access.ErrTenantAccessDenied)
	} else {
		_ = rec(nil)
	}
	return ok
}
