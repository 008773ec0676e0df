package access

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	// SchoolAccess is a school a user can act on, and the role they act with.
	SchoolAccess struct {
		SchoolID   string `json:"school_id"`
		SchoolName string `json:"school_name"`
		Role       string `json:"role"`
	}

	// SchoolContext is the tenant a request runs against.
	SchoolContext struct {
		SchoolID           string `json:"school_id"`
		SchoolName         string `json:"school_name,omitempty"`
		UserRole           string `json:"user_role"`
		HasMultipleSchools bool   `json:"has_multiple_schools"`
	}

	// ContextResolver decides which school a request is scoped to.
	ContextResolver interface {
		ResolveSchoolID(ctx context.Context, usr user.User, explicitSchoolID string) (string, error)
		AccessibleSchoolIDs(ctx context.Context, usr user.User) ([]string, error)
		AccessibleSchools(ctx context.Context, usr user.User) ([]SchoolAccess, error)
		SchoolContext(ctx context.Context, usr user.User, explicitSchoolID string) (SchoolContext, error)
		AssertAccess(ctx context.Context, usr user.User, schoolID string) error
		HasAccess(ctx context.Context, usr user.User, schoolID string) bool
	}

	// Resolver resolves tenants from membership records. It holds no per-request state.
	Resolver struct {
		repo    MembershipRepository
		schools school.ServiceInterface
		caps    map[string]Capability
	}
)

var _ ContextResolver = (*Resolver)(nil)

func NewResolver(repo MembershipRepository, schools school.ServiceInterface) *Resolver {
	return &Resolver{
		repo:    repo,
		schools: schools,
		caps:    DefaultCapabilities(),
	}
}

// Register sets the capability of role, replacing any previous one.
// It must be called before the Resolver is shared.
func (r *Resolver) Register(role string, capability Capability) {
	r.caps[role] = capability
}

func (r *Resolver) capability(role string) (Capability, error) {
	capability, ok := r.caps[role]
	if !ok || capability.Memberships == nil {
		return Capability{}, errors.Wrapf(user.ErrUnknownRole, "no membership lookup for role %q", role)
	}
	return capability, nil
}

// AccessibleSchoolIDs returns the sorted, deduplicated ids of the schools usr can act on.
// The result is empty, not an error, when usr has no membership.
func (r *Resolver) AccessibleSchoolIDs(ctx context.Context, usr user.User) ([]string, error) {
	capability, err := r.capability(usr.Role)
	if err != nil {
		return nil, err
	}
	ids, err := capability.Memberships(ctx, r.repo, usr.ID)
	if err != nil {
		return nil, err
	}
	return uniqueSorted(ids), nil
}

// ResolveSchoolID returns the school a request of usr is scoped to.
//
// Multi-school roles get explicitSchoolID when it is one of their schools, and their
// lexicographically smallest school id when it is empty.
// Single-school roles always get their one school; explicitSchoolID is ignored.
func (r *Resolver) ResolveSchoolID(ctx context.Context, usr user.User, explicitSchoolID string) (string, error) {
	capability, err := r.capability(usr.Role)
	if err != nil {
		return "", err
	}
	ids, err := capability.Memberships(ctx, r.repo, usr.ID)
	if err != nil {
		return "", err
	}
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return "", errors.Wrapf(ErrNoTenantAccess, "%s %s", usr.Role, usr.ID)
	}

	if !capability.MultiSchool || explicitSchoolID == "" {
		return ids[0], nil
	}
	if !contains(ids, explicitSchoolID) {
		return "", denied(explicitSchoolID)
	}
	return explicitSchoolID, nil
}

// AssertAccess returns nil if usr can act on schoolID, and a *DeniedError otherwise.
// Lookup failures are returned as they are.
func (r *Resolver) AssertAccess(ctx context.Context, usr user.User, schoolID string) error {
	ids, err := r.AccessibleSchoolIDs(ctx, usr)
	if err != nil {
		return err
	}
	if schoolID == "" || !contains(ids, schoolID) {
		return denied(schoolID)
	}
	return nil
}

// HasAccess is AssertAccess as a boolean; every failure reads as false.
func (r *Resolver) HasAccess(ctx context.Context, usr user.User, schoolID string) bool {
	return r.AssertAccess(ctx, usr, schoolID) == nil
}

// AccessibleSchools returns the schools usr can act on, ordered by school id.
// Memberships pointing to unknown schools are skipped.
func (r *Resolver) AccessibleSchools(ctx context.Context, usr user.User) ([]SchoolAccess, error) {
	ids, err := r.AccessibleSchoolIDs(ctx, usr)
	if err != nil {
		return nil, err
	}
	schools, err := r.schools.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}

	res := make([]SchoolAccess, 0, len(schools))
	for _, sch := range schools {
		res = append(res, SchoolAccess{SchoolID: sch.ID, SchoolName: sch.Name, Role: usr.Role})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SchoolID < res[j].SchoolID })
	return res, nil
}

// SchoolContext resolves the school of a request and describes it.
func (r *Resolver) SchoolContext(ctx context.Context, usr user.User, explicitSchoolID string) (SchoolContext, error) {
	schoolID, err := r.ResolveSchoolID(ctx, usr, explicitSchoolID)
	if err != nil {
		return SchoolContext{}, err
	}
	sc := SchoolContext{SchoolID: schoolID, UserRole: usr.Role}

	if capability, _ := r.capability(usr.Role); capability.MultiSchool {
		ids, err := r.AccessibleSchoolIDs(ctx, usr)
		if err != nil {
			return SchoolContext{}, err
		}
		sc.HasMultipleSchools = len(ids) > 1
	}

	sch, err := r.schools.GetByID(ctx, schoolID)
	switch {
	case err == nil:
		sc.SchoolName = sch.Name
	case errors.Is(err, school.ErrNotFound):
		// membership to a removed school: the id still scopes the request
	default:
		return SchoolContext{}, errors.Wrap(err, "getting school")
	}
	return sc, nil
}

func uniqueSorted(ids []string) []string {
	res := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

func contains(sorted []string, id string) bool {
	i := sort.SearchStrings(sorted, id)
	return i < len(sorted) && sorted[i] == id
}
