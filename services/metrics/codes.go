package metrics

import (
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{user.ErrUnauthenticated, "unauthenticated"},
	{user.ErrRoleMissing, "role_missing"},
	{user.ErrUnknownRole, "unknown_role"},
	{user.ErrInsufficientPermissions, "forbidden"},
	{access.ErrNoTenantAccess, "no_tenant_access"},
	{access.ErrTenantAccessDenied, "access_denied"},
	{school.ErrNotFound, "not_found"},
}

// ErrorCode returns a low-cardinality label for err.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
