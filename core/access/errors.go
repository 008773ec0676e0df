package access

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNoMembership       = errors.New("membership not found")
	ErrNoTenantAccess     = errors.New("user is not associated with any school")
	ErrTenantAccessDenied = errors.New("user doesn't have access to this school")
)

// DeniedError is returned when a user asks for a school outside of their schools.
// errors.Is(err, ErrTenantAccessDenied) holds for it.
type DeniedError struct {
	SchoolID string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrTenantAccessDenied, e.SchoolID)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrTenantAccessDenied
}

func denied(schoolID string) error {
	return &DeniedError{SchoolID: schoolID}
}
