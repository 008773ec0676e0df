package user

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrUnauthenticated         = errors.New("user not authenticated")
	ErrRoleMissing             = errors.New("user role not found")
	ErrUnknownRole             = errors.New("unknown user role")
	ErrInsufficientPermissions = errors.New("permission denied")
)

type (
	// IdentityProvider is the external service owning users and sessions.
	IdentityProvider interface {
		// Identify returns the identity behind a session token.
		// It must return ErrUnauthenticated when the token is not a valid session.
		Identify(ctx context.Context, token string) (Identity, error)
	}

	ServiceInterface interface {
		ResolvePrincipal(ctx context.Context, token string) (User, error)
	}

	Service struct {
		provider IdentityProvider
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(provider IdentityProvider, logger core.Logger) *Service {
	return &Service{provider: provider, logger: logger}
}

// ResolvePrincipal resolves a session token to the User making the request.
func (svc *Service) ResolvePrincipal(ctx context.Context, token string) (User, error) {
	token = core.CleanString(token)
	if token == "" {
		return User{}, ErrUnauthenticated
	}

	ident, err := svc.provider.Identify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return User{}, ErrUnauthenticated
		}
		return User{}, errors.Wrap(err, "identifying session")
	}
	if ident.Subject == "" {
		return User{}, ErrUnauthenticated
	}

	role := core.CleanString(ident.Role, true /* lower */)
	if role == "" {
		return User{}, ErrRoleMissing
	}
	if !IsValidRole(role) {
		svc.logger.Warn(fmt.Sprintf("session %s carries unknown role %q", ident.Subject, role))
		return User{}, errors.Wrapf(ErrUnknownRole, "role %q", role)
	}

	return User{
		ID:       ident.Subject,
		Role:     role,
		Email:    core.CleanString(ident.Email, true /* lower */),
		Username: core.CleanString(ident.Username),
	}, nil
}

// RequireRole fails with ErrInsufficientPermissions unless the user has the given role.
func RequireRole(usr User, role string) error {
	if !HasRole(usr, role) {
		return errors.Wrapf(ErrInsufficientPermissions, "required role: %s, current role: %s", role, usr.Role)
	}
	return nil
}

// RequireAnyRole fails with ErrInsufficientPermissions unless the user has one of the given roles.
func RequireAnyRole(usr User, roles ...string) error {
	if !HasAnyRole(usr, roles...) {
		return errors.Wrapf(ErrInsufficientPermissions, "required roles: %v, current role: %s", roles, usr.Role)
	}
	return nil
}
