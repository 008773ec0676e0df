package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

const (
	contextUserKey     = "user"
	contextSchoolIDKey = "schoolID"
	bearerPrefix       = "Bearer "
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

// bearerToken returns the token of the Authorization header, or "".
func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(bearerPrefix):])
}

// principalMiddleware resolves the user making the request and stores it in the context.
func principalMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := svc.ResolvePrincipal(ctx.Request().Context(), bearerToken(ctx))
			if err != nil {
				return errors.Wrap(err, "resolving principal")
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}

// roleMiddleware only lets through users having one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if err = user.RequireAnyRole(usr, roles...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// schoolAccessMiddleware only lets through users who can act on the school of the `:id` path param.
// The checked id is stored in the context.
func schoolAccessMiddleware(resolver access.ContextResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			schoolID := ctx.Param("id")
			if err = resolver.AssertAccess(ctx.Request().Context(), usr, schoolID); err != nil {
				return err
			}
			ctx.Set(contextSchoolIDKey, schoolID)
			return next(ctx)
		}
	}
}

func getContextSchoolID(ctx echo.Context) (string, error) {
	if id, ok := ctx.Get(contextSchoolIDKey).(string); ok && id != "" {
		return id, nil
	}
	return "", errors.New("school id not found in echo.Context")
}
