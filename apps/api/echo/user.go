package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

type userApi struct {
	resolver access.ContextResolver
}

func registerUserAPI(g *echo.Group, deps *Deps) {
	api := userApi{resolver: deps.Resolver}

	mg := g.Group("/me")
	mg.GET("", api.me)
	mg.GET("/schools", api.schools)
	mg.GET("/roles", api.roles)
}

// MeResponse is the principal with the school their request runs against.
type MeResponse struct {
	User   user.User            `json:"user"`
	School access.SchoolContext `json:"school"`
}

// Handlers

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	explicit := core.CleanString(ctx.QueryParam(schoolIDParam))

	sc, err := api.resolver.SchoolContext(ctx.Request().Context(), usr, explicit)
	if err != nil {
		return errors.Wrap(err, "resolving school context")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, School: sc})
}

func (api *userApi) schools(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	schools, err := api.resolver.AccessibleSchools(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying accessible schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *userApi) roles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}
