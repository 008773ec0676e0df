package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolApi struct {
	svc      school.ServiceInterface
	resolver access.ContextResolver
	cache    *school.DirectoryCache
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, deps *Deps, cache *school.DirectoryCache) {
	api := schoolApi{
		svc:      deps.SchoolSvc,
		resolver: deps.Resolver,
		cache:    cache,
		validate: deps.Validate,
	}
	superAdminOnly := roleMiddleware(user.RoleSuperAdmin)

	g.GET("/platform/stats", api.platformStats, superAdminOnly)

	sg := g.Group("/schools")
	sg.GET("", api.query, superAdminOnly)
	sg.GET("/active", api.queryActive, superAdminOnly)

	// detail endpoints
	dg := sg.Group("/:id", schoolAccessMiddleware(api.resolver))
	dg.GET("", api.retrieve)
	dg.GET("/stats", api.stats)
	dg.GET("/teachers", api.queryTeachers, roleMiddleware(user.RoleSuperAdmin, user.RoleAdmin, user.RoleTeacher))
}

// Handlers

func (api *schoolApi) query(ctx echo.Context) error {
	filter := school.QueryFilter{Search: ctx.QueryParam("search")}
	if active := ctx.QueryParam("active"); active != "" {
		isActive, err := strconv.ParseBool(active)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "active", Error: "must be a boolean"})
		}
		filter.IsActive = &isActive
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	dir, err := api.cache.Query(ctx.Request().Context(), api.svc, filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, dir)
}

func (api *schoolApi) queryActive(ctx echo.Context) error {
	schools, err := api.svc.QueryActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying active schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	schoolID, err := getContextSchoolID(ctx)
	if err != nil {
		return err
	}
	sch, err := api.svc.GetByID(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "finding school by ID")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) stats(ctx echo.Context) error {
	schoolID, err := getContextSchoolID(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "getting school stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	schoolID, err := getContextSchoolID(ctx)
	if err != nil {
		return err
	}
	filter := school.TeacherFilter{
		Search:  ctx.QueryParam("search"),
		ClassID: core.CleanString(ctx.QueryParam("class_id")),
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	page, err := api.svc.QueryTeachers(ctx.Request().Context(), schoolID, filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *schoolApi) platformStats(ctx echo.Context) error {
	stats, err := api.svc.PlatformStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting platform stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
