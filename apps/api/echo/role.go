package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/user"
)

type roleApi struct {
	svc      access.Service
	users    user.Service
	validate *validator.Validate
}

func registerRoleAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := roleApi{svc: deps.AccessSvc, users: deps.UserSvc, validate: deps.Validate}

	g.GET("/permissions", api.permissions, auth.require(access.RolesRead))

	rg := g.Group("/roles")
	rg.GET("", api.query, auth.require(access.RolesRead))
	rg.POST("", api.create, auth.require(access.RolesWrite))
	rg.GET("/:slug", api.retrieve, auth.require(access.RolesRead))
	rg.PUT("/:slug", api.update, auth.require(access.RolesWrite))
	rg.DELETE("/:slug", api.destroy, auth.require(access.RolesWrite))
}

func (api *roleApi) permissions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, access.AllPermissions)
}

func (api *roleApi) query(ctx echo.Context) error {
	roles, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	if roles == nil {
		roles = []access.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *roleApi) create(ctx echo.Context) error {
	var data access.NewRole
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// nobody hands out permissions they do not hold
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if err = api.svc.CheckPermissionGrant(ctx.Request().Context(), usr.ID, data.Permissions); err != nil {
		return err
	}

	role, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, role)
}

func (api *roleApi) retrieve(ctx echo.Context) error {
	role, err := api.svc.Get(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting role")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *roleApi) update(ctx echo.Context) error {
	var data access.UpdateRole
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if data.Permissions != nil {
		usr, err := getContextUser(ctx, api.users)
		if err != nil {
			return err
		}
		if err = api.svc.CheckPermissionGrant(ctx.Request().Context(), usr.ID, *data.Permissions); err != nil {
			return err
		}
	}

	role, err := api.svc.Update(ctx.Request().Context(), ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *roleApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("slug")); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return ctx.NoContent(http.StatusNoContent)
}
