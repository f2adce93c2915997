package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/treatment"
)

// treatmentApi serves the treatments catalog under `/services`.
type treatmentApi struct {
	svc      treatment.Service
	validate *validator.Validate
}

func registerTreatmentAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := treatmentApi{svc: deps.TreatmentSvc, validate: deps.Validate}

	tg := g.Group("/services")
	tg.GET("", api.query, auth.require(access.ServicesRead))
	tg.POST("", api.create, auth.require(access.ServicesWrite))
	tg.GET("/:id", api.retrieve, auth.require(access.ServicesRead))
	tg.PUT("/:id", api.update, auth.require(access.ServicesWrite))
	tg.DELETE("/:id", api.destroy, auth.require(access.ServicesWrite))
}

func (api *treatmentApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &treatment.QueryFilter{Search: lp.Search, Category: ctx.QueryParam("category")}
	if filter.IsActive, err = optionalBool(ctx, "is_active"); err != nil {
		return err
	}
	filter.Clean()

	treatments, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying services")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(treatments, count, lp.Page))
}

func (api *treatmentApi) create(ctx echo.Context) error {
	var data treatment.NewTreatment
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewTreatment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating service")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *treatmentApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting service")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *treatmentApi) update(ctx echo.Context) error {
	var data treatment.UpdateTreatment
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateTreatment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating service")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *treatmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting service")
	}
	return ctx.NoContent(http.StatusNoContent)
}
