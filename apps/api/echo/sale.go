package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/sale"
)

type saleApi struct {
	conf     *core.Config
	svc      sale.Service
	validate *validator.Validate
}

func registerSaleAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := saleApi{conf: deps.Conf, svc: deps.SaleSvc, validate: deps.Validate}

	sg := g.Group("/sales")
	sg.GET("", api.query, auth.require(access.SalesRead))
	sg.POST("", api.create, auth.require(access.SalesWrite))
	sg.GET("/summary", api.summary, auth.require(access.ReportsRead))
	sg.GET("/:id", api.retrieve, auth.require(access.SalesRead))
	sg.POST("/:id/void", api.void, auth.require(access.SalesWrite))
}

func (api *saleApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &sale.QueryFilter{
		Search:        lp.Search,
		ClientID:      ctx.QueryParam("client_id"),
		EmployeeID:    ctx.QueryParam("employee_id"),
		PaymentMethod: sale.PaymentMethod(ctx.QueryParam("payment_method")),
		Status:        sale.Status(ctx.QueryParam("status")),
	}
	if filter.From, filter.To, err = rangeParams(ctx, api.conf.Business().Location()); err != nil {
		return err
	}
	filter.Clean()

	sales, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying sales")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(sales, count, lp.Page))
}

func (api *saleApi) create(ctx echo.Context) error {
	var data sale.NewSale
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewSale")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording sale")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *saleApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting sale")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *saleApi) void(ctx echo.Context) error {
	var data sale.VoidSale
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to VoidSale")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Void(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "voiding sale")
	}
	return ctx.JSON(http.StatusOK, s)
}

// summary defaults to the current month in the business timezone.
func (api *saleApi) summary(ctx echo.Context) error {
	loc := api.conf.Business().Location()
	from, to, err := rangeParams(ctx, loc)
	if err != nil {
		return err
	}
	if from.IsZero() {
		now := time.Now().In(loc)
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).UTC()
	}
	if to.IsZero() {
		to = from.In(loc).AddDate(0, 1, 0).UTC()
	}
	if !to.After(from) {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must be after from"})
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), from, to)
	if err != nil {
		return errors.Wrap(err, "summarizing sales")
	}
	return ctx.JSON(http.StatusOK, sum)
}
