package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/quotation"
	"github.com/trezcool/spadesk/core/sale"
)

type quotationApi struct {
	conf     *core.Config
	svc      quotation.Service
	validate *validator.Validate
}

func registerQuotationAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := quotationApi{conf: deps.Conf, svc: deps.QuotationSvc, validate: deps.Validate}

	qg := g.Group("/quotations")
	qg.GET("", api.query, auth.require(access.QuotationsRead))
	qg.POST("", api.create, auth.require(access.QuotationsWrite))
	qg.GET("/:id", api.retrieve, auth.require(access.QuotationsRead))
	qg.PUT("/:id", api.update, auth.require(access.QuotationsWrite))
	qg.DELETE("/:id", api.destroy, auth.require(access.QuotationsWrite))
	qg.POST("/:id/send", api.send, auth.require(access.QuotationsWrite))
	qg.POST("/:id/status", api.setStatus, auth.require(access.QuotationsWrite))
	qg.POST("/:id/convert", api.convert, auth.require(access.QuotationsWrite, access.SalesWrite))
}

func (api *quotationApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &quotation.QueryFilter{
		Search:   lp.Search,
		ClientID: ctx.QueryParam("client_id"),
		Status:   quotation.Status(ctx.QueryParam("status")),
	}
	if filter.From, filter.To, err = rangeParams(ctx, api.conf.Business().Location()); err != nil {
		return err
	}

	quotations, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying quotations")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(quotations, count, lp.Page))
}

func (api *quotationApi) create(ctx echo.Context) error {
	var data quotation.NewQuotation
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewQuotation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quotation")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quotationApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quotation")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quotationApi) update(ctx echo.Context) error {
	var data quotation.UpdateQuotation
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuotation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating quotation")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quotationApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quotation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quotationApi) send(ctx echo.Context) error {
	q, err := api.svc.Send(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "sending quotation")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quotationApi) setStatus(ctx echo.Context) error {
	var data quotation.SetStatus
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to SetStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting quotation status")
	}
	return ctx.JSON(http.StatusOK, q)
}

type ConvertResponse struct {
	Quotation quotation.Quotation `json:"quotation"`
	Sale      sale.Sale           `json:"sale"`
}

func (api *quotationApi) convert(ctx echo.Context) error {
	var data quotation.Convert
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to Convert")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, s, err := api.svc.Convert(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "converting quotation")
	}
	return ctx.JSON(http.StatusCreated, ConvertResponse{Quotation: q, Sale: s})
}
