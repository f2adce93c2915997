package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/sale"
)

type clientApi struct {
	svc          client.Service
	appointments appointment.Service
	sales        sale.Service
	auth         *authenticator
	validate     *validator.Validate
}

func registerClientAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := clientApi{
		svc:          deps.ClientSvc,
		appointments: deps.AppointmentSvc,
		sales:        deps.SaleSvc,
		auth:         auth,
		validate:     deps.Validate,
	}

	cg := g.Group("/clients")
	cg.GET("", api.query, auth.require(access.ClientsRead))
	cg.POST("", api.create, auth.require(access.ClientsWrite))
	cg.GET("/:id", api.retrieve, auth.require(access.ClientsRead))
	cg.PUT("/:id", api.update, auth.require(access.ClientsWrite))
	cg.DELETE("/:id", api.destroy, auth.require(access.ClientsWrite))
	cg.GET("/:id/history", api.history, auth.require(access.ClientsRead))
}

func (api *clientApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &client.QueryFilter{Search: lp.Search}
	if filter.IsActive, err = optionalBool(ctx, "is_active"); err != nil {
		return err
	}
	filter.Clean()

	clients, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying clients")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(clients, count, lp.Page))
}

func (api *clientApi) create(ctx echo.Context) error {
	var data client.NewClient
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewClient")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cl, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating client")
	}
	return ctx.JSON(http.StatusCreated, cl)
}

func (api *clientApi) retrieve(ctx echo.Context) error {
	cl, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting client")
	}
	return ctx.JSON(http.StatusOK, cl)
}

func (api *clientApi) update(ctx echo.Context) error {
	var data client.UpdateClient
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateClient")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cl, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating client")
	}
	return ctx.JSON(http.StatusOK, cl)
}

func (api *clientApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting client")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ClientHistory lists the latest appointments and sales of a client.
type ClientHistory struct {
	Client       client.Client             `json:"client"`
	Appointments []appointment.Appointment `json:"appointments"`
	Sales        []sale.Sale               `json:"sales"`
}

func (api *clientApi) history(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	cl, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting client")
	}
	hist := ClientHistory{Client: cl, Appointments: []appointment.Appointment{}, Sales: []sale.Sale{}}
	page := core.Page{Number: 1, Size: core.MaxPageSize}

	// each part requires its own read permission
	if ok, err := api.auth.hasPermissions(ctx, access.AppointmentsRead); err != nil {
		return err
	} else if ok {
		appts, _, err := api.appointments.Query(reqCtx,
			&appointment.QueryFilter{ClientID: cl.ID},
			[]core.DBOrdering{{Field: "starts_at"}},
			page,
		)
		if err != nil {
			return errors.Wrap(err, "querying client appointments")
		}
		if appts != nil {
			hist.Appointments = appts
		}
	}

	if ok, err := api.auth.hasPermissions(ctx, access.SalesRead); err != nil {
		return err
	} else if ok {
		sales, _, err := api.sales.Query(reqCtx,
			&sale.QueryFilter{ClientID: cl.ID},
			[]core.DBOrdering{{Field: "sold_at"}},
			page,
		)
		if err != nil {
			return errors.Wrap(err, "querying client sales")
		}
		if sales != nil {
			hist.Sales = sales
		}
	}
	return ctx.JSON(http.StatusOK, hist)
}
