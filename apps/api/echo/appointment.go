package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
)

type appointmentApi struct {
	conf     *core.Config
	svc      appointment.Service
	validate *validator.Validate
}

func registerAppointmentAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := appointmentApi{conf: deps.Conf, svc: deps.AppointmentSvc, validate: deps.Validate}

	ag := g.Group("/appointments")
	ag.GET("", api.query, auth.require(access.AppointmentsRead))
	ag.POST("", api.create, auth.require(access.AppointmentsWrite))
	ag.GET("/availability", api.availability, auth.require(access.AppointmentsRead))
	ag.GET("/:id", api.retrieve, auth.require(access.AppointmentsRead))
	ag.PUT("/:id", api.update, auth.require(access.AppointmentsWrite))
	ag.DELETE("/:id", api.destroy, auth.require(access.AppointmentsWrite))
	ag.POST("/:id/status", api.setStatus, auth.require(access.AppointmentsWrite))
}

func (api *appointmentApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &appointment.QueryFilter{
		EmployeeIDs: listParam(ctx, "employee_id"),
		ClientID:    ctx.QueryParam("client_id"),
	}
	if filter.From, filter.To, err = rangeParams(ctx, api.conf.Business().Location()); err != nil {
		return err
	}
	for _, st := range listParam(ctx, "status") {
		status := appointment.Status(st)
		if !status.IsValid() {
			return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	appts, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying appointments")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(appts, count, lp.Page))
}

func (api *appointmentApi) create(ctx echo.Context) error {
	var data appointment.NewAppointment
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewAppointment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	appt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "booking appointment")
	}
	return ctx.JSON(http.StatusCreated, appt)
}

func (api *appointmentApi) retrieve(ctx echo.Context) error {
	appt, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting appointment")
	}
	return ctx.JSON(http.StatusOK, appt)
}

func (api *appointmentApi) update(ctx echo.Context) error {
	var data appointment.UpdateAppointment
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateAppointment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	appt, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rescheduling appointment")
	}
	return ctx.JSON(http.StatusOK, appt)
}

func (api *appointmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting appointment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *appointmentApi) setStatus(ctx echo.Context) error {
	var data appointment.SetStatus
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to SetStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	appt, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting appointment status")
	}
	return ctx.JSON(http.StatusOK, appt)
}

// AvailabilityResponse lists the free start times of a service with an employee on a date.
type AvailabilityResponse struct {
	appointment.AvailabilityQuery
	Slots []appointment.Slot `json:"slots"`
}

func (api *appointmentApi) availability(ctx echo.Context) error {
	var aq appointment.AvailabilityQuery
	err := echo.QueryParamsBinder(ctx).
		String("employee_id", &aq.EmployeeID).
		String("service_id", &aq.TreatmentID).
		String("date", &aq.Date).
		BindError()
	if err != nil {
		return err
	}
	if err = aq.Validate(api.validate); err != nil {
		return err
	}

	slots, err := api.svc.Availability(ctx.Request().Context(), aq)
	if err != nil {
		return errors.Wrap(err, "computing availability")
	}
	if slots == nil {
		slots = []appointment.Slot{}
	}
	return ctx.JSON(http.StatusOK, AvailabilityResponse{AvailabilityQuery: aq, Slots: slots})
}
