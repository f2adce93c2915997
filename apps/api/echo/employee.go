package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/employee"
)

type employeeApi struct {
	conf         *core.Config
	svc          employee.Service
	appointments appointment.Service
	validate     *validator.Validate
}

func registerEmployeeAPI(g *echo.Group, deps ServerDeps, auth *authenticator) {
	api := employeeApi{
		conf:         deps.Conf,
		svc:          deps.EmployeeSvc,
		appointments: deps.AppointmentSvc,
		validate:     deps.Validate,
	}

	eg := g.Group("/employees")
	eg.GET("", api.query, auth.require(access.EmployeesRead))
	eg.POST("", api.create, auth.require(access.EmployeesWrite))
	eg.GET("/:id", api.retrieve, auth.require(access.EmployeesRead))
	eg.PUT("/:id", api.update, auth.require(access.EmployeesWrite))
	eg.DELETE("/:id", api.destroy, auth.require(access.EmployeesWrite))

	eg.GET("/:id/schedule", api.schedule, auth.require(access.SchedulesRead))
	eg.PUT("/:id/schedule", api.setSchedule, auth.require(access.SchedulesWrite))
	eg.GET("/:id/time-off", api.timeOff, auth.require(access.SchedulesRead))
	eg.POST("/:id/time-off", api.addTimeOff, auth.require(access.SchedulesWrite))
	eg.DELETE("/:id/time-off/:timeOffID", api.removeTimeOff, auth.require(access.SchedulesWrite))

	g.GET("/schedules", api.roster, auth.require(access.SchedulesRead))
}

func (api *employeeApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &employee.QueryFilter{Search: lp.Search, TreatmentID: ctx.QueryParam("service_id")}
	if filter.IsActive, err = optionalBool(ctx, "is_active"); err != nil {
		return err
	}
	filter.Clean()

	employees, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying employees")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(employees, count, lp.Page))
}

func (api *employeeApi) create(ctx echo.Context) error {
	var data employee.NewEmployee
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewEmployee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating employee")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *employeeApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting employee")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *employeeApi) update(ctx echo.Context) error {
	var data employee.UpdateEmployee
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateEmployee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating employee")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *employeeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting employee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ScheduleResponse wraps the weekly shifts of an employee.
type ScheduleResponse struct {
	Timezone string           `json:"timezone"`
	Shifts   []employee.Shift `json:"shifts"`
}

func (api *employeeApi) schedule(ctx echo.Context) error {
	shifts, err := api.svc.GetSchedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting schedule")
	}
	return ctx.JSON(http.StatusOK, ScheduleResponse{Timezone: api.conf.Business().Timezone, Shifts: shifts})
}

func (api *employeeApi) setSchedule(ctx echo.Context) error {
	var data employee.UpdateSchedule
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchedule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	shifts, err := api.svc.SetSchedule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting schedule")
	}
	return ctx.JSON(http.StatusOK, ScheduleResponse{Timezone: api.conf.Business().Timezone, Shifts: shifts})
}

func (api *employeeApi) timeOff(ctx echo.Context) error {
	from, to, err := rangeParams(ctx, api.conf.Business().Location())
	if err != nil {
		return err
	}
	offs, err := api.svc.ListTimeOff(ctx.Request().Context(), ctx.Param("id"), from, to)
	if err != nil {
		return errors.Wrap(err, "listing time off")
	}
	if offs == nil {
		offs = []employee.TimeOff{}
	}
	return ctx.JSON(http.StatusOK, offs)
}

func (api *employeeApi) addTimeOff(ctx echo.Context) error {
	var data employee.NewTimeOff
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewTimeOff")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	off, err := api.svc.AddTimeOff(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding time off")
	}
	return ctx.JSON(http.StatusCreated, off)
}

func (api *employeeApi) removeTimeOff(ctx echo.Context) error {
	if err := api.svc.RemoveTimeOff(ctx.Request().Context(), ctx.Param("id"), ctx.Param("timeOffID")); err != nil {
		return errors.Wrap(err, "removing time off")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// roster defaults to today in the business timezone.
func (api *employeeApi) roster(ctx echo.Context) error {
	loc := api.conf.Business().Location()
	date := time.Now().In(loc)
	if val := ctx.QueryParam("date"); val != "" {
		d, err := time.ParseInLocation(dateLayout, val, loc)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
		}
		date = d
	}

	roster, err := api.appointments.Roster(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "building roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}
