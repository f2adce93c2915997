package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/tests"
)

func Test_employeeApi_create(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	recept := app.createUser(t, "recept", "receptionist")
	trt := testutil.CreateTreatment(t, app.trtRepo, "Facial", 45, 6000)

	tests := []httpTest{
		{
			name: "forbidden", method: http.MethodPost, path: "/v1/employees", token: app.token(t, recept),
			body: employee.NewEmployee{FirstName: "Zoe"}, wantCode: http.StatusForbidden,
		},
		{
			name: "bad color", method: http.MethodPost, path: "/v1/employees", token: app.token(t, admin),
			body: employee.NewEmployee{FirstName: "Zoe", Color: "blue"}, wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown service", method: http.MethodPost, path: "/v1/employees", token: app.token(t, admin),
			body:     employee.NewEmployee{FirstName: "Zoe", TreatmentIDs: []string{uuid.NewString()}},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"service_ids": employee.ErrInvalidTreatments.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	var emp employee.Employee
	rec := app.do(t, http.MethodPost, "/v1/employees", app.token(t, admin), employee.NewEmployee{
		FirstName:    "Zoe",
		LastName:     "Martin",
		Position:     "Aesthetician",
		Color:        "#ff8800",
		TreatmentIDs: []string{trt.ID, trt.ID},
	}, &emp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{trt.ID}, emp.TreatmentIDs)
	assert.True(t, emp.IsActive)

	var page core.PageResult[employee.Employee]
	rec = app.do(t, http.MethodGet, "/v1/employees?service_id="+trt.ID, app.token(t, recept), nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, page.Count)
}

func Test_employeeApi_schedule(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	therapist := app.createUser(t, "therapist", "therapist")
	emp := testutil.CreateEmployee(t, app.empRepo, "", "")
	path := "/v1/employees/" + emp.ID + "/schedule"

	tests := []httpTest{
		{
			name: "read only", method: http.MethodPut, path: path, token: app.token(t, therapist),
			body: employee.UpdateSchedule{}, wantCode: http.StatusForbidden,
		},
		{
			name: "bad clock", method: http.MethodPut, path: path, token: app.token(t, admin),
			body: employee.UpdateSchedule{Shifts: []employee.Shift{{Weekday: time.Monday, Start: "9h", End: "17:00"}}},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"shifts[0].start": "time must be in the HH:MM format"}),
		},
		{
			name: "overlapping shifts", method: http.MethodPut, path: path, token: app.token(t, admin),
			body: employee.UpdateSchedule{Shifts: []employee.Shift{
				{Weekday: time.Monday, Start: "09:00", End: "13:00"},
				{Weekday: time.Monday, Start: "12:00", End: "17:00"},
			}},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown employee", method: http.MethodPut, path: "/v1/employees/" + uuid.NewString() + "/schedule",
			token: app.token(t, admin), body: employee.UpdateSchedule{}, wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, app, tests)

	var sched ScheduleResponse
	rec := app.do(t, http.MethodPut, path, app.token(t, admin), employee.UpdateSchedule{Shifts: []employee.Shift{
		{Weekday: time.Tuesday, Start: "14:00", End: "19:00"},
		{Weekday: time.Monday, Start: "09:00", End: "12:00"},
		{Weekday: time.Monday, Start: "13:00", End: "17:00"},
	}}, &sched)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "UTC", sched.Timezone)
	require.Len(t, sched.Shifts, 3)
	assert.Equal(t, time.Monday, sched.Shifts[0].Weekday)
	assert.Equal(t, "09:00", sched.Shifts[0].Start)
	assert.Equal(t, time.Tuesday, sched.Shifts[2].Weekday)

	rec = app.do(t, http.MethodGet, path, app.token(t, therapist), nil, &sched)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, sched.Shifts, 3)
}

func Test_employeeApi_timeOffAndRoster(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	token := app.token(t, admin)
	emp := testutil.CreateEmployee(t, app.empRepo, "09:00", "17:00")
	day := testutil.NextWeekday(time.Wednesday, 0, 0)
	path := "/v1/employees/" + emp.ID + "/time-off"

	rec := app.do(t, http.MethodPost, path, token, employee.NewTimeOff{
		StartsAt: day.Add(12 * time.Hour),
		EndsAt:   day.Add(11 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var off employee.TimeOff
	rec = app.do(t, http.MethodPost, path, token, employee.NewTimeOff{
		StartsAt: day.Add(12 * time.Hour),
		EndsAt:   day.Add(14 * time.Hour),
		Reason:   "Dentist",
	}, &off)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, emp.ID, off.EmployeeID)

	var offs []employee.TimeOff
	rec = app.do(t, http.MethodGet, path+"?from="+day.Format(dateLayout)+"&to="+day.Format(dateLayout), token, nil, &offs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, offs, 1)

	var roster appointment.Roster
	rec = app.do(t, http.MethodGet, "/v1/schedules?date="+day.Format(dateLayout), token, nil, &roster)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, day.Format(dateLayout), roster.Date)
	require.Len(t, roster.Employees, 1)
	entry := roster.Employees[0]
	assert.Equal(t, emp.ID, entry.EmployeeID)
	assert.Equal(t, []appointment.Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)},
		{Start: day.Add(14 * time.Hour), End: day.Add(17 * time.Hour)},
	}, entry.Working)
	assert.Len(t, entry.TimeOff, 1)

	rec = app.do(t, http.MethodGet, "/v1/schedules?date=tomorrow", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := testutil.CreateEmployee(t, app.empRepo, "", "")
	rec = app.do(t, http.MethodDelete, "/v1/employees/"+other.ID+"/time-off/"+off.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodDelete, path+"/"+off.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func Test_employeeApi_destroy(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	idle := testutil.CreateEmployee(t, app.empRepo, "09:00", "17:00")

	rec := app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(9, 0))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name: "has appointments", method: http.MethodDelete, path: "/v1/employees/" + f.emp.ID, token: app.token(t, admin),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: employee.ErrHasAppointments.Error()}),
		},
		{name: "no history", method: http.MethodDelete, path: "/v1/employees/" + idle.ID, token: app.token(t, admin), wantCode: http.StatusNoContent},
		{name: "already deleted", method: http.MethodDelete, path: "/v1/employees/" + idle.ID, token: app.token(t, admin), wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, app, tests)

	rec = app.do(t, http.MethodGet, "/v1/employees/"+f.emp.ID, app.token(t, admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code, "a refused delete keeps the employee")
}
