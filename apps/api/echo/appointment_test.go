package echoapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/tests"
)

type bookingFixture struct {
	token   string
	client  client.Client
	emp     employee.Employee
	massage treatment.Treatment
	day     time.Time
}

func newBookingFixture(t *testing.T, app *testApp) bookingFixture {
	recept := app.createUser(t, "recept", "receptionist")
	massage := testutil.CreateTreatment(t, app.trtRepo, "Hot stones", 60, 9000)
	return bookingFixture{
		token:   app.token(t, recept),
		client:  testutil.CreateClient(t, app.clRepo, "jane@spadesk.test"),
		emp:     testutil.CreateEmployee(t, app.empRepo, "09:00", "12:00", massage.ID),
		massage: massage,
		day:     testutil.NextWeekday(time.Thursday, 0, 0),
	}
}

func (f bookingFixture) booking(hh, mm int) appointment.NewAppointment {
	return appointment.NewAppointment{
		ClientID:    f.client.ID,
		EmployeeID:  f.emp.ID,
		TreatmentID: f.massage.ID,
		StartsAt:    f.day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute),
	}
}

func Test_appointmentApi_create(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)
	other := testutil.CreateTreatment(t, app.trtRepo, "Pedicure", 30, 3500)

	var appt appointment.Appointment
	rec := app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(10, 0), &appt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, appointment.StatusScheduled, appt.Status)
	assert.Equal(t, f.day.Add(11*time.Hour), appt.EndsAt)
	assert.Equal(t, f.massage.Price, appt.Price)

	slotTaken := marshalObj(t, httpErr{Error: "time slot is not available"})
	notPerformed := f.booking(9, 0)
	notPerformed.TreatmentID = other.ID
	explicitEnd := f.booking(9, 0)
	explicitEnd.EndsAt = f.day.Add(8 * time.Hour)

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/appointments", token: f.token,
			body: appointment.NewAppointment{}, wantCode: http.StatusBadRequest,
		},
		{
			name: "ends before start", method: http.MethodPost, path: "/v1/appointments", token: f.token,
			body: explicitEnd, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"ends_at": "must be after starts_at"}),
		},
		{name: "same slot", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(10, 0), wantCode: http.StatusConflict, wantData: slotTaken},
		{name: "overlapping start", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(9, 30), wantCode: http.StatusConflict, wantData: slotTaken},
		{name: "overlapping end", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(10, 45), wantCode: http.StatusConflict, wantData: slotTaken},
		{
			name: "outside shift", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(11, 30),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "employee is not working at this time"}),
		},
		{
			name: "service not performed", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: notPerformed,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"service_id": appointment.ErrNotPerformed.Error()}),
		},
		{name: "back to back before", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(9, 0), wantCode: http.StatusCreated},
		{name: "back to back after", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(11, 0), wantCode: http.StatusCreated},
	}
	runHTTPTests(t, app, tests)
}

func Test_appointmentApi_timeOff(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)
	admin := app.createUser(t, "admin", access.RoleAdmin)

	rec := app.do(t, http.MethodPost, "/v1/employees/"+f.emp.ID+"/time-off", app.token(t, admin), employee.NewTimeOff{
		StartsAt: f.day.Add(10 * time.Hour),
		EndsAt:   f.day.Add(11 * time.Hour),
		Reason:   "Training",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	employeeOff := marshalObj(t, httpErr{Error: appointment.ErrEmployeeOff.Error()})
	tests := []httpTest{
		{name: "inside time off", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(10, 0), wantCode: http.StatusConflict, wantData: employeeOff},
		{name: "overlapping time off start", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(9, 30), wantCode: http.StatusConflict, wantData: employeeOff},
		{name: "overlapping time off end", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(10, 45), wantCode: http.StatusConflict, wantData: employeeOff},
		{name: "before time off", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(9, 0), wantCode: http.StatusCreated},
		{name: "after time off", method: http.MethodPost, path: "/v1/appointments", token: f.token, body: f.booking(11, 0), wantCode: http.StatusCreated},
	}
	runHTTPTests(t, app, tests)
}

func Test_appointmentApi_cancelFreesSlot(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)

	var appt appointment.Appointment
	rec := app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(10, 0), &appt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	statusPath := "/v1/appointments/" + appt.ID + "/status"
	rec = app.do(t, http.MethodPost, statusPath, f.token, appointment.SetStatus{Status: "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, statusPath, f.token, appointment.SetStatus{Status: appointment.StatusCancelled}, &appt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, appointment.StatusCancelled, appt.Status)

	rec = app.do(t, http.MethodPost, statusPath, f.token, appointment.SetStatus{Status: appointment.StatusConfirmed})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPut, "/v1/appointments/"+appt.ID, f.token, f.booking(9, 0))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, marshalString(t, httpErr{Error: appointment.ErrFinal.Error()}), rec.Body.String())

	rec = app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(10, 0))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func Test_appointmentApi_reschedule(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)

	var first, second appointment.Appointment
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(9, 0), &first).Code)
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(11, 0), &second).Code)

	// moving within its own slot does not clash with itself
	rec := app.do(t, http.MethodPut, "/v1/appointments/"+first.ID, f.token, f.booking(9, 15), &first)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, f.day.Add(9*time.Hour+15*time.Minute), first.StartsAt)

	rec = app.do(t, http.MethodPut, "/v1/appointments/"+first.ID, f.token, f.booking(10, 30))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodDelete, "/v1/appointments/"+second.ID, f.token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPut, "/v1/appointments/"+first.ID, f.token, f.booking(10, 30))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_appointmentApi_availability(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(10, 0)).Code)

	path := func(date string) string {
		return "/v1/appointments/availability?" + url.Values{
			"employee_id": {f.emp.ID},
			"service_id":  {f.massage.ID},
			"date":        {date},
		}.Encode()
	}

	var resp AvailabilityResponse
	rec := app.do(t, http.MethodGet, path(f.day.Format(dateLayout)), f.token, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []appointment.Slot{
		{Start: f.day.Add(9 * time.Hour), End: f.day.Add(10 * time.Hour)},
		{Start: f.day.Add(11 * time.Hour), End: f.day.Add(12 * time.Hour)},
	}, resp.Slots)

	rec = app.do(t, http.MethodGet, path("31/12/2030"), f.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the day after has no appointment: 9:00 to 11:00 every 15 minutes
	rec = app.do(t, http.MethodGet, path(f.day.AddDate(0, 0, 1).Format(dateLayout)), f.token, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, resp.Slots, 9)
}

func Test_appointmentApi_query(t *testing.T) {
	app := setup(t)
	f := newBookingFixture(t, app)
	admin := app.createUser(t, "admin", access.RoleAdmin)

	var cancelled appointment.Appointment
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(9, 0), &cancelled).Code)
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/v1/appointments", f.token, f.booking(10, 0)).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/v1/appointments/"+cancelled.ID+"/status", f.token,
		appointment.SetStatus{Status: appointment.StatusCancelled}).Code)

	day := f.day.Format(dateLayout)
	tests := []struct {
		name      string
		params    url.Values
		wantCount int
	}{
		{name: "all", params: url.Values{}, wantCount: 2},
		{name: "day", params: url.Values{"from": {day}, "to": {day}}, wantCount: 2},
		{name: "day after", params: url.Values{"from": {f.day.AddDate(0, 0, 1).Format(dateLayout)}}, wantCount: 0},
		{name: "status", params: url.Values{"status": {"scheduled,confirmed"}}, wantCount: 1},
		{name: "employee", params: url.Values{"employee_id": {f.emp.ID}}, wantCount: 2},
		{name: "client", params: url.Values{"client_id": {f.client.ID}}, wantCount: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page core.PageResult[appointment.Appointment]
			rec := app.do(t, http.MethodGet, "/v1/appointments?"+tt.params.Encode(), app.token(t, admin), nil, &page)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCount, page.Count)
		})
	}

	rec := app.do(t, http.MethodGet, "/v1/appointments?status=lost", app.token(t, admin), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
