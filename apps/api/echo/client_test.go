package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/tests"
)

func Test_clientApi_create(t *testing.T) {
	app := setup(t)
	recept := app.createUser(t, "recept", "receptionist")
	therapist := app.createUser(t, "therapist", "therapist")
	testutil.CreateClient(t, app.clRepo, "taken@spadesk.test")

	tests := []httpTest{
		{
			name: "forbidden", method: http.MethodPost, path: "/v1/clients", token: app.token(t, therapist),
			body: client.NewClient{FirstName: "Ann"}, wantCode: http.StatusForbidden,
		},
		{
			name: "missing first name", method: http.MethodPost, path: "/v1/clients", token: app.token(t, recept),
			body: client.NewClient{}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"first_name": "this field is required"}),
		},
		{
			name: "bad phone", method: http.MethodPost, path: "/v1/clients", token: app.token(t, recept),
			body: client.NewClient{FirstName: "Ann", Phone: "call me"}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"phone": "enter a valid phone number"}),
		},
		{
			name: "duplicate email", method: http.MethodPost, path: "/v1/clients", token: app.token(t, recept),
			body: client.NewClient{FirstName: "Ann", Email: " TAKEN@spadesk.test"}, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": client.ErrEmailExists.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	var cl client.Client
	rec := app.do(t, http.MethodPost, "/v1/clients", app.token(t, recept), client.NewClient{
		FirstName: " Ann ",
		LastName:  "Smith",
		Email:     "Ann@Example.com",
		Phone:     "+33 6 00 00 00 00",
		BirthDate: "1990-04-12",
		Gender:    "Female",
	}, &cl)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, cl.ID)
	assert.Equal(t, "Ann", cl.FirstName)
	assert.Equal(t, "ann@example.com", cl.Email)
	assert.Equal(t, client.GenderFemale, cl.Gender)
	assert.Equal(t, "1990-04-12", cl.BirthDate)
	assert.True(t, cl.IsActive)
}

func Test_clientApi_queryAndUpdate(t *testing.T) {
	app := setup(t)
	recept := app.createUser(t, "recept", "receptionist")
	token := app.token(t, recept)
	cl := testutil.CreateClient(t, app.clRepo, "first@spadesk.test")
	testutil.CreateClient(t, app.clRepo)
	testutil.CreateClient(t, app.clRepo)

	var page core.PageResult[client.Client]
	rec := app.do(t, http.MethodGet, "/v1/clients?search=FIRST@", token, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, page.Count)
	assert.Equal(t, cl.ID, page.Results[0].ID)

	inactive := false
	var updated client.Client
	rec = app.do(t, http.MethodPut, "/v1/clients/"+cl.ID, token, client.UpdateClient{
		NewClient: client.NewClient{FirstName: "Renamed", Email: cl.Email},
		IsActive:  &inactive,
	}, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", updated.FirstName)
	assert.False(t, updated.IsActive)

	rec = app.do(t, http.MethodGet, "/v1/clients?is_active=false", token, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, page.Count)

	rec = app.do(t, http.MethodGet, "/v1/clients?is_active=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/v1/clients/unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "client not found"}`, rec.Body.String())
}

func Test_clientApi_destroy(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	token := app.token(t, admin)
	trt := testutil.CreateTreatment(t, app.trtRepo, "Massage", 60, 8000)
	emp := testutil.CreateEmployee(t, app.empRepo, "09:00", "18:00")

	free := testutil.CreateClient(t, app.clRepo)
	rec := app.do(t, http.MethodDelete, "/v1/clients/"+free.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	booked := testutil.CreateClient(t, app.clRepo)
	rec = app.do(t, http.MethodPost, "/v1/appointments", token, map[string]interface{}{
		"client_id":   booked.ID,
		"employee_id": emp.ID,
		"service_id":  trt.ID,
		"starts_at":   testutil.NextWeekday(time.Monday, 10, 0),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodDelete, "/v1/clients/"+booked.ID, token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, marshalString(t, httpErr{Error: client.ErrHasHistory.Error()}), rec.Body.String())

	var hist ClientHistory
	rec = app.do(t, http.MethodGet, "/v1/clients/"+booked.ID+"/history", token, nil, &hist)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, booked.ID, hist.Client.ID)
	assert.Len(t, hist.Appointments, 1)
	assert.Empty(t, hist.Sales)
}

func Test_clientApi_historyPermissions(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)

	// clients:read only, no appointments nor sales
	rec := app.do(t, http.MethodPost, "/v1/roles", app.token(t, admin), access.NewRole{
		Slug:        "front",
		Name:        "Front desk",
		Permissions: []access.Permission{access.ClientsRead},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	front := app.createUser(t, "front", "front")
	cl := testutil.CreateClient(t, app.clRepo)

	var hist ClientHistory
	rec = app.do(t, http.MethodGet, "/v1/clients/"+cl.ID+"/history", app.token(t, front), nil, &hist)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, hist.Appointments)
	assert.Empty(t, hist.Appointments)
	assert.Empty(t, hist.Sales)
}

func marshalString(t *testing.T, obj interface{}) string {
	return string(marshalObj(t, obj))
}
