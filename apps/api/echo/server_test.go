package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/tests"
)

func TestServer_public(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "healthz", path: "/healthz", wantCode: http.StatusOK, wantData: []byte(`{"status": "ok"}`)},
		{name: "trailing slash", path: "/healthz/", wantCode: http.StatusOK},
	}
	runHTTPTests(t, app, tests)

	rec := app.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to SpaDesk API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "alice")
	app.do(t, http.MethodGet, "/v1/users/me", app.token(t, usr), nil)
	app.do(t, http.MethodGet, "/v1/users/me", "", nil)

	rec := app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `spadesk_http_requests_total{code="200",method="GET",route="/v1/users/me"} 1`), body)
	assert.True(t, strings.Contains(body, `spadesk_http_requests_total{code="401",method="GET",route="/v1/users/me"} 1`), body)
}

func Test_roleApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	token := app.token(t, admin)

	tests := []httpTest{
		{
			name: "bad slug", method: http.MethodPost, path: "/v1/roles", token: token,
			body:     access.NewRole{Slug: "spa manager", Name: "Spa manager"},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"slug": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "bad permission", method: http.MethodPost, path: "/v1/roles", token: token,
			body:     access.NewRole{Slug: "manager", Name: "Manager", Permissions: []access.Permission{"lol:read"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "system role", method: http.MethodPut, path: "/v1/roles/" + access.RoleAdmin, token: token,
			body:     access.UpdateRole{Name: "Boss", Permissions: &[]access.Permission{access.UsersRead}},
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: access.ErrSystemRole.Error()}),
		},
		{name: "unknown role", path: "/v1/roles/nope", token: token, wantCode: http.StatusNotFound},
		{name: "system role delete", method: http.MethodDelete, path: "/v1/roles/" + access.RoleAdmin, token: token, wantCode: http.StatusConflict},
	}
	runHTTPTests(t, app, tests)

	var role access.Role
	rec := app.do(t, http.MethodPost, "/v1/roles", token, access.NewRole{
		Slug:        "Manager",
		Name:        "Manager",
		Permissions: []access.Permission{access.ReportsRead, access.SalesRead},
	}, &role)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "manager", role.Slug)

	rec = app.do(t, http.MethodPost, "/v1/roles", token, access.NewRole{Slug: "manager", Name: "Again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var perms []access.Permission
	rec = app.do(t, http.MethodGet, "/v1/permissions", token, nil, &perms)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, access.AllPermissions, perms)

	rec = app.do(t, http.MethodDelete, "/v1/roles/manager", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func Test_roleApi_grants(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	token := app.token(t, admin)

	rec := app.do(t, http.MethodPost, "/v1/roles", token, access.NewRole{
		Slug:        "role_keeper",
		Name:        "Role keeper",
		Permissions: []access.Permission{access.RolesRead, access.RolesWrite, access.ClientsRead},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodPost, "/v1/roles", token, access.NewRole{
		Slug:        "desk",
		Name:        "Desk",
		Permissions: []access.Permission{access.ClientsRead},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	keeper := app.createUser(t, "keeper", "role_keeper")

	tests := []httpTest{
		{
			name: "adding permissions not held", method: http.MethodPut, path: "/v1/roles/desk", token: app.token(t, keeper),
			body:     access.UpdateRole{Name: "Desk", Permissions: &[]access.Permission{access.ClientsRead, access.ReportsRead}},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"permissions": access.ErrNoPermsToAdd.Error()}),
		},
		{
			name: "creating with permissions not held", method: http.MethodPost, path: "/v1/roles", token: app.token(t, keeper),
			body:     access.NewRole{Slug: "boss", Name: "Boss", Permissions: []access.Permission{access.SalesRead}},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"permissions": access.ErrNoPermsToAdd.Error()}),
		},
		{
			name: "permissions held", method: http.MethodPut, path: "/v1/roles/desk", token: app.token(t, keeper),
			body:     access.UpdateRole{Name: "Desk", Permissions: &[]access.Permission{access.ClientsRead, access.RolesRead}},
			wantCode: http.StatusOK,
		},
		{
			name: "role in use", method: http.MethodDelete, path: "/v1/roles/role_keeper", token: token,
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: access.ErrRoleInUse.Error()}),
		},
		{name: "unused role", method: http.MethodDelete, path: "/v1/roles/desk", token: token, wantCode: http.StatusNoContent},
	}
	runHTTPTests(t, app, tests)

	var role access.Role
	rec = app.do(t, http.MethodGet, "/v1/roles/role_keeper", token, nil, &role)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []access.Permission{access.RolesRead, access.RolesWrite, access.ClientsRead}, role.Permissions)
}

func Test_treatmentApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	therapist := app.createUser(t, "therapist", "therapist")
	token := app.token(t, admin)
	testutil.CreateTreatment(t, app.trtRepo, "Swedish massage", 60, 7000)

	tests := []httpTest{
		{
			name: "therapist cannot write", method: http.MethodPost, path: "/v1/services", token: app.token(t, therapist),
			body: treatment.NewTreatment{Name: "Scrub", DurationMinutes: 30}, wantCode: http.StatusForbidden,
		},
		{
			name: "odd duration", method: http.MethodPost, path: "/v1/services", token: token,
			body: treatment.NewTreatment{Name: "Scrub", DurationMinutes: 31}, wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/services", token: token,
			body:     treatment.NewTreatment{Name: "swedish MASSAGE", DurationMinutes: 60},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": treatment.ErrNameExists.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	var trt treatment.Treatment
	rec := app.do(t, http.MethodPost, "/v1/services", token, treatment.NewTreatment{
		Name:            "Body scrub",
		Category:        "Body",
		DurationMinutes: 45,
		Price:           5500,
	}, &trt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, trt.IsActive)

	inactive := false
	rec = app.do(t, http.MethodPut, "/v1/services/"+trt.ID, token, treatment.UpdateTreatment{
		NewTreatment: treatment.NewTreatment{Name: "Body scrub", Category: "Body", DurationMinutes: 60, Price: 6000},
		IsActive:     &inactive,
	}, &trt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 60, trt.DurationMinutes)
	assert.False(t, trt.IsActive)

	var page core.PageResult[treatment.Treatment]
	rec = app.do(t, http.MethodGet, "/v1/services?is_active=true", app.token(t, therapist), nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, page.Count)

	rec = app.do(t, http.MethodGet, "/v1/services?category=body", app.token(t, therapist), nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, page.Count)

	rec = app.do(t, http.MethodDelete, "/v1/services/"+trt.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}
