package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/user"
	"github.com/trezcool/spadesk/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	app.createUser(t, "alice", access.RoleAdmin)
	testutil.CreateUser(t, app.usrRepo, "Bob", "bob", "bob@spadesk.test", "Pa$$w0rd!", nil, false)

	authFailed := marshalObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: LoginRequest{},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     LoginRequest{Username: "nobody", Password: "Pa$$w0rd!"},
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     LoginRequest{Username: "alice", Password: "wrong"},
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login",
			body:     LoginRequest{Username: "bob", Password: "Pa$$w0rd!"},
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, app, tests)

	for _, uname := range []string{"alice", " ALICE@spadesk.test "} {
		t.Run("success "+uname, func(t *testing.T) {
			var resp LoginResponse
			rec := app.do(t, http.MethodPost, "/v1/users/login", "", LoginRequest{Username: uname, Password: "Pa$$w0rd!"}, &resp)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.NotEmpty(t, resp.Token)

			var me MeResponse
			rec = app.do(t, http.MethodGet, "/v1/users/me", resp.Token, nil, &me)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "alice", me.Username)
			assert.False(t, me.LastLogin.IsZero())
			assert.ElementsMatch(t, access.AllPermissions, me.Permissions)
		})
	}
}

func Test_userApi_auth(t *testing.T) {
	app := setup(t)
	therapist := app.createUser(t, "therapist", "therapist")

	expired := func() string {
		auth := newAuthenticator(app.conf, nil, nil)
		claims := auth.userClaims(therapist)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		token, err := auth.GenerateToken(claims)
		require.NoError(t, err)
		return token
	}()

	tests := []httpTest{
		{name: "no token", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "garbage token", path: "/v1/users/me", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "expired token", path: "/v1/users/me", token: expired, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "permission denied", path: "/v1/users", token: app.token(t, therapist),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "own account", path: "/v1/users/" + therapist.ID, token: app.token(t, therapist), wantCode: http.StatusOK},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "alice")
	auth := newAuthenticator(app.conf, nil, nil)

	token := func(origIat time.Time) string {
		tok, err := auth.GenerateToken(auth.userClaims(usr, origIat.Unix()))
		require.NoError(t, err)
		return tok
	}

	var resp LoginResponse
	rec := app.do(t, http.MethodPost, "/v1/users/token-refresh", token(time.Now().Add(-time.Hour)), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, resp.Token)

	rec = app.do(t, http.MethodPost, "/v1/users/token-refresh", token(time.Now().Add(-5*time.Hour)), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "refresh has expired"}`, rec.Body.String())
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)

	// a manager may create users but not hand out the admin role
	role := app.do(t, http.MethodPost, "/v1/roles", app.token(t, admin), access.NewRole{
		Slug:        "manager",
		Name:        "Manager",
		Permissions: []access.Permission{access.UsersRead, access.UsersWrite},
	})
	require.Equal(t, http.StatusCreated, role.Code, role.Body.String())
	manager := app.createUser(t, "manager", "manager")

	newUser := func(uname, pwd string, roles ...string) user.NewUser {
		return user.NewUser{
			Name:            "New " + uname,
			Username:        uname,
			Email:           uname + "@spadesk.test",
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}
	}

	tests := []httpTest{
		{
			name: "weak password", method: http.MethodPost, path: "/v1/users", token: app.token(t, admin),
			body: newUser("carol", "password"), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate username", method: http.MethodPost, path: "/v1/users", token: app.token(t, admin),
			body: newUser("manager", "Sup3r$ecret"), wantCode: http.StatusBadRequest,
		},
		{
			name: "roles beyond own rights", method: http.MethodPost, path: "/v1/users", token: app.token(t, manager),
			body: newUser("dave", "Sup3r$ecret", access.RoleAdmin), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"roles": access.ErrNoPermsToSet.Error()}),
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/v1/users", token: app.token(t, admin),
			body: newUser("erin", "Sup3r$ecret", "lol"), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"roles": access.ErrInvalidRoles.Error()}),
		},
		{
			name: "success", method: http.MethodPost, path: "/v1/users", token: app.token(t, manager),
			body: newUser("frank", "Sup3r$ecret", "manager"), wantCode: http.StatusCreated,
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	app.createUser(t, "therapist1", "therapist")
	app.createUser(t, "therapist2", "therapist")
	testutil.CreateUser(t, app.usrRepo, "Gone", "gone", "gone@spadesk.test", "", nil, false)

	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }
	tests := []struct {
		name      string
		params    url.Values
		wantCount int
	}{
		{name: "all", params: url.Values{}, wantCount: 4},
		{name: "search", params: url.Values{"search": {"THERAP"}}, wantCount: 2},
		{name: "role", params: url.Values{"role": {"therapist"}}, wantCount: 2},
		{name: "inactive", params: url.Values{"is_active": {"false"}}, wantCount: 1},
		{name: "created_from future", params: url.Values{"created_from": {time.Now().Add(time.Hour).Format(time.RFC3339)}}, wantCount: 0},
		{name: "created_to today", params: url.Values{"created_to": {time.Now().UTC().Format(dateLayout)}}, wantCount: 4},
		{name: "created_to yesterday", params: url.Values{"created_to": {time.Now().UTC().AddDate(0, 0, -1).Format(dateLayout)}}, wantCount: 0},
		{name: "paging", params: url.Values{"page_size": {"1"}, "page": {"2"}}, wantCount: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page core.PageResult[user.User]
			rec := app.do(t, http.MethodGet, path(tt.params), app.token(t, admin), nil, &page)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCount, page.Count)
		})
	}

	var page core.PageResult[user.User]
	app.do(t, http.MethodGet, path(url.Values{"page_size": {"1"}, "page": {"2"}}), app.token(t, admin), nil, &page)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 1, page.PageSize)
	assert.Len(t, page.Results, 1)
}

func Test_userApi_update(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	therapist := app.createUser(t, "therapist", "therapist")
	other := app.createUser(t, "other", "therapist")
	bTrue, bFalse := true, false

	tests := []httpTest{
		{
			name: "self: name", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{Name: "Therapist Renamed"}, wantCode: http.StatusOK,
		},
		{
			name: "self: roles", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{Roles: []string{access.RoleAdmin}}, wantCode: http.StatusForbidden,
		},
		{
			name: "self: is_active", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{IsActive: &bFalse}, wantCode: http.StatusForbidden,
		},
		{
			name: "self: username", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{Username: "therapist_new"}, wantCode: http.StatusForbidden,
		},
		{
			name: "self: email", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{Email: "new@spadesk.test"}, wantCode: http.StatusForbidden,
		},
		{
			name: "self: unchanged managed fields", method: http.MethodPut, path: "/v1/users/" + therapist.ID, token: app.token(t, therapist),
			body: user.UpdateUser{
				Name:     "Therapist Again",
				Username: strings.ToUpper(therapist.Username),
				Email:    " " + therapist.Email,
				IsActive: &bTrue,
				Roles:    therapist.Roles,
			},
			wantCode: http.StatusOK,
		},
		{
			name: "someone else", method: http.MethodPut, path: "/v1/users/" + other.ID, token: app.token(t, therapist),
			body: user.UpdateUser{Name: "Hacked"}, wantCode: http.StatusForbidden,
		},
		{
			name: "admin: username", method: http.MethodPut, path: "/v1/users/" + other.ID, token: app.token(t, admin),
			body: user.UpdateUser{Username: "other2"}, wantCode: http.StatusOK,
		},
		{
			name: "not found", method: http.MethodPut, path: "/v1/users/00000000-0000-0000-0000-000000000000", token: app.token(t, admin),
			body: user.UpdateUser{Name: "x"}, wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, app, tests)

	usr, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, "other2", usr.Username)
}

func Test_userApi_destroy(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	u1 := app.createUser(t, "user1")
	u2 := app.createUser(t, "user2")
	u3 := app.createUser(t, "user3")

	tests := []httpTest{
		{
			name: "self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: app.token(t, admin),
			wantCode: http.StatusForbidden,
		},
		{
			name: "bulk with self", method: http.MethodDelete, path: "/v1/users?id=" + u1.ID + "&id=" + admin.ID,
			token: app.token(t, admin), wantCode: http.StatusForbidden,
		},
		{name: "one", method: http.MethodDelete, path: "/v1/users/" + u1.ID, token: app.token(t, admin), wantCode: http.StatusNoContent},
		{
			name: "bulk", method: http.MethodDelete, path: "/v1/users?id=" + u2.ID + "," + u3.ID,
			token: app.token(t, admin), wantCode: http.StatusNoContent,
		},
	}
	runHTTPTests(t, app, tests)

	var page core.PageResult[user.User]
	app.do(t, http.MethodGet, "/v1/users", app.token(t, admin), nil, &page)
	assert.Equal(t, 1, page.Count)
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "alice")

	success := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
	for _, email := range []string{"unknown@spadesk.test", usr.Email} {
		var resp SuccessResponse
		rec := app.do(t, http.MethodPost, "/v1/users/password-reset", "", PasswordResetRequest{Email: email}, &resp)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, success, resp.Success)
	}

	sent := app.mail.Sent()
	require.Len(t, sent, 1)
	linkRe := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`)
	m := linkRe.FindStringSubmatch(sent[0].TextContent)
	require.Len(t, m, 3, sent[0].TextContent)

	reset := user.ResetUserPassword{UID: m[1], Token: m[2], Password: "N3w$ecret!", PasswordConfirm: "N3w$ecret!"}
	rec := app.do(t, http.MethodPost, "/v1/users/password-reset-confirm", "", reset)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the token is single use
	rec = app.do(t, http.MethodPost, "/v1/users/password-reset-confirm", "", reset)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/users/login", "", LoginRequest{Username: "alice", Password: "N3w$ecret!"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
