package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core/access"
	metricsvc "github.com/trezcool/spadesk/services/metrics"
)

// contextPermissions resolves the permissions of the authenticated user, once per request.
// Roles are read from the DB every time so role edits apply to live tokens.
func (a *authenticator) contextPermissions(ctx echo.Context) (access.PermissionSet, error) {
	if perms, ok := ctx.Get(contextPermsKey).(access.PermissionSet); ok {
		return perms, nil
	}
	usr, err := getContextUser(ctx, a.userSvc)
	if err != nil {
		return nil, err
	}
	perms, err := a.accessSvc.PermissionsFor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving permissions")
	}
	ctx.Set(contextPermsKey, perms)
	return perms, nil
}

func (a *authenticator) hasPermissions(ctx echo.Context, perms ...access.Permission) (bool, error) {
	granted, err := a.contextPermissions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if !granted.Has(p) {
			return false, nil
		}
	}
	return true, nil
}

// require rejects users missing any of perms.
func (a *authenticator) require(perms ...access.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ok, err := a.hasPermissions(ctx, perms...)
			if err != nil {
				return err
			}
			if !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// requireSelfOr lets users act on their own account, and others only with perms.
func (a *authenticator) requireSelfOr(perms ...access.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, a.userSvc)
			if err != nil {
				return err
			}
			if usr.ID == ctx.Param("id") {
				return next(ctx)
			}
			return a.require(perms...)(next)(ctx)
		}
	}
}

func metricsMiddleware(m *metricsvc.PrometheusMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commits the response so the final status is known
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
