package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/user"
)

const contextObjectKey = "object"

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc       user.Service
	accessSvc access.Service
	auth      *authenticator
	validate  *validator.Validate
	logger    core.Logger
}

func registerUserAPI(g, authed *echo.Group, deps ServerDeps, auth *authenticator) {
	api := userApi{
		svc:       deps.UserSvc,
		accessSvc: deps.AccessSvc,
		auth:      auth,
		validate:  deps.Validate,
		logger:    deps.Logger,
	}

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug := g.Group("/users")
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	ag := authed.Group("/users")
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.POST("", api.create, auth.require(access.UsersWrite))
	ag.GET("", api.query, auth.require(access.UsersRead))
	ag.DELETE("", api.destroyMultiple, auth.require(access.UsersWrite))

	// detail endpoints
	ag.GET("/:id", api.retrieve, auth.requireSelfOr(access.UsersRead), api.objectMiddleware)
	ag.PUT("/:id", api.update, auth.requireSelfOr(access.UsersWrite), api.objectMiddleware)
	ag.DELETE("/:id", api.destroy, auth.require(access.UsersWrite), api.objectMiddleware)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot grant roles carrying permissions they do not hold
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if err = api.accessSvc.CheckGrant(ctx.Request().Context(), ctxUsr.ID, data.Roles); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) query(ctx echo.Context) error {
	lp, err := bindListParams(ctx)
	if err != nil {
		return err
	}
	filter := &user.QueryFilter{Search: lp.Search, Roles: listParam(ctx, "role")}
	if filter.IsActive, err = optionalBool(ctx, "is_active"); err != nil {
		return err
	}
	loc := time.UTC
	if filter.CreatedFrom, err = timeParam(ctx, "created_from", loc); err != nil {
		return err
	}
	if filter.CreatedTo, err = endTimeParam(ctx, "created_to", loc); err != nil {
		return err
	}
	filter.Clean()

	users, count, err := api.svc.Query(ctx.Request().Context(), filter, lp.Ordering, lp.Page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, core.NewPageResult(users, count, lp.Page))
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	perms, err := api.auth.contextPermissions(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Permissions: perms.Slice()})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	privileged, err := api.auth.hasPermissions(ctx, access.UsersWrite)
	if err != nil {
		return err
	}
	if !privileged {
		// `IsActive`, `Roles`, `Username` and `Email` can only be changed by user managers
		if changesManagedFields(usr, data) {
			return errHttpForbidden
		}
		data.IsActive, data.Roles = nil, nil
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}
	if data.Roles != nil {
		if err = api.accessSvc.CheckGrant(ctx.Request().Context(), ctxUsr.ID, data.Roles); err != nil {
			return err
		}
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}
	// nor users holding more rights than them
	if err = api.accessSvc.CheckGrant(ctx.Request().Context(), ctxUsr.ID, usr.Roles); err != nil {
		return errHttpForbidden
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	ids := listParam(ctx, "id")
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	for _, id := range ids {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
		usr, err := api.svc.GetByID(reqCtx, id)
		if err == user.ErrNotFound {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "finding user by ID")
		}
		if err = api.accessSvc.CheckGrant(reqCtx, ctxUsr.ID, usr.Roles); err != nil {
			return errHttpForbidden
		}
	}

	if _, err := api.svc.Delete(reqCtx, ids...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// objectMiddleware loads the user of the `:id` path param.
func (api *userApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if err == user.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding user by ID")
		}
		ctx.Set(contextObjectKey, usr)
		return next(ctx)
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		user.User
		Permissions []access.Permission `json:"permissions"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

// changesManagedFields reports whether uu modifies a field reserved to user managers.
// Echoed back values are not changes.
func changesManagedFields(usr user.User, uu user.UpdateUser) bool {
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" && uname != usr.Username {
		return true
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" && email != usr.Email {
		return true
	}
	if uu.IsActive != nil && *uu.IsActive != usr.IsActive {
		return true
	}
	if uu.Roles != nil {
		if len(uu.Roles) != len(usr.Roles) {
			return true
		}
		for _, r := range uu.Roles {
			if !usr.HasRole(r) {
				return true
			}
		}
	}
	return false
}
