package access

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/spadesk/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("role")
	ErrRoleExists   = errors.New("a role with this slug already exists")
	ErrSystemRole   = core.NewConflictError("permissions of system roles cannot be changed")
	ErrRoleInUse    = core.NewConflictError("role is still assigned to users")
	ErrInvalidRoles = errors.New("invalid roles")
	ErrNoPermsToSet = errors.New("not enough rights to set these roles")
	ErrNoPermsToAdd = errors.New("not enough rights to grant these permissions")
)

type (
	Repository interface {
		CreateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]Role, error)
		GetRole(ctx context.Context, slug string, exec ...core.DBExecutor) (Role, error)
		GetRoles(ctx context.Context, slugs []string, exec ...core.DBExecutor) ([]Role, error)
		UpdateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		DeleteRole(ctx context.Context, slug string, exec ...core.DBExecutor) error
		CountRoleUsers(ctx context.Context, slug string, exec ...core.DBExecutor) (int, error)
		// GetActiveUserRoles returns the roles of the user, none if the user is inactive or unknown.
		GetActiveUserRoles(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Role, error)
	}

	Service interface {
		Create(ctx context.Context, nr NewRole) (Role, error)
		Query(ctx context.Context) ([]Role, error)
		Get(ctx context.Context, slug string) (Role, error)
		Update(ctx context.Context, slug string, ur UpdateRole) (Role, error)
		Delete(ctx context.Context, slug string) error
		// PermissionsFor resolves the permissions currently granted to a user.
		PermissionsFor(ctx context.Context, userID string) (PermissionSet, error)
		// CheckGrant verifies that the granter may assign the given roles.
		CheckGrant(ctx context.Context, granterID string, roleSlugs []string) error
		// CheckPermissionGrant verifies that the granter holds all the given permissions.
		CheckPermissionGrant(ctx context.Context, granterID string, perms []Permission) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nr NewRole) (Role, error) {
	if _, err := svc.repo.GetRole(ctx, nr.Slug); err == nil {
		return Role{}, core.NewValidationError(ErrRoleExists, core.FieldError{Field: "slug", Error: ErrRoleExists.Error()})
	} else if err != ErrNotFound {
		return Role{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateRole(ctx, Role{
		Slug:        nr.Slug,
		Name:        nr.Name,
		Description: nr.Description,
		Permissions: NewPermissionSet(nr.Permissions...).Slice(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Query(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *service) Get(ctx context.Context, slug string) (Role, error) {
	return svc.repo.GetRole(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *service) Update(ctx context.Context, slug string, ur UpdateRole) (Role, error) {
	role, err := svc.Get(ctx, slug)
	if err != nil {
		return Role{}, err
	}
	if ur.Permissions != nil {
		if role.IsSystem {
			return Role{}, ErrSystemRole
		}
		role.Permissions = NewPermissionSet(*ur.Permissions...).Slice()
	}
	role.Name = ur.Name
	role.Description = ur.Description
	role.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRole(ctx, role)
}

func (svc *service) Delete(ctx context.Context, slug string) error {
	role, err := svc.Get(ctx, slug)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return core.NewConflictError("system roles cannot be deleted")
	}
	n, err := svc.repo.CountRoleUsers(ctx, role.Slug)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	return svc.repo.DeleteRole(ctx, role.Slug)
}

func (svc *service) PermissionsFor(ctx context.Context, userID string) (PermissionSet, error) {
	roles, err := svc.repo.GetActiveUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms := make(PermissionSet)
	for _, role := range roles {
		perms.Add(role.Grants().Slice()...)
	}
	return perms, nil
}

func (svc *service) CheckGrant(ctx context.Context, granterID string, roleSlugs []string) error {
	if len(roleSlugs) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(roleSlugs))
	for _, slug := range roleSlugs {
		unique[slug] = struct{}{}
	}
	roles, err := svc.repo.GetRoles(ctx, roleSlugs)
	if err != nil {
		return err
	}
	if len(roles) != len(unique) {
		return core.NewValidationError(ErrInvalidRoles, core.FieldError{Field: "roles", Error: ErrInvalidRoles.Error()})
	}

	wanted := make(PermissionSet)
	for _, role := range roles {
		wanted.Add(role.Grants().Slice()...)
	}
	held, err := svc.PermissionsFor(ctx, granterID)
	if err != nil {
		return err
	}
	if !held.Covers(wanted) {
		return core.NewValidationError(ErrNoPermsToSet, core.FieldError{Field: "roles", Error: ErrNoPermsToSet.Error()})
	}
	return nil
}

func (svc *service) CheckPermissionGrant(ctx context.Context, granterID string, perms []Permission) error {
	held, err := svc.PermissionsFor(ctx, granterID)
	if err != nil {
		return err
	}
	if !held.Covers(NewPermissionSet(perms...)) {
		return core.NewValidationError(ErrNoPermsToAdd, core.FieldError{Field: "permissions", Error: ErrNoPermsToAdd.Error()})
	}
	return nil
}
