package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
)

const roleColumns = "slug, name, description, is_system, created_at, updated_at"

type roleRow struct {
	Slug        string    `db:"slug"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsSystem    bool      `db:"is_system"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type roleRepository struct {
	baseRepo
}

var _ access.Repository = (*roleRepository)(nil) // interface compliance check

func NewRoleRepository(exec core.DBExecutor) *roleRepository {
	return &roleRepository{baseRepo{exec: exec}}
}

func (repo roleRepository) fromRow(row roleRow) access.Role {
	return access.Role{
		Slug:        row.Slug,
		Name:        row.Name,
		Description: row.Description,
		Permissions: []access.Permission{},
		IsSystem:    row.IsSystem,
		CreatedAt:   utc(row.CreatedAt),
		UpdatedAt:   utc(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to access.ErrNotFound
func (repo roleRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return access.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo roleRepository) loadPermissions(ctx context.Context, exec core.DBExecutor, rows []roleRow) ([]access.Role, error) {
	roles := make([]access.Role, len(rows))
	if len(rows) == 0 {
		return roles, nil
	}
	slugs := make([]string, len(rows))
	idx := make(map[string]int, len(rows))
	for i, row := range rows {
		roles[i] = repo.fromRow(row)
		slugs[i] = row.Slug
		idx[row.Slug] = i
	}

	var perms []struct {
		RoleSlug   string            `db:"role_slug"`
		Permission access.Permission `db:"permission"`
	}
	query := "SELECT role_slug, permission FROM role_permission WHERE role_slug IN (?) ORDER BY permission"
	if err := selectContext(ctx, exec, &perms, query, slugs); err != nil {
		return nil, errors.Wrap(err, "loading role permissions")
	}
	for _, p := range perms {
		i := idx[p.RoleSlug]
		roles[i].Permissions = append(roles[i].Permissions, p.Permission)
	}
	return roles, nil
}

func (repo roleRepository) savePermissions(ctx context.Context, exec core.DBExecutor, role access.Role) error {
	if _, err := execContext(ctx, exec, "DELETE FROM role_permission WHERE role_slug = ?", role.Slug); err != nil {
		return errors.Wrap(err, "clearing role permissions")
	}
	for _, p := range role.Permissions {
		query := "INSERT INTO role_permission (role_slug, permission) VALUES (?, ?)"
		if _, err := execContext(ctx, exec, query, role.Slug, string(p)); err != nil {
			return errors.Wrap(err, "saving role permissions")
		}
	}
	return nil
}

func (repo roleRepository) CreateRole(ctx context.Context, role access.Role, exec ...core.DBExecutor) (access.Role, error) {
	exe := repo.getExec(exec)
	query := "INSERT INTO role (" + roleColumns + ") VALUES (?, ?, ?, ?, ?, ?)"
	_, err := execContext(ctx, exe, query, role.Slug, role.Name, role.Description, role.IsSystem, utc(role.CreatedAt), utc(role.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return access.Role{}, core.NewValidationError(access.ErrRoleExists, core.FieldError{Field: "slug", Error: access.ErrRoleExists.Error()})
		}
		return access.Role{}, errors.Wrap(err, "inserting role")
	}
	if err = repo.savePermissions(ctx, exe, role); err != nil {
		return access.Role{}, err
	}
	return repo.GetRole(ctx, role.Slug, exe)
}

func (repo roleRepository) QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]access.Role, error) {
	exe := repo.getExec(exec)
	var rows []roleRow
	if err := selectContext(ctx, exe, &rows, "SELECT "+roleColumns+" FROM role ORDER BY is_system DESC, name"); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	return repo.loadPermissions(ctx, exe, rows)
}

func (repo roleRepository) GetRole(ctx context.Context, slug string, exec ...core.DBExecutor) (access.Role, error) {
	exe := repo.getExec(exec)
	var row roleRow
	if err := getContext(ctx, exe, &row, "SELECT "+roleColumns+" FROM role WHERE slug = ?", slug); err != nil {
		return access.Role{}, repo.trapNoRowsErr(err, "finding role")
	}
	roles, err := repo.loadPermissions(ctx, exe, []roleRow{row})
	if err != nil {
		return access.Role{}, err
	}
	return roles[0], nil
}

func (repo roleRepository) GetRoles(ctx context.Context, slugs []string, exec ...core.DBExecutor) ([]access.Role, error) {
	if len(slugs) == 0 {
		return []access.Role{}, nil
	}
	exe := repo.getExec(exec)
	var rows []roleRow
	if err := selectContext(ctx, exe, &rows, "SELECT "+roleColumns+" FROM role WHERE slug IN (?)", slugs); err != nil {
		return nil, errors.Wrap(err, "finding roles")
	}
	return repo.loadPermissions(ctx, exe, rows)
}

func (repo roleRepository) UpdateRole(ctx context.Context, role access.Role, exec ...core.DBExecutor) (access.Role, error) {
	exe := repo.getExec(exec)
	query := "UPDATE role SET name = ?, description = ?, updated_at = ? WHERE slug = ?"
	if _, err := execContext(ctx, exe, query, role.Name, role.Description, utc(role.UpdatedAt), role.Slug); err != nil {
		return access.Role{}, errors.Wrap(err, "updating role")
	}
	if !role.IsSystem {
		if err := repo.savePermissions(ctx, exe, role); err != nil {
			return access.Role{}, err
		}
	}
	return repo.GetRole(ctx, role.Slug, exe)
}

func (repo roleRepository) DeleteRole(ctx context.Context, slug string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM role WHERE slug = ?", slug); err != nil {
		if isForeignKeyViolation(err) {
			return access.ErrRoleInUse
		}
		return errors.Wrap(err, "deleting role")
	}
	return nil
}

func (repo roleRepository) CountRoleUsers(ctx context.Context, slug string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := getContext(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM user_role WHERE role_slug = ?", slug); err != nil {
		return 0, errors.Wrap(err, "counting role users")
	}
	return n, nil
}

func (repo roleRepository) GetActiveUserRoles(ctx context.Context, userID string, exec ...core.DBExecutor) ([]access.Role, error) {
	exe := repo.getExec(exec)
	var rows []roleRow
	query := `SELECT r.slug, r.name, r.description, r.is_system, r.created_at, r.updated_at
		FROM role r
		JOIN user_role ur ON ur.role_slug = r.slug
		JOIN app_user u ON u.id = ur.user_id
		WHERE u.id = ? AND u.is_active = ?`
	if err := selectContext(ctx, exe, &rows, query, userID, true); err != nil {
		return nil, errors.Wrap(err, "finding user roles")
	}
	return repo.loadPermissions(ctx, exe, rows)
}
