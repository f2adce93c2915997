package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/user"
)

const userColumns = "id, name, username, email, is_active, password_hash, created_at, updated_at, last_login"

var userOrdering = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     bool        `db:"is_active"`
	PasswordHash string      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	baseRepo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepo{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		PasswordHash: string(usr.PasswordHash),
		CreatedAt:    utc(usr.CreatedAt),
		UpdatedAt:    utc(usr.UpdatedAt),
		LastLogin:    null.NewTime(utc(usr.LastLogin), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        []string{},
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    utc(row.CreatedAt),
		UpdatedAt:    utc(row.UpdatedAt),
		LastLogin:    utc(row.LastLogin.Time),
	}
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// loadRoles fills the roles of users.
func (repo userRepository) loadRoles(ctx context.Context, exec core.DBExecutor, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	idx := make(map[string]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
		idx[u.ID] = i
	}

	var links []struct {
		UserID   string `db:"user_id"`
		RoleSlug string `db:"role_slug"`
	}
	query := "SELECT user_id, role_slug FROM user_role WHERE user_id IN (?) ORDER BY role_slug"
	if err := selectContext(ctx, exec, &links, query, ids); err != nil {
		return errors.Wrap(err, "loading user roles")
	}
	for _, l := range links {
		i := idx[l.UserID]
		users[i].Roles = append(users[i].Roles, l.RoleSlug)
	}
	return nil
}

func (repo userRepository) saveRoles(ctx context.Context, exec core.DBExecutor, usr user.User) error {
	if _, err := execContext(ctx, exec, "DELETE FROM user_role WHERE user_id = ?", usr.ID); err != nil {
		return errors.Wrap(err, "clearing user roles")
	}
	seen := make(map[string]struct{}, len(usr.Roles))
	for _, role := range usr.Roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		if _, err := execContext(ctx, exec, "INSERT INTO user_role (user_id, role_slug) VALUES (?, ?)", usr.ID, role); err != nil {
			if isForeignKeyViolation(err) {
				return core.NewValidationError(err, core.FieldError{Field: "roles", Error: "invalid roles"})
			}
			return errors.Wrap(err, "saving user roles")
		}
	}
	return nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	var excluded []string
	for _, u := range excludedUsers {
		if u.ID != "" {
			excluded = append(excluded, u.ID)
		}
	}

	check := func(col, value string, errExists error) error {
		if value == "" {
			return nil
		}
		var w whereClause
		w.add(col+" = ?", value)
		if len(excluded) > 0 {
			w.add("id NOT IN (?)", excluded)
		}
		found, err := exists(ctx, exe, "SELECT id FROM app_user"+w.String(), w.args...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return errExists
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)

	query := `INSERT INTO app_user (` + userColumns + `)
		VALUES (:id, :name, :username, :email, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if err := namedExec(ctx, exe, query, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError("a user with this username or email already exists")
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	if err := repo.saveRoles(ctx, exe, usr); err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exe)
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]user.User, int, error) {
	exe := repo.getExec(exec)
	var w whereClause

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		w.search(filter.Search, "name", "username", "email")
		// users holding any of the provided roles
		if len(filter.Roles) > 0 {
			w.add("id IN (SELECT user_id FROM user_role WHERE role_slug IN (?))", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at < ?", filter.CreatedTo.UTC())
		}
	}

	var rows []userRow
	order := orderBy(ordering, userOrdering, "created_at DESC")
	count, err := queryPage(ctx, exe, &rows, userColumns, "app_user", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = repo.fromRow(row)
	}
	if err = repo.loadRoles(ctx, exe, users); err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	var w whereClause

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		w.add("(username = ? OR email = ?)", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getContext(ctx, exe, &row, "SELECT "+userColumns+" FROM app_user"+w.String(), w.args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	users := []user.User{repo.fromRow(row)}
	if err := repo.loadRoles(ctx, exe, users); err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(usr)

	query := `UPDATE app_user SET name = :name, username = :username, email = :email, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login WHERE id = :id`
	if err := namedExec(ctx, exe, query, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewConflictError("a user with this username or email already exists")
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if usr.Roles != nil {
		if err := repo.saveRoles(ctx, exe, usr); err != nil {
			return user.User{}, err
		}
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exe)
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := execContext(ctx, repo.getExec(exec), "DELETE FROM app_user WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deleting users")
}
