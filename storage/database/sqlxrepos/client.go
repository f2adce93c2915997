package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/client"
)

const clientColumns = "id, first_name, last_name, email, phone, birth_date, gender, notes, is_active, created_at, updated_at"

var clientOrdering = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"birth_date": "birth_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type clientRow struct {
	ID        string      `db:"id"`
	FirstName string      `db:"first_name"`
	LastName  string      `db:"last_name"`
	Email     null.String `db:"email"`
	Phone     string      `db:"phone"`
	BirthDate string      `db:"birth_date"`
	Gender    string      `db:"gender"`
	Notes     string      `db:"notes"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type clientRepository struct {
	baseRepo
}

var _ client.Repository = (*clientRepository)(nil) // interface compliance check

func NewClientRepository(exec core.DBExecutor) *clientRepository {
	return &clientRepository{baseRepo{exec: exec}}
}

func (repo clientRepository) toRow(cl client.Client) clientRow {
	return clientRow{
		ID:        cl.ID,
		FirstName: cl.FirstName,
		LastName:  cl.LastName,
		Email:     null.NewString(cl.Email, cl.Email != ""),
		Phone:     cl.Phone,
		BirthDate: cl.BirthDate,
		Gender:    cl.Gender,
		Notes:     cl.Notes,
		IsActive:  cl.IsActive,
		CreatedAt: utc(cl.CreatedAt),
		UpdatedAt: utc(cl.UpdatedAt),
	}
}

func (repo clientRepository) fromRow(row clientRow) client.Client {
	return client.Client{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email.String,
		Phone:     row.Phone,
		BirthDate: row.BirthDate,
		Gender:    row.Gender,
		Notes:     row.Notes,
		IsActive:  row.IsActive,
		CreatedAt: utc(row.CreatedAt),
		UpdatedAt: utc(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to client.ErrNotFound
func (repo clientRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return client.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo clientRepository) EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), "SELECT id FROM client WHERE email = ? AND id <> ?", email, excludedID)
	return found, errors.Wrap(err, "checking client email")
}

func (repo clientRepository) CreateClient(ctx context.Context, cl client.Client, exec ...core.DBExecutor) (client.Client, error) {
	cl.ID = uuid.New().String()
	query := `INSERT INTO client (` + clientColumns + `) VALUES (:id, :first_name, :last_name, :email, :phone,
		:birth_date, :gender, :notes, :is_active, :created_at, :updated_at)`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(cl)); err != nil {
		if isUniqueViolation(err) {
			return client.Client{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: client.ErrEmailExists.Error()})
		}
		return client.Client{}, errors.Wrap(err, "inserting client")
	}
	return cl, nil
}

func (repo clientRepository) QueryClients(ctx context.Context, filter *client.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]client.Client, int, error) {
	var w whereClause
	if filter != nil {
		w.search(filter.Search, "first_name", "last_name", "email", "phone")
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []clientRow
	order := orderBy(ordering, clientOrdering, "created_at DESC")
	count, err := queryPage(ctx, repo.getExec(exec), &rows, clientColumns, "client", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying clients")
	}

	clients := make([]client.Client, len(rows))
	for i, row := range rows {
		clients[i] = repo.fromRow(row)
	}
	return clients, count, nil
}

func (repo clientRepository) GetClient(ctx context.Context, id string, exec ...core.DBExecutor) (client.Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return client.Client{}, client.ErrNotFound
	}
	var row clientRow
	if err := getContext(ctx, repo.getExec(exec), &row, "SELECT "+clientColumns+" FROM client WHERE id = ?", id); err != nil {
		return client.Client{}, repo.trapNoRowsErr(err, "finding client")
	}
	return repo.fromRow(row), nil
}

func (repo clientRepository) UpdateClient(ctx context.Context, cl client.Client, exec ...core.DBExecutor) (client.Client, error) {
	query := `UPDATE client SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
		birth_date = :birth_date, gender = :gender, notes = :notes, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(cl)); err != nil {
		if isUniqueViolation(err) {
			return client.Client{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: client.ErrEmailExists.Error()})
		}
		return client.Client{}, errors.Wrap(err, "updating client")
	}
	return cl, nil
}

func (repo clientRepository) DeleteClient(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM client WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return client.ErrHasHistory
		}
		return errors.Wrap(err, "deleting client")
	}
	return nil
}
