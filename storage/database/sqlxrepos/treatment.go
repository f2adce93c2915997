package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/treatment"
)

const treatmentColumns = "id, name, category, description, duration_minutes, price, is_active, created_at, updated_at"

var treatmentOrdering = map[string]string{
	"name":             "name",
	"category":         "category",
	"duration_minutes": "duration_minutes",
	"price":            "price",
	"created_at":       "created_at",
}

type treatmentRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Category        string    `db:"category"`
	Description     string    `db:"description"`
	DurationMinutes int       `db:"duration_minutes"`
	Price           int64     `db:"price"`
	IsActive        bool      `db:"is_active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type treatmentRepository struct {
	baseRepo
}

var _ treatment.Repository = (*treatmentRepository)(nil) // interface compliance check

func NewTreatmentRepository(exec core.DBExecutor) *treatmentRepository {
	return &treatmentRepository{baseRepo{exec: exec}}
}

func (repo treatmentRepository) toRow(t treatment.Treatment) treatmentRow {
	return treatmentRow{
		ID:              t.ID,
		Name:            t.Name,
		Category:        t.Category,
		Description:     t.Description,
		DurationMinutes: t.DurationMinutes,
		Price:           int64(t.Price),
		IsActive:        t.IsActive,
		CreatedAt:       utc(t.CreatedAt),
		UpdatedAt:       utc(t.UpdatedAt),
	}
}

func (repo treatmentRepository) fromRow(row treatmentRow) treatment.Treatment {
	return treatment.Treatment{
		ID:              row.ID,
		Name:            row.Name,
		Category:        row.Category,
		Description:     row.Description,
		DurationMinutes: row.DurationMinutes,
		Price:           core.Money(row.Price),
		IsActive:        row.IsActive,
		CreatedAt:       utc(row.CreatedAt),
		UpdatedAt:       utc(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to treatment.ErrNotFound
func (repo treatmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return treatment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo treatmentRepository) nameTaken(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: "name", Error: treatment.ErrNameExists.Error()})
}

func (repo treatmentRepository) NameExists(ctx context.Context, name, excludedID string, exec ...core.DBExecutor) (bool, error) {
	query := "SELECT id FROM treatment WHERE LOWER(name) = ? AND id <> ?"
	found, err := exists(ctx, repo.getExec(exec), query, strings.ToLower(name), excludedID)
	return found, errors.Wrap(err, "checking service name")
}

func (repo treatmentRepository) CreateTreatment(ctx context.Context, t treatment.Treatment, exec ...core.DBExecutor) (treatment.Treatment, error) {
	t.ID = uuid.New().String()
	query := `INSERT INTO treatment (` + treatmentColumns + `) VALUES (:id, :name, :category, :description,
		:duration_minutes, :price, :is_active, :created_at, :updated_at)`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(t)); err != nil {
		if isUniqueViolation(err) {
			return treatment.Treatment{}, repo.nameTaken(err)
		}
		return treatment.Treatment{}, errors.Wrap(err, "inserting service")
	}
	return t, nil
}

func (repo treatmentRepository) QueryTreatments(ctx context.Context, filter *treatment.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]treatment.Treatment, int, error) {
	var w whereClause
	if filter != nil {
		w.search(filter.Search, "name", "category", "description")
		if filter.Category != "" {
			w.add("LOWER(category) = ?", strings.ToLower(filter.Category))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.IDs != nil {
			if len(filter.IDs) == 0 {
				return []treatment.Treatment{}, 0, nil
			}
			w.add("id IN (?)", filter.IDs)
		}
	}

	var rows []treatmentRow
	order := orderBy(ordering, treatmentOrdering, "category, name")
	count, err := queryPage(ctx, repo.getExec(exec), &rows, treatmentColumns, "treatment", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying services")
	}

	treatments := make([]treatment.Treatment, len(rows))
	for i, row := range rows {
		treatments[i] = repo.fromRow(row)
	}
	return treatments, count, nil
}

func (repo treatmentRepository) GetTreatment(ctx context.Context, id string, exec ...core.DBExecutor) (treatment.Treatment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return treatment.Treatment{}, treatment.ErrNotFound
	}
	var row treatmentRow
	if err := getContext(ctx, repo.getExec(exec), &row, "SELECT "+treatmentColumns+" FROM treatment WHERE id = ?", id); err != nil {
		return treatment.Treatment{}, repo.trapNoRowsErr(err, "finding service")
	}
	return repo.fromRow(row), nil
}

func (repo treatmentRepository) GetTreatmentByName(ctx context.Context, name string, exec ...core.DBExecutor) (treatment.Treatment, error) {
	var row treatmentRow
	query := "SELECT " + treatmentColumns + " FROM treatment WHERE LOWER(name) = ?"
	if err := getContext(ctx, repo.getExec(exec), &row, query, strings.ToLower(name)); err != nil {
		return treatment.Treatment{}, repo.trapNoRowsErr(err, "finding service by name")
	}
	return repo.fromRow(row), nil
}

func (repo treatmentRepository) UpdateTreatment(ctx context.Context, t treatment.Treatment, exec ...core.DBExecutor) (treatment.Treatment, error) {
	query := `UPDATE treatment SET name = :name, category = :category, description = :description,
		duration_minutes = :duration_minutes, price = :price, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(t)); err != nil {
		if isUniqueViolation(err) {
			return treatment.Treatment{}, repo.nameTaken(err)
		}
		return treatment.Treatment{}, errors.Wrap(err, "updating service")
	}
	return t, nil
}

func (repo treatmentRepository) DeleteTreatment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM treatment WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return treatment.ErrInUse
		}
		return errors.Wrap(err, "deleting service")
	}
	return nil
}
