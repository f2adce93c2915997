package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/appointment"
)

const appointmentColumns = "id, client_id, employee_id, treatment_id, starts_at, ends_at, status, price, notes, created_at, updated_at"

var appointmentOrdering = map[string]string{
	"starts_at":  "starts_at",
	"ends_at":    "ends_at",
	"status":     "status",
	"created_at": "created_at",
}

type appointmentRow struct {
	ID          string    `db:"id"`
	ClientID    string    `db:"client_id"`
	EmployeeID  string    `db:"employee_id"`
	TreatmentID string    `db:"treatment_id"`
	StartsAt    time.Time `db:"starts_at"`
	EndsAt      time.Time `db:"ends_at"`
	Status      string    `db:"status"`
	Price       int64     `db:"price"`
	Notes       string    `db:"notes"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type appointmentRepository struct {
	baseRepo
}

var _ appointment.Repository = (*appointmentRepository)(nil) // interface compliance check

func NewAppointmentRepository(exec core.DBExecutor) *appointmentRepository {
	return &appointmentRepository{baseRepo{exec: exec}}
}

func (repo appointmentRepository) toRow(a appointment.Appointment) appointmentRow {
	return appointmentRow{
		ID:          a.ID,
		ClientID:    a.ClientID,
		EmployeeID:  a.EmployeeID,
		TreatmentID: a.TreatmentID,
		StartsAt:    utc(a.StartsAt),
		EndsAt:      utc(a.EndsAt),
		Status:      string(a.Status),
		Price:       int64(a.Price),
		Notes:       a.Notes,
		CreatedAt:   utc(a.CreatedAt),
		UpdatedAt:   utc(a.UpdatedAt),
	}
}

func (repo appointmentRepository) fromRow(row appointmentRow) appointment.Appointment {
	return appointment.Appointment{
		ID:          row.ID,
		ClientID:    row.ClientID,
		EmployeeID:  row.EmployeeID,
		TreatmentID: row.TreatmentID,
		StartsAt:    utc(row.StartsAt),
		EndsAt:      utc(row.EndsAt),
		Status:      appointment.Status(row.Status),
		Price:       core.Money(row.Price),
		Notes:       row.Notes,
		CreatedAt:   utc(row.CreatedAt),
		UpdatedAt:   utc(row.UpdatedAt),
	}
}

func (repo appointmentRepository) fromRows(rows []appointmentRow) []appointment.Appointment {
	appts := make([]appointment.Appointment, len(rows))
	for i, row := range rows {
		appts[i] = repo.fromRow(row)
	}
	return appts
}

// trapNoRowsErr maps "no rows" err to appointment.ErrNotFound
func (repo appointmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return appointment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func statusArgs(statuses []appointment.Status) []string {
	args := make([]string, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return args
}

func (repo appointmentRepository) CreateAppointment(ctx context.Context, a appointment.Appointment, exec ...core.DBExecutor) (appointment.Appointment, error) {
	a.ID = uuid.New().String()
	query := `INSERT INTO appointment (` + appointmentColumns + `) VALUES (:id, :client_id, :employee_id, :treatment_id,
		:starts_at, :ends_at, :status, :price, :notes, :created_at, :updated_at)`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(a)); err != nil {
		return appointment.Appointment{}, errors.Wrap(err, "inserting appointment")
	}
	return a, nil
}

func (repo appointmentRepository) QueryAppointments(ctx context.Context, filter *appointment.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]appointment.Appointment, int, error) {
	var w whereClause
	if filter != nil {
		if !filter.To.IsZero() {
			w.add("starts_at < ?", filter.To.UTC())
		}
		if !filter.From.IsZero() {
			w.add("ends_at > ?", filter.From.UTC())
		}
		if len(filter.EmployeeIDs) > 0 {
			w.add("employee_id IN (?)", filter.EmployeeIDs)
		}
		if filter.ClientID != "" {
			w.add("client_id = ?", filter.ClientID)
		}
		if len(filter.Statuses) > 0 {
			w.add("status IN (?)", statusArgs(filter.Statuses))
		}
	}

	var rows []appointmentRow
	order := orderBy(ordering, appointmentOrdering, "starts_at")
	count, err := queryPage(ctx, repo.getExec(exec), &rows, appointmentColumns, "appointment", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying appointments")
	}
	return repo.fromRows(rows), count, nil
}

func (repo appointmentRepository) GetAppointment(ctx context.Context, id string, exec ...core.DBExecutor) (appointment.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	var row appointmentRow
	if err := getContext(ctx, repo.getExec(exec), &row, "SELECT "+appointmentColumns+" FROM appointment WHERE id = ?", id); err != nil {
		return appointment.Appointment{}, repo.trapNoRowsErr(err, "finding appointment")
	}
	return repo.fromRow(row), nil
}

func (repo appointmentRepository) UpdateAppointment(ctx context.Context, a appointment.Appointment, exec ...core.DBExecutor) (appointment.Appointment, error) {
	query := `UPDATE appointment SET client_id = :client_id, employee_id = :employee_id, treatment_id = :treatment_id,
		starts_at = :starts_at, ends_at = :ends_at, status = :status, price = :price, notes = :notes,
		updated_at = :updated_at
		WHERE id = :id`
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(a)); err != nil {
		return appointment.Appointment{}, errors.Wrap(err, "updating appointment")
	}
	return a, nil
}

func (repo appointmentRepository) DeleteAppointment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM appointment WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return appointment.ErrCannotDelete
		}
		return errors.Wrap(err, "deleting appointment")
	}
	return nil
}

func (repo appointmentRepository) FindBlocking(ctx context.Context, employeeIDs []string, from, to time.Time, excludedID string, exec ...core.DBExecutor) ([]appointment.Appointment, error) {
	if len(employeeIDs) == 0 {
		return []appointment.Appointment{}, nil
	}
	var rows []appointmentRow
	query := `SELECT ` + appointmentColumns + ` FROM appointment
		WHERE employee_id IN (?) AND status IN (?) AND starts_at < ? AND ends_at > ? AND id <> ?
		ORDER BY starts_at`
	args := []interface{}{employeeIDs, statusArgs(appointment.BlockingStatuses), to.UTC(), from.UTC(), excludedID}
	if err := selectContext(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "finding blocking appointments")
	}
	return repo.fromRows(rows), nil
}
