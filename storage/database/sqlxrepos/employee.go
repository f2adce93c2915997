package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/employee"
)

const employeeColumns = "id, first_name, last_name, email, phone, job_title, color, is_active, user_id, created_at, updated_at"

var employeeOrdering = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"position":   "job_title",
	"created_at": "created_at",
}

type employeeRow struct {
	ID        string      `db:"id"`
	FirstName string      `db:"first_name"`
	LastName  string      `db:"last_name"`
	Email     null.String `db:"email"`
	Phone     string      `db:"phone"`
	JobTitle  string      `db:"job_title"`
	Color     string      `db:"color"`
	IsActive  bool        `db:"is_active"`
	UserID    null.String `db:"user_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type shiftRow struct {
	EmployeeID  string `db:"employee_id"`
	Weekday     int    `db:"weekday"`
	StartMinute int    `db:"start_minute"`
	EndMinute   int    `db:"end_minute"`
}

type timeOffRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	StartsAt   time.Time `db:"starts_at"`
	EndsAt     time.Time `db:"ends_at"`
	Reason     string    `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}

type employeeRepository struct {
	baseRepo
}

var _ employee.Repository = (*employeeRepository)(nil) // interface compliance check

func NewEmployeeRepository(exec core.DBExecutor) *employeeRepository {
	return &employeeRepository{baseRepo{exec: exec}}
}

func (repo employeeRepository) toRow(e employee.Employee) employeeRow {
	return employeeRow{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     null.NewString(e.Email, e.Email != ""),
		Phone:     e.Phone,
		JobTitle:  e.Position,
		Color:     e.Color,
		IsActive:  e.IsActive,
		UserID:    null.NewString(e.UserID, e.UserID != ""),
		CreatedAt: utc(e.CreatedAt),
		UpdatedAt: utc(e.UpdatedAt),
	}
}

func (repo employeeRepository) fromRow(row employeeRow) employee.Employee {
	return employee.Employee{
		ID:           row.ID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email.String,
		Phone:        row.Phone,
		Position:     row.JobTitle,
		Color:        row.Color,
		IsActive:     row.IsActive,
		UserID:       row.UserID.String,
		TreatmentIDs: []string{},
		CreatedAt:    utc(row.CreatedAt),
		UpdatedAt:    utc(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to employee.ErrNotFound
func (repo employeeRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return employee.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo employeeRepository) mapWriteErr(err error, msg string) error {
	if isUniqueViolation(err) {
		return core.NewConflictError("an employee with this email or user already exists")
	}
	if isForeignKeyViolation(err) {
		return core.NewValidationError(err, core.FieldError{Field: "service_ids", Error: employee.ErrInvalidTreatments.Error()})
	}
	return errors.Wrap(err, msg)
}

func (repo employeeRepository) loadTreatments(ctx context.Context, exec core.DBExecutor, emps []employee.Employee) error {
	if len(emps) == 0 {
		return nil
	}
	ids := make([]string, len(emps))
	idx := make(map[string]int, len(emps))
	for i, e := range emps {
		ids[i] = e.ID
		idx[e.ID] = i
	}

	var links []struct {
		EmployeeID  string `db:"employee_id"`
		TreatmentID string `db:"treatment_id"`
	}
	query := "SELECT employee_id, treatment_id FROM employee_treatment WHERE employee_id IN (?) ORDER BY treatment_id"
	if err := selectContext(ctx, exec, &links, query, ids); err != nil {
		return errors.Wrap(err, "loading employee services")
	}
	for _, l := range links {
		i := idx[l.EmployeeID]
		emps[i].TreatmentIDs = append(emps[i].TreatmentIDs, l.TreatmentID)
	}
	return nil
}

func (repo employeeRepository) saveTreatments(ctx context.Context, exec core.DBExecutor, e employee.Employee) error {
	if _, err := execContext(ctx, exec, "DELETE FROM employee_treatment WHERE employee_id = ?", e.ID); err != nil {
		return errors.Wrap(err, "clearing employee services")
	}
	for _, tid := range e.TreatmentIDs {
		query := "INSERT INTO employee_treatment (employee_id, treatment_id) VALUES (?, ?)"
		if _, err := execContext(ctx, exec, query, e.ID, tid); err != nil {
			return repo.mapWriteErr(err, "saving employee services")
		}
	}
	return nil
}

func (repo employeeRepository) EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), "SELECT id FROM employee WHERE email = ? AND id <> ?", email, excludedID)
	return found, errors.Wrap(err, "checking employee email")
}

func (repo employeeRepository) UserLinked(ctx context.Context, userID, excludedID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), "SELECT id FROM employee WHERE user_id = ? AND id <> ?", userID, excludedID)
	return found, errors.Wrap(err, "checking employee user")
}

func (repo employeeRepository) CreateEmployee(ctx context.Context, e employee.Employee, exec ...core.DBExecutor) (employee.Employee, error) {
	exe := repo.getExec(exec)
	e.ID = uuid.New().String()
	query := `INSERT INTO employee (` + employeeColumns + `) VALUES (:id, :first_name, :last_name, :email, :phone,
		:job_title, :color, :is_active, :user_id, :created_at, :updated_at)`
	if err := namedExec(ctx, exe, query, repo.toRow(e)); err != nil {
		return employee.Employee{}, repo.mapWriteErr(err, "inserting employee")
	}
	if err := repo.saveTreatments(ctx, exe, e); err != nil {
		return employee.Employee{}, err
	}
	return repo.GetEmployee(ctx, e.ID, exe)
}

func (repo employeeRepository) QueryEmployees(ctx context.Context, filter *employee.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]employee.Employee, int, error) {
	exe := repo.getExec(exec)
	var w whereClause
	if filter != nil {
		w.search(filter.Search, "first_name", "last_name", "email", "phone", "job_title")
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.TreatmentID != "" {
			// employees performing the treatment, including those without listed skills
			w.add(`(id IN (SELECT employee_id FROM employee_treatment WHERE treatment_id = ?)
				OR id NOT IN (SELECT employee_id FROM employee_treatment))`, filter.TreatmentID)
		}
		if len(filter.IDs) > 0 {
			w.add("id IN (?)", filter.IDs)
		}
	}

	var rows []employeeRow
	order := orderBy(ordering, employeeOrdering, "first_name, last_name")
	count, err := queryPage(ctx, exe, &rows, employeeColumns, "employee", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying employees")
	}

	emps := make([]employee.Employee, len(rows))
	for i, row := range rows {
		emps[i] = repo.fromRow(row)
	}
	if err = repo.loadTreatments(ctx, exe, emps); err != nil {
		return nil, 0, err
	}
	return emps, count, nil
}

func (repo employeeRepository) GetEmployee(ctx context.Context, id string, exec ...core.DBExecutor) (employee.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return employee.Employee{}, employee.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row employeeRow
	if err := getContext(ctx, exe, &row, "SELECT "+employeeColumns+" FROM employee WHERE id = ?", id); err != nil {
		return employee.Employee{}, repo.trapNoRowsErr(err, "finding employee")
	}
	emps := []employee.Employee{repo.fromRow(row)}
	if err := repo.loadTreatments(ctx, exe, emps); err != nil {
		return employee.Employee{}, err
	}
	return emps[0], nil
}

func (repo employeeRepository) UpdateEmployee(ctx context.Context, e employee.Employee, exec ...core.DBExecutor) (employee.Employee, error) {
	exe := repo.getExec(exec)
	query := `UPDATE employee SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
		job_title = :job_title, color = :color, is_active = :is_active, user_id = :user_id, updated_at = :updated_at
		WHERE id = :id`
	if err := namedExec(ctx, exe, query, repo.toRow(e)); err != nil {
		return employee.Employee{}, repo.mapWriteErr(err, "updating employee")
	}
	if err := repo.saveTreatments(ctx, exe, e); err != nil {
		return employee.Employee{}, err
	}
	return repo.GetEmployee(ctx, e.ID, exe)
}

func (repo employeeRepository) DeleteEmployee(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM employee WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return employee.ErrHasAppointments
		}
		return errors.Wrap(err, "deleting employee")
	}
	return nil
}

// LockEmployee takes a row lock on postgres. SQLite serializes writers on its single connection.
func (repo employeeRepository) LockEmployee(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if exe.DriverName() != "postgres" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	var locked []string
	if err := selectContext(ctx, exe, &locked, "SELECT id FROM employee WHERE id = ? FOR UPDATE", id); err != nil {
		return errors.Wrap(err, "locking employee")
	}
	return nil
}

func (repo employeeRepository) GetShifts(ctx context.Context, employeeIDs []string, exec ...core.DBExecutor) ([]employee.Shift, error) {
	if len(employeeIDs) == 0 {
		return []employee.Shift{}, nil
	}
	var rows []shiftRow
	query := `SELECT employee_id, weekday, start_minute, end_minute FROM shift
		WHERE employee_id IN (?) ORDER BY employee_id, weekday, start_minute`
	if err := selectContext(ctx, repo.getExec(exec), &rows, query, employeeIDs); err != nil {
		return nil, errors.Wrap(err, "loading shifts")
	}
	shifts := make([]employee.Shift, len(rows))
	for i, row := range rows {
		shifts[i] = employee.Shift{
			EmployeeID: row.EmployeeID,
			Weekday:    time.Weekday(row.Weekday),
			Start:      employee.MinutesClock(row.StartMinute),
			End:        employee.MinutesClock(row.EndMinute),
		}
	}
	return shifts, nil
}

func (repo employeeRepository) ReplaceShifts(ctx context.Context, employeeID string, shifts []employee.Shift, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := execContext(ctx, exe, "DELETE FROM shift WHERE employee_id = ?", employeeID); err != nil {
		return errors.Wrap(err, "clearing shifts")
	}
	for _, s := range shifts {
		query := "INSERT INTO shift (employee_id, weekday, start_minute, end_minute) VALUES (?, ?, ?, ?)"
		if _, err := execContext(ctx, exe, query, employeeID, int(s.Weekday), s.StartMinute(), s.EndMinute()); err != nil {
			return errors.Wrap(err, "saving shift")
		}
	}
	return nil
}

func (repo employeeRepository) fromTimeOffRow(row timeOffRow) employee.TimeOff {
	return employee.TimeOff{
		ID:         row.ID,
		EmployeeID: row.EmployeeID,
		StartsAt:   utc(row.StartsAt),
		EndsAt:     utc(row.EndsAt),
		Reason:     row.Reason,
		CreatedAt:  utc(row.CreatedAt),
	}
}

func (repo employeeRepository) QueryTimeOff(ctx context.Context, filter employee.TimeOffFilter, exec ...core.DBExecutor) ([]employee.TimeOff, error) {
	var w whereClause
	if filter.EmployeeIDs != nil {
		if len(filter.EmployeeIDs) == 0 {
			return []employee.TimeOff{}, nil
		}
		w.add("employee_id IN (?)", filter.EmployeeIDs)
	}
	if !filter.To.IsZero() {
		w.add("starts_at < ?", filter.To.UTC())
	}
	if !filter.From.IsZero() {
		w.add("ends_at > ?", filter.From.UTC())
	}

	var rows []timeOffRow
	query := "SELECT id, employee_id, starts_at, ends_at, reason, created_at FROM time_off" + w.String() + " ORDER BY starts_at"
	if err := selectContext(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying time off")
	}
	timeOff := make([]employee.TimeOff, len(rows))
	for i, row := range rows {
		timeOff[i] = repo.fromTimeOffRow(row)
	}
	return timeOff, nil
}

func (repo employeeRepository) CreateTimeOff(ctx context.Context, to employee.TimeOff, exec ...core.DBExecutor) (employee.TimeOff, error) {
	to.ID = uuid.New().String()
	query := "INSERT INTO time_off (id, employee_id, starts_at, ends_at, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := execContext(ctx, repo.getExec(exec), query, to.ID, to.EmployeeID, utc(to.StartsAt), utc(to.EndsAt), to.Reason, utc(to.CreatedAt))
	if err != nil {
		return employee.TimeOff{}, errors.Wrap(err, "inserting time off")
	}
	return to, nil
}

func (repo employeeRepository) GetTimeOff(ctx context.Context, id string, exec ...core.DBExecutor) (employee.TimeOff, error) {
	if _, err := uuid.Parse(id); err != nil {
		return employee.TimeOff{}, employee.ErrTimeOffNotFound
	}
	var row timeOffRow
	query := "SELECT id, employee_id, starts_at, ends_at, reason, created_at FROM time_off WHERE id = ?"
	if err := getContext(ctx, repo.getExec(exec), &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return employee.TimeOff{}, employee.ErrTimeOffNotFound
		}
		return employee.TimeOff{}, errors.Wrap(err, "finding time off")
	}
	return repo.fromTimeOffRow(row), nil
}

func (repo employeeRepository) DeleteTimeOff(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM time_off WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting time off")
	}
	return nil
}
