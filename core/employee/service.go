package employee

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("employee")
	ErrTimeOffNotFound   = core.NewNotFoundError("time off")
	ErrEmailExists       = errors.New("an employee with this email already exists")
	ErrUserLinked        = errors.New("this user is already linked to another employee")
	ErrInvalidUser       = errors.New("invalid user")
	ErrInvalidTreatments = errors.New("invalid services")
	ErrHasAppointments   = core.NewConflictError("employee has appointments or sales; deactivate it instead")
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error)
		UserLinked(ctx context.Context, userID, excludedID string, exec ...core.DBExecutor) (bool, error)
		// CreateEmployee also stores the employee's treatments.
		CreateEmployee(ctx context.Context, e Employee, exec ...core.DBExecutor) (Employee, error)
		// QueryEmployees applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on names, email, phone or position.
		QueryEmployees(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Employee, int, error)
		GetEmployee(ctx context.Context, id string, exec ...core.DBExecutor) (Employee, error)
		// UpdateEmployee also replaces the employee's treatments.
		UpdateEmployee(ctx context.Context, e Employee, exec ...core.DBExecutor) (Employee, error)
		// DeleteEmployee returns ErrHasAppointments when rows still reference the employee.
		DeleteEmployee(ctx context.Context, id string, exec ...core.DBExecutor) error
		// LockEmployee serializes bookings of one employee for the lifetime of the transaction.
		LockEmployee(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetShifts(ctx context.Context, employeeIDs []string, exec ...core.DBExecutor) ([]Shift, error)
		ReplaceShifts(ctx context.Context, employeeID string, shifts []Shift, exec ...core.DBExecutor) error

		QueryTimeOff(ctx context.Context, filter TimeOffFilter, exec ...core.DBExecutor) ([]TimeOff, error)
		CreateTimeOff(ctx context.Context, to TimeOff, exec ...core.DBExecutor) (TimeOff, error)
		GetTimeOff(ctx context.Context, id string, exec ...core.DBExecutor) (TimeOff, error)
		DeleteTimeOff(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, ne NewEmployee) (Employee, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Employee, int, error)
		Get(ctx context.Context, id string) (Employee, error)
		Update(ctx context.Context, id string, ue UpdateEmployee) (Employee, error)
		Delete(ctx context.Context, id string) error

		GetSchedule(ctx context.Context, id string) ([]Shift, error)
		// SetSchedule atomically replaces the weekly shifts of the employee.
		SetSchedule(ctx context.Context, id string, us UpdateSchedule) ([]Shift, error)

		ListTimeOff(ctx context.Context, id string, from, to time.Time) ([]TimeOff, error)
		AddTimeOff(ctx context.Context, id string, nt NewTimeOff) (TimeOff, error)
		RemoveTimeOff(ctx context.Context, id, timeOffID string) error
	}

	service struct {
		db         core.DB
		repo       Repository
		treatments treatment.Repository
		users      user.Repository
	}
)

func NewService(db core.DB, repo Repository, treatments treatment.Repository, users user.Repository) Service {
	return &service{db: db, repo: repo, treatments: treatments, users: users}
}

// checkRefs validates uniqueness of the email, the linked user and the listed treatments.
func (svc *service) checkRefs(ctx context.Context, ne NewEmployee, excludedID string) error {
	if ne.Email != "" {
		exists, err := svc.repo.EmailExists(ctx, ne.Email, excludedID)
		if err != nil {
			return err
		}
		if exists {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}

	if ne.UserID != "" {
		if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: ne.UserID}); err != nil {
			if err == user.ErrNotFound {
				return core.NewValidationError(ErrInvalidUser, core.FieldError{Field: "user_id", Error: ErrInvalidUser.Error()})
			}
			return err
		}
		linked, err := svc.repo.UserLinked(ctx, ne.UserID, excludedID)
		if err != nil {
			return err
		}
		if linked {
			return core.NewValidationError(ErrUserLinked, core.FieldError{Field: "user_id", Error: ErrUserLinked.Error()})
		}
	}

	if len(ne.TreatmentIDs) > 0 {
		_, n, err := svc.treatments.QueryTreatments(ctx, &treatment.QueryFilter{IDs: ne.TreatmentIDs}, nil, core.Page{Size: core.MaxPageSize})
		if err != nil {
			return err
		}
		if n != len(ne.TreatmentIDs) {
			return core.NewValidationError(ErrInvalidTreatments, core.FieldError{Field: "service_ids", Error: ErrInvalidTreatments.Error()})
		}
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ne NewEmployee) (Employee, error) {
	if err := svc.checkRefs(ctx, ne, ""); err != nil {
		return Employee{}, err
	}

	now := time.Now().UTC()
	emp := Employee{
		FirstName:    ne.FirstName,
		LastName:     ne.LastName,
		Email:        ne.Email,
		Phone:        ne.Phone,
		Position:     ne.Position,
		Color:        ne.Color,
		IsActive:     true,
		UserID:       ne.UserID,
		TreatmentIDs: ne.TreatmentIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		emp, err = svc.repo.CreateEmployee(ctx, emp, tx)
		return err
	})
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Employee, int, error) {
	return svc.repo.QueryEmployees(ctx, filter, ordering, page)
}

func (svc *service) Get(ctx context.Context, id string) (Employee, error) {
	return svc.repo.GetEmployee(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ue UpdateEmployee) (Employee, error) {
	emp, err := svc.repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if err = svc.checkRefs(ctx, ue.NewEmployee, emp.ID); err != nil {
		return Employee{}, err
	}

	emp.FirstName = ue.FirstName
	emp.LastName = ue.LastName
	emp.Email = ue.Email
	emp.Phone = ue.Phone
	emp.Position = ue.Position
	emp.Color = ue.Color
	emp.UserID = ue.UserID
	if ue.TreatmentIDs != nil {
		emp.TreatmentIDs = ue.TreatmentIDs
	}
	if ue.IsActive != nil {
		emp.IsActive = *ue.IsActive
	}
	emp.UpdatedAt = time.Now().UTC()

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		emp, err = svc.repo.UpdateEmployee(ctx, emp, tx)
		return err
	})
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetEmployee(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteEmployee(ctx, id)
}

func (svc *service) GetSchedule(ctx context.Context, id string) ([]Shift, error) {
	if _, err := svc.repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	shifts, err := svc.repo.GetShifts(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	SortShifts(shifts)
	return shifts, nil
}

func (svc *service) SetSchedule(ctx context.Context, id string, us UpdateSchedule) ([]Shift, error) {
	shifts := make([]Shift, len(us.Shifts))
	for i, s := range us.Shifts {
		s.EmployeeID = id
		shifts[i] = s
	}
	SortShifts(shifts)

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.LockEmployee(ctx, id, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetEmployee(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.ReplaceShifts(ctx, id, shifts, tx)
	})
	if err != nil {
		return nil, err
	}
	return shifts, nil
}

func (svc *service) ListTimeOff(ctx context.Context, id string, from, to time.Time) ([]TimeOff, error) {
	if _, err := svc.repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryTimeOff(ctx, TimeOffFilter{EmployeeIDs: []string{id}, From: from, To: to})
}

func (svc *service) AddTimeOff(ctx context.Context, id string, nt NewTimeOff) (TimeOff, error) {
	if _, err := svc.repo.GetEmployee(ctx, id); err != nil {
		return TimeOff{}, err
	}
	return svc.repo.CreateTimeOff(ctx, TimeOff{
		EmployeeID: id,
		StartsAt:   nt.StartsAt,
		EndsAt:     nt.EndsAt,
		Reason:     nt.Reason,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *service) RemoveTimeOff(ctx context.Context, id, timeOffID string) error {
	to, err := svc.repo.GetTimeOff(ctx, timeOffID)
	if err != nil {
		return err
	}
	if to.EmployeeID != id {
		return ErrTimeOffNotFound
	}
	return svc.repo.DeleteTimeOff(ctx, timeOffID)
}
