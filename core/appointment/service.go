package appointment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/treatment"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("appointment")
	ErrSlotTaken        = core.NewConflictError("time slot is not available")
	ErrOutsideSchedule  = core.NewConflictError("employee is not working at this time")
	ErrEmployeeOff      = core.NewConflictError("employee is off at this time")
	ErrFinal            = core.NewConflictError("appointment can no longer be changed")
	ErrCannotDelete     = core.NewConflictError("completed appointments cannot be deleted")
	ErrInvalidClient    = errors.New("invalid client")
	ErrInvalidEmployee  = errors.New("invalid employee")
	ErrInvalidTreatment = errors.New("invalid service")
	ErrNotPerformed     = errors.New("employee does not perform this service")
)

// NowFunc returns the current time; tests replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

type (
	Repository interface {
		CreateAppointment(ctx context.Context, a Appointment, exec ...core.DBExecutor) (Appointment, error)
		// QueryAppointments applies AND operation on available QueryFilter fields.
		// QueryFilter.From and QueryFilter.To select appointments overlapping [From, To).
		QueryAppointments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Appointment, int, error)
		GetAppointment(ctx context.Context, id string, exec ...core.DBExecutor) (Appointment, error)
		UpdateAppointment(ctx context.Context, a Appointment, exec ...core.DBExecutor) (Appointment, error)
		// DeleteAppointment returns ErrCannotDelete when a sale references the appointment.
		DeleteAppointment(ctx context.Context, id string, exec ...core.DBExecutor) error
		// FindBlocking returns the appointments of the employees overlapping [from, to) that hold their slot,
		// ignoring excludedID.
		FindBlocking(ctx context.Context, employeeIDs []string, from, to time.Time, excludedID string, exec ...core.DBExecutor) ([]Appointment, error)
	}

	Service interface {
		Create(ctx context.Context, na NewAppointment) (Appointment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Appointment, int, error)
		Get(ctx context.Context, id string) (Appointment, error)
		Update(ctx context.Context, id string, ua UpdateAppointment) (Appointment, error)
		Delete(ctx context.Context, id string) error
		SetStatus(ctx context.Context, id string, status Status) (Appointment, error)
		// Complete marks the appointment completed; completing twice is a no-op.
		Complete(ctx context.Context, id string, exec ...core.DBExecutor) (Appointment, error)
		Availability(ctx context.Context, aq AvailabilityQuery) ([]Slot, error)
		Roster(ctx context.Context, date time.Time) (Roster, error)
	}

	service struct {
		conf       *core.Config
		db         core.DB
		repo       Repository
		clients    client.Repository
		employees  employee.Repository
		treatments treatment.Repository
		metrics    core.Metrics
	}
)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	clients client.Repository,
	employees employee.Repository,
	treatments treatment.Repository,
	metrics core.Metrics,
) Service {
	return &service{
		conf:       conf,
		db:         db,
		repo:       repo,
		clients:    clients,
		employees:  employees,
		treatments: treatments,
		metrics:    core.MetricsOrNop(metrics),
	}
}

func invalidRef(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// book checks every booking rule for appt inside tx and fills in its end time and price.
func (svc *service) book(ctx context.Context, tx core.DBExecutor, appt *Appointment, explicitEnd bool) error {
	if err := svc.employees.LockEmployee(ctx, appt.EmployeeID, tx); err != nil {
		return err
	}

	cl, err := svc.clients.GetClient(ctx, appt.ClientID, tx)
	if err == client.ErrNotFound || (err == nil && !cl.IsActive) {
		return invalidRef("client_id", ErrInvalidClient)
	} else if err != nil {
		return err
	}
	emp, err := svc.employees.GetEmployee(ctx, appt.EmployeeID, tx)
	if err == employee.ErrNotFound || (err == nil && !emp.IsActive) {
		return invalidRef("employee_id", ErrInvalidEmployee)
	} else if err != nil {
		return err
	}
	trt, err := svc.treatments.GetTreatment(ctx, appt.TreatmentID, tx)
	if err == treatment.ErrNotFound || (err == nil && !trt.IsActive) {
		return invalidRef("service_id", ErrInvalidTreatment)
	} else if err != nil {
		return err
	}
	if !emp.Performs(trt.ID) {
		return invalidRef("service_id", ErrNotPerformed)
	}

	if !explicitEnd {
		appt.EndsAt = appt.StartsAt.Add(trt.Duration())
	}
	appt.Price = trt.Price

	loc := svc.conf.Business().Location()
	shifts, err := svc.employees.GetShifts(ctx, []string{emp.ID}, tx)
	if err != nil {
		return errors.Wrap(err, "loading shifts")
	}
	timeOff, err := svc.employees.QueryTimeOff(ctx, employee.TimeOffFilter{
		EmployeeIDs: []string{emp.ID},
		From:        appt.StartsAt,
		To:          appt.EndsAt,
	}, tx)
	if err != nil {
		return errors.Wrap(err, "loading time off")
	}

	inShift, free := fitsSchedule(appt.Interval(), ShiftIntervals(appt.StartsAt, loc, shifts), timeOffIntervals(timeOff))
	if !inShift {
		return ErrOutsideSchedule
	}
	if !free {
		return ErrEmployeeOff
	}

	blocking, err := svc.repo.FindBlocking(ctx, []string{emp.ID}, appt.StartsAt, appt.EndsAt, appt.ID, tx)
	if err != nil {
		return errors.Wrap(err, "finding overlapping appointments")
	}
	if len(blocking) > 0 {
		return ErrSlotTaken
	}
	return nil
}

func (svc *service) Create(ctx context.Context, na NewAppointment) (Appointment, error) {
	now := NowFunc()
	appt := Appointment{
		ClientID:    na.ClientID,
		EmployeeID:  na.EmployeeID,
		TreatmentID: na.TreatmentID,
		StartsAt:    na.StartsAt,
		EndsAt:      na.EndsAt,
		Status:      StatusScheduled,
		Notes:       na.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.book(ctx, tx, &appt, !na.EndsAt.IsZero()); err != nil {
			return err
		}
		var err error
		appt, err = svc.repo.CreateAppointment(ctx, appt, tx)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	svc.metrics.IncAppointments(string(appt.Status))
	return appt, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Appointment, int, error) {
	return svc.repo.QueryAppointments(ctx, filter, ordering, page)
}

func (svc *service) Get(ctx context.Context, id string) (Appointment, error) {
	return svc.repo.GetAppointment(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAppointment) (Appointment, error) {
	var appt Appointment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if appt, err = svc.repo.GetAppointment(ctx, id, tx); err != nil {
			return err
		}
		if appt.Status.IsFinal() {
			return ErrFinal
		}

		appt.ClientID = ua.ClientID
		appt.EmployeeID = ua.EmployeeID
		appt.TreatmentID = ua.TreatmentID
		appt.StartsAt = ua.StartsAt
		appt.EndsAt = ua.EndsAt
		appt.Notes = ua.Notes
		appt.UpdatedAt = NowFunc()
		if err = svc.book(ctx, tx, &appt, !ua.EndsAt.IsZero()); err != nil {
			return err
		}
		appt, err = svc.repo.UpdateAppointment(ctx, appt, tx)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	appt, err := svc.repo.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status == StatusCompleted {
		return ErrCannotDelete
	}
	return svc.repo.DeleteAppointment(ctx, id)
}

func (svc *service) SetStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	var appt Appointment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if appt, err = svc.repo.GetAppointment(ctx, id, tx); err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(status) {
			return core.NewConflictError("cannot change status from " + string(appt.Status) + " to " + string(status))
		}
		appt.Status = status
		appt.UpdatedAt = NowFunc()
		appt, err = svc.repo.UpdateAppointment(ctx, appt, tx)
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	svc.metrics.IncAppointments(string(status))
	return appt, nil
}

func (svc *service) Complete(ctx context.Context, id string, exec ...core.DBExecutor) (Appointment, error) {
	var (
		appt    Appointment
		changed bool
	)
	err := core.WithExec(ctx, svc.db, exec, func(tx core.DBExecutor) error {
		var err error
		if appt, err = svc.repo.GetAppointment(ctx, id, tx); err != nil {
			return err
		}
		if appt.Status == StatusCompleted {
			return nil
		}
		if !appt.Status.CanTransitionTo(StatusCompleted) {
			return core.NewConflictError("a " + string(appt.Status) + " appointment cannot be completed")
		}
		appt.Status = StatusCompleted
		appt.UpdatedAt = NowFunc()
		appt, err = svc.repo.UpdateAppointment(ctx, appt, tx)
		changed = err == nil
		return err
	})
	if err != nil {
		return Appointment{}, err
	}
	if changed {
		svc.metrics.IncAppointments(string(StatusCompleted))
	}
	return appt, nil
}

func (svc *service) Availability(ctx context.Context, aq AvailabilityQuery) ([]Slot, error) {
	biz := svc.conf.Business()
	loc := biz.Location()
	date, err := time.ParseInLocation("2006-01-02", aq.Date, loc)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
	}

	emp, err := svc.employees.GetEmployee(ctx, aq.EmployeeID)
	if err != nil {
		return nil, err
	}
	trt, err := svc.treatments.GetTreatment(ctx, aq.TreatmentID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive || !trt.IsActive || !emp.Performs(trt.ID) {
		return []Slot{}, nil
	}

	day := DayBounds(date, loc)
	shifts, err := svc.employees.GetShifts(ctx, []string{emp.ID})
	if err != nil {
		return nil, err
	}
	busy, err := svc.busyIntervals(ctx, []string{emp.ID}, day)
	if err != nil {
		return nil, err
	}
	return FreeSlots(ShiftIntervals(date, loc, shifts), busy[emp.ID], trt.Duration(), biz.SlotInterval(), NowFunc()), nil
}

// busyIntervals returns time off and booked appointments overlapping day, per employee.
func (svc *service) busyIntervals(ctx context.Context, employeeIDs []string, day Interval) (map[string][]Interval, error) {
	busy := make(map[string][]Interval, len(employeeIDs))
	timeOff, err := svc.employees.QueryTimeOff(ctx, employee.TimeOffFilter{EmployeeIDs: employeeIDs, From: day.Start, To: day.End})
	if err != nil {
		return nil, err
	}
	for _, to := range timeOff {
		busy[to.EmployeeID] = append(busy[to.EmployeeID], Interval{Start: to.StartsAt, End: to.EndsAt})
	}
	appts, err := svc.repo.FindBlocking(ctx, employeeIDs, day.Start, day.End, "")
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		busy[a.EmployeeID] = append(busy[a.EmployeeID], a.Interval())
	}
	return busy, nil
}

func (svc *service) Roster(ctx context.Context, date time.Time) (Roster, error) {
	loc := svc.conf.Business().Location()
	day := DayBounds(date, loc)
	roster := Roster{
		Date:      date.In(loc).Format("2006-01-02"),
		Timezone:  loc.String(),
		Employees: []RosterEntry{},
	}

	active := true
	var emps []employee.Employee
	for page := (core.Page{Number: 1, Size: core.MaxPageSize}); ; page.Number++ {
		batch, total, err := svc.employees.QueryEmployees(
			ctx, &employee.QueryFilter{IsActive: &active},
			[]core.DBOrdering{{Field: "first_name", Ascending: true}, {Field: "last_name", Ascending: true}},
			page,
		)
		if err != nil {
			return Roster{}, err
		}
		emps = append(emps, batch...)
		if len(batch) == 0 || len(emps) >= total {
			break
		}
	}
	if len(emps) == 0 {
		return roster, nil
	}

	ids := make([]string, len(emps))
	for i, e := range emps {
		ids[i] = e.ID
	}
	shifts, err := svc.employees.GetShifts(ctx, ids)
	if err != nil {
		return Roster{}, err
	}
	shiftsByEmp := make(map[string][]employee.Shift, len(emps))
	for _, s := range shifts {
		shiftsByEmp[s.EmployeeID] = append(shiftsByEmp[s.EmployeeID], s)
	}
	timeOff, err := svc.employees.QueryTimeOff(ctx, employee.TimeOffFilter{EmployeeIDs: ids, From: day.Start, To: day.End})
	if err != nil {
		return Roster{}, err
	}
	offByEmp := make(map[string][]Interval, len(emps))
	for _, to := range timeOff {
		offByEmp[to.EmployeeID] = append(offByEmp[to.EmployeeID], Interval{Start: to.StartsAt, End: to.EndsAt})
	}
	appts, err := svc.repo.FindBlocking(ctx, ids, day.Start, day.End, "")
	if err != nil {
		return Roster{}, err
	}
	apptsByEmp := make(map[string][]Appointment, len(emps))
	for _, a := range appts {
		apptsByEmp[a.EmployeeID] = append(apptsByEmp[a.EmployeeID], a)
	}

	for _, e := range emps {
		off := offByEmp[e.ID]
		entry := RosterEntry{
			EmployeeID:   e.ID,
			EmployeeName: e.FullName(),
			Color:        e.Color,
			Working:      Subtract(ShiftIntervals(date, loc, shiftsByEmp[e.ID]), off),
			TimeOff:      off,
			Appointments: apptsByEmp[e.ID],
		}
		if entry.Working == nil {
			entry.Working = []Interval{}
		}
		if entry.TimeOff == nil {
			entry.TimeOff = []Interval{}
		}
		if entry.Appointments == nil {
			entry.Appointments = []Appointment{}
		}
		roster.Employees = append(roster.Employees, entry)
	}
	return roster, nil
}

func timeOffIntervals(timeOff []employee.TimeOff) []Interval {
	ivs := make([]Interval, len(timeOff))
	for i, to := range timeOff {
		ivs[i] = Interval{Start: to.StartsAt, End: to.EndsAt}
	}
	return ivs
}
