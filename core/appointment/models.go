package appointment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

type Status string

// Statuses
const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var AllStatuses = []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// BlockingStatuses are the statuses of appointments that hold their slot.
var BlockingStatuses = []Status{StatusScheduled, StatusConfirmed, StatusCompleted}

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransitionTo reports whether an appointment in status s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// IsFinal reports whether no transition leaves s.
func (s Status) IsFinal() bool {
	return len(transitions[s]) == 0
}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	EmployeeID  string     `json:"employee_id"`
	TreatmentID string     `json:"service_id"`
	StartsAt    time.Time  `json:"starts_at"` // UTC
	EndsAt      time.Time  `json:"ends_at"`   // UTC
	Status      Status     `json:"status"`
	Price       core.Money `json:"price"` // treatment price when booked
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartsAt, End: a.EndsAt}
}

// NewAppointment contains information needed to book an Appointment.
// EndsAt defaults to StartsAt plus the treatment duration.
type NewAppointment struct {
	ClientID    string    `json:"client_id" validate:"required,uuid"`
	EmployeeID  string    `json:"employee_id" validate:"required,uuid"`
	TreatmentID string    `json:"service_id" validate:"required,uuid"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

func (na *NewAppointment) Validate(validate *validator.Validate) error {
	na.ClientID = core.CleanString(na.ClientID)
	na.EmployeeID = core.CleanString(na.EmployeeID)
	na.TreatmentID = core.CleanString(na.TreatmentID)
	na.StartsAt = na.StartsAt.UTC().Truncate(time.Minute)
	if !na.EndsAt.IsZero() {
		na.EndsAt = na.EndsAt.UTC().Truncate(time.Minute)
	}
	na.Notes = core.CleanString(na.Notes)

	if err := validate.Struct(na); err != nil {
		return err
	}
	if !na.EndsAt.IsZero() && !na.EndsAt.After(na.StartsAt) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_at", Error: "must be after starts_at"})
	}
	return nil
}

// UpdateAppointment reschedules or reassigns an Appointment. All booking rules apply again.
type UpdateAppointment = NewAppointment

type SetStatus struct {
	Status Status `json:"status" validate:"required,appointment_status"`
}

func (ss SetStatus) Validate(validate *validator.Validate) error { return validate.Struct(ss) }

type QueryFilter struct {
	From        time.Time
	To          time.Time
	EmployeeIDs []string
	ClientID    string
	Statuses    []Status
}

// AvailabilityQuery asks for the free start times of a treatment with an employee on a date.
type AvailabilityQuery struct {
	EmployeeID  string `json:"employee_id" query:"employee_id" validate:"required,uuid"`
	TreatmentID string `json:"service_id" query:"service_id" validate:"required,uuid"`
	Date        string `json:"date" query:"date" validate:"required,datetime=2006-01-02"`
}

func (aq AvailabilityQuery) Validate(validate *validator.Validate) error { return validate.Struct(aq) }

// Slot is a bookable interval.
type Slot = Interval

// RosterEntry is the working day of one employee.
type RosterEntry struct {
	EmployeeID   string        `json:"employee_id"`
	EmployeeName string        `json:"employee_name"`
	Color        string        `json:"color"`
	Working      []Interval    `json:"working"`
	TimeOff      []Interval    `json:"time_off"`
	Appointments []Appointment `json:"appointments"`
}

type Roster struct {
	Date      string        `json:"date"`
	Timezone  string        `json:"timezone"`
	Employees []RosterEntry `json:"employees"`
}
