package employee

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

type Employee struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Position     string    `json:"position"`
	Color        string    `json:"color"` // calendar color, #rrggbb
	IsActive     bool      `json:"is_active"`
	UserID       string    `json:"user_id"` // linked login account, if any
	TreatmentIDs []string  `json:"service_ids"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Performs reports whether the employee may perform the treatment.
// Employees without listed skills perform every treatment.
func (e Employee) Performs(treatmentID string) bool {
	if len(e.TreatmentIDs) == 0 {
		return true
	}
	for _, id := range e.TreatmentIDs {
		if id == treatmentID {
			return true
		}
	}
	return false
}

// NewEmployee contains information needed to create a new Employee.
type NewEmployee struct {
	FirstName    string   `json:"first_name" validate:"required,max=100"`
	LastName     string   `json:"last_name" validate:"max=100"`
	Email        string   `json:"email" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"omitempty,phone"`
	Position     string   `json:"position" validate:"max=100"`
	Color        string   `json:"color" validate:"omitempty,hexcolor"`
	UserID       string   `json:"user_id" validate:"omitempty,uuid"`
	TreatmentIDs []string `json:"service_ids" validate:"omitempty,dive,uuid"`
}

func (ne *NewEmployee) clean() {
	ne.FirstName = core.CleanString(ne.FirstName)
	ne.LastName = core.CleanString(ne.LastName)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.Phone = core.CleanString(ne.Phone)
	ne.Position = core.CleanString(ne.Position)
	ne.Color = core.CleanString(ne.Color, true /* lower */)
	ne.UserID = core.CleanString(ne.UserID)
	ne.TreatmentIDs = uniqueStrings(ne.TreatmentIDs)
}

func (ne *NewEmployee) Validate(validate *validator.Validate) error {
	ne.clean()
	return validate.Struct(ne)
}

// UpdateEmployee defines what information may be provided to modify an existing Employee.
type UpdateEmployee struct {
	NewEmployee
	IsActive *bool `json:"is_active"`
}

func (ue *UpdateEmployee) Validate(validate *validator.Validate) error {
	ue.clean()
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search      string
	IsActive    *bool
	TreatmentID string
	IDs         []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Shift is a weekly working interval. Start and End are wall-clock times in the business timezone.
type Shift struct {
	EmployeeID string       `json:"-"`
	Weekday    time.Weekday `json:"weekday" validate:"min=0,max=6"`
	Start      string       `json:"start" validate:"required,clock"`
	End        string       `json:"end" validate:"required,clock"`
}

func (s Shift) StartMinute() int { return ClockMinutes(s.Start) }
func (s Shift) EndMinute() int   { return ClockMinutes(s.End) }

// ClockMinutes converts "HH:MM" to minutes since midnight, -1 if malformed.
func ClockMinutes(clock string) int {
	var h, m int
	if n, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil || n != 2 {
		return -1
	}
	if h < 0 || m < 0 || m > 59 || h*60+m > 24*60 {
		return -1
	}
	return h*60 + m
}

// MinutesClock is the inverse of ClockMinutes.
func MinutesClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// UpdateSchedule replaces the whole weekly schedule of an employee.
type UpdateSchedule struct {
	Shifts []Shift `json:"shifts" validate:"dive"`
}

func (us *UpdateSchedule) Validate(validate *validator.Validate) error {
	if us.Shifts == nil {
		us.Shifts = []Shift{}
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	return checkShifts(us.Shifts)
}

type TimeOff struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	StartsAt   time.Time `json:"starts_at"` // UTC
	EndsAt     time.Time `json:"ends_at"`   // UTC
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type NewTimeOff struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Reason   string    `json:"reason" validate:"max=500"`
}

func (nt *NewTimeOff) Validate(validate *validator.Validate) error {
	nt.StartsAt = nt.StartsAt.UTC().Truncate(time.Minute)
	nt.EndsAt = nt.EndsAt.UTC().Truncate(time.Minute)
	nt.Reason = core.CleanString(nt.Reason)
	return validate.Struct(nt)
}

// TimeOffFilter selects the time off of EmployeeIDs overlapping [From, To).
// Zero bounds are open.
type TimeOffFilter struct {
	EmployeeIDs []string
	From        time.Time
	To          time.Time
}

func uniqueStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = core.CleanString(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
