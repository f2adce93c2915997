package treatment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

// Treatment is a service offered by the spa (massage, facial, ...).
type Treatment struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	Price           core.Money `json:"price"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

func (t Treatment) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// NewTreatment contains information needed to create a new Treatment.
type NewTreatment struct {
	Name            string     `json:"name" validate:"required,max=150"`
	Category        string     `json:"category" validate:"max=100"`
	Description     string     `json:"description" validate:"max=2000"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=5,max=600,duration_step"`
	Price           core.Money `json:"price" validate:"min=0"`
}

func (nt *NewTreatment) clean() {
	nt.Name = core.CleanString(nt.Name)
	nt.Category = core.CleanString(nt.Category)
	nt.Description = core.CleanString(nt.Description)
}

func (nt *NewTreatment) Validate(validate *validator.Validate) error {
	nt.clean()
	return validate.Struct(nt)
}

// UpdateTreatment defines what information may be provided to modify an existing Treatment.
type UpdateTreatment struct {
	NewTreatment
	IsActive *bool `json:"is_active"`
}

func (ut *UpdateTreatment) Validate(validate *validator.Validate) error {
	ut.clean()
	return validate.Struct(ut)
}

type QueryFilter struct {
	Search   string
	Category string
	IsActive *bool
	IDs      []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
}
