package client

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

// Genders
const (
	GenderFemale = "female"
	GenderMale   = "male"
	GenderOther  = "other"
)

type Client struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	BirthDate string    `json:"birth_date"` // YYYY-MM-DD
	Gender    string    `json:"gender"`
	Notes     string    `json:"notes"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// NewClient contains information needed to create a new Client.
type NewClient struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender    string `json:"gender" validate:"omitempty,oneof=female male other"`
	Notes     string `json:"notes" validate:"max=2000"`
}

func (nc *NewClient) clean() {
	nc.FirstName = core.CleanString(nc.FirstName)
	nc.LastName = core.CleanString(nc.LastName)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.CleanString(nc.Phone)
	nc.BirthDate = core.CleanString(nc.BirthDate)
	nc.Gender = core.CleanString(nc.Gender, true /* lower */)
	nc.Notes = core.CleanString(nc.Notes)
}

func (nc *NewClient) Validate(validate *validator.Validate) error {
	nc.clean()
	return validate.Struct(nc)
}

// UpdateClient defines what information may be provided to modify an existing Client.
// All fields are replaced; IsActive is left untouched when omitted.
type UpdateClient struct {
	NewClient
	IsActive *bool `json:"is_active"`
}

func (uc *UpdateClient) Validate(validate *validator.Validate) error {
	uc.clean()
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search   string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
