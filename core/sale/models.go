package sale

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
)

type (
	PaymentMethod string
	Status        string
)

// Payment methods
const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// Statuses
const (
	StatusPaid Status = "paid"
	StatusVoid Status = "void"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentTransfer, PaymentOther}

type Sale struct {
	ID            string             `json:"id"`
	Number        string             `json:"number"`
	ClientID      string             `json:"client_id"`
	EmployeeID    string             `json:"employee_id"`
	QuotationID   string             `json:"quotation_id"`
	AppointmentID string             `json:"appointment_id"`
	Items         []billing.LineItem `json:"items"`
	billing.Totals
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        Status        `json:"status"`
	Notes         string        `json:"notes"`
	SoldAt        time.Time     `json:"sold_at"`   // UTC
	VoidedAt      *time.Time    `json:"voided_at"` // UTC
	VoidReason    string        `json:"void_reason"`
	CreatedAt     time.Time     `json:"created_at"` // UTC
}

// NewSale contains information needed to record a Sale.
type NewSale struct {
	ClientID      string             `json:"client_id" validate:"omitempty,uuid"`
	EmployeeID    string             `json:"employee_id" validate:"omitempty,uuid"`
	AppointmentID string             `json:"appointment_id" validate:"omitempty,uuid"`
	QuotationID   string             `json:"-"`
	Items         []billing.LineItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod      `json:"payment_method" validate:"required,payment_method"`
	Notes         string             `json:"notes" validate:"max=2000"`
	SoldAt        time.Time          `json:"sold_at"` // defaults to now
}

func (ns *NewSale) Validate(validate *validator.Validate) error {
	ns.ClientID = core.CleanString(ns.ClientID)
	ns.EmployeeID = core.CleanString(ns.EmployeeID)
	ns.AppointmentID = core.CleanString(ns.AppointmentID)
	ns.Notes = core.CleanString(ns.Notes)
	billing.CleanItems(ns.Items)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return billing.CheckDiscounts(ns.Items)
}

type VoidSale struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (vs *VoidSale) Validate(validate *validator.Validate) error {
	vs.Reason = core.CleanString(vs.Reason)
	return validate.Struct(vs)
}

type QueryFilter struct {
	Search        string // number
	From          time.Time
	To            time.Time
	ClientID      string
	EmployeeID    string
	PaymentMethod PaymentMethod
	Status        Status
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type MethodTotal struct {
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	Count         int           `json:"count" db:"count"`
	Total         core.Money    `json:"total" db:"total"`
}

type EmployeeTotal struct {
	EmployeeID string     `json:"employee_id" db:"employee_id"`
	Count      int        `json:"count" db:"count"`
	Total      core.Money `json:"total" db:"total"`
}

// Summary aggregates the paid sales sold in [From, To).
type Summary struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	Currency        string          `json:"currency"`
	Count           int             `json:"count"`
	Revenue         core.Money      `json:"revenue"`
	TaxTotal        core.Money      `json:"tax_total"`
	DiscountTotal   core.Money      `json:"discount_total"`
	ByPaymentMethod []MethodTotal   `json:"by_payment_method"`
	ByEmployee      []EmployeeTotal `json:"by_employee"`
}
