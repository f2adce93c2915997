package quotation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/sale"
)

type Status string

// Statuses
const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired" // never stored, see Quotation.RefreshStatus
	StatusInvoiced Status = "invoiced"
)

type Quotation struct {
	ID         string             `json:"id"`
	Number     string             `json:"number"`
	ClientID   string             `json:"client_id"`
	Status     Status             `json:"status"`
	ValidUntil time.Time          `json:"valid_until"` // UTC
	Items      []billing.LineItem `json:"items"`
	billing.Totals
	Notes     string    `json:"notes"`
	SaleID    string    `json:"sale_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// RefreshStatus reports draft and sent quotations past their validity as expired.
func (q *Quotation) RefreshStatus(now time.Time) {
	if (q.Status == StatusDraft || q.Status == StatusSent) && now.After(q.ValidUntil) {
		q.Status = StatusExpired
	}
}

// NewQuotation contains information needed to create a new Quotation.
// ValidUntil defaults to the configured validity period.
type NewQuotation struct {
	ClientID   string             `json:"client_id" validate:"required,uuid"`
	ValidUntil time.Time          `json:"valid_until"`
	Items      []billing.LineItem `json:"items" validate:"required,min=1,dive"`
	Notes      string             `json:"notes" validate:"max=2000"`
}

func (nq *NewQuotation) Validate(validate *validator.Validate) error {
	nq.ClientID = core.CleanString(nq.ClientID)
	nq.Notes = core.CleanString(nq.Notes)
	if !nq.ValidUntil.IsZero() {
		nq.ValidUntil = nq.ValidUntil.UTC()
	}
	billing.CleanItems(nq.Items)

	if err := validate.Struct(nq); err != nil {
		return err
	}
	return billing.CheckDiscounts(nq.Items)
}

// UpdateQuotation replaces the content of a draft Quotation.
type UpdateQuotation = NewQuotation

type SetStatus struct {
	Status Status `json:"status" validate:"required,oneof=accepted rejected"`
}

func (ss SetStatus) Validate(validate *validator.Validate) error { return validate.Struct(ss) }

// Convert contains the payment details of the sale created from an accepted Quotation.
type Convert struct {
	PaymentMethod sale.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
	EmployeeID    string             `json:"employee_id" validate:"omitempty,uuid"`
	AppointmentID string             `json:"appointment_id" validate:"omitempty,uuid"`
	Notes         string             `json:"notes" validate:"max=2000"`
}

func (c *Convert) Validate(validate *validator.Validate) error {
	c.EmployeeID = core.CleanString(c.EmployeeID)
	c.AppointmentID = core.CleanString(c.AppointmentID)
	c.Notes = core.CleanString(c.Notes)
	return validate.Struct(c)
}

type QueryFilter struct {
	Search   string // number
	ClientID string
	Status   Status
	From     time.Time // created_at
	To       time.Time

	// set from Status
	Statuses    []Status
	ValidAfter  time.Time
	ValidBefore time.Time
}

// Clean resolves the computed expired status into stored statuses and validity bounds.
func (qf *QueryFilter) Clean(now time.Time) {
	qf.Search = core.CleanString(qf.Search)
	switch qf.Status {
	case "":
	case StatusExpired:
		qf.Statuses = []Status{StatusDraft, StatusSent}
		qf.ValidBefore = now
	case StatusDraft, StatusSent:
		qf.Statuses = []Status{qf.Status}
		qf.ValidAfter = now
	default:
		qf.Statuses = []Status{qf.Status}
	}
}
