// Package billing holds the line-item math and document numbering shared by quotations and sales.
package billing

import (
	"context"
	"fmt"

	"github.com/trezcool/spadesk/core"
)

// Document counters
const (
	CounterQuotation = "quotation"
	CounterSale      = "sale"
)

var prefixes = map[string]string{
	CounterQuotation: "Q",
	CounterSale:      "S",
}

// Sequencer hands out gap-free document numbers. Next must run inside the creating transaction.
type Sequencer interface {
	Next(ctx context.Context, counter string, exec ...core.DBExecutor) (int64, error)
}

// FormatNumber renders the n-th document of counter, e.g. "Q-000042".
func FormatNumber(counter string, n int64) string {
	prefix, ok := prefixes[counter]
	if !ok {
		prefix = "X"
	}
	return fmt.Sprintf("%s-%06d", prefix, n)
}

type LineItem struct {
	TreatmentID string     `json:"service_id,omitempty" validate:"omitempty,uuid"`
	Description string     `json:"description" validate:"required,max=300"`
	Quantity    int        `json:"quantity" validate:"min=1,max=1000"`
	UnitPrice   core.Money `json:"unit_price" validate:"min=0"`
	Discount    core.Money `json:"discount" validate:"min=0"`
}

// Gross is quantity * unit price.
func (li LineItem) Gross() core.Money {
	return core.Money(li.Quantity) * li.UnitPrice
}

// Total is the gross amount minus the discount.
func (li LineItem) Total() core.Money {
	return li.Gross() - li.Discount
}

type Totals struct {
	Subtotal      core.Money `json:"subtotal"`
	DiscountTotal core.Money `json:"discount_total"`
	TaxTotal      core.Money `json:"tax_total"`
	Total         core.Money `json:"total"`
}

// Compute sums the items and applies the tax rate (basis points) on the discounted subtotal.
func Compute(items []LineItem, taxRateBasisPoints int64) Totals {
	var t Totals
	for _, li := range items {
		t.Subtotal += li.Gross()
		t.DiscountTotal += li.Discount
	}
	t.TaxTotal = (t.Subtotal - t.DiscountTotal).ApplyBasisPoints(taxRateBasisPoints)
	t.Total = t.Subtotal - t.DiscountTotal + t.TaxTotal
	return t
}

// CleanItems trims the text fields of items in place.
func CleanItems(items []LineItem) {
	for i := range items {
		items[i].Description = core.CleanString(items[i].Description)
		items[i].TreatmentID = core.CleanString(items[i].TreatmentID)
	}
}

// CheckDiscounts rejects discounts larger than the gross amount of their line.
func CheckDiscounts(items []LineItem) error {
	var fldErrs []core.FieldError
	for i, li := range items {
		if li.Discount > li.Gross() {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("items[%d].discount", i),
				Error: "discount cannot exceed quantity times unit price",
			})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}
