package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
)

// itemRow is a line of a sale or a quotation; DocID is the owning document.
type itemRow struct {
	DocID       string      `db:"doc_id"`
	LineNo      int         `db:"line_no"`
	TreatmentID null.String `db:"treatment_id"`
	Description string      `db:"description"`
	Quantity    int         `db:"quantity"`
	UnitPrice   int64       `db:"unit_price"`
	Discount    int64       `db:"discount"`
}

// itemTable maps a line-item table and its document foreign key.
type itemTable struct {
	table string
	docFK string
}

var (
	saleItems      = itemTable{table: "sale_item", docFK: "sale_id"}
	quotationItems = itemTable{table: "quotation_item", docFK: "quotation_id"}
)

// load returns the items of the documents, keyed by document ID and ordered by line.
func (it itemTable) load(ctx context.Context, exec core.DBExecutor, docIDs []string) (map[string][]billing.LineItem, error) {
	items := make(map[string][]billing.LineItem, len(docIDs))
	if len(docIDs) == 0 {
		return items, nil
	}

	var rows []itemRow
	query := `SELECT ` + it.docFK + ` AS doc_id, line_no, treatment_id, description, quantity, unit_price, discount
		FROM ` + it.table + ` WHERE ` + it.docFK + ` IN (?) ORDER BY ` + it.docFK + `, line_no`
	if err := selectContext(ctx, exec, &rows, query, docIDs); err != nil {
		return nil, errors.Wrapf(err, "loading %s rows", it.table)
	}
	for _, row := range rows {
		items[row.DocID] = append(items[row.DocID], billing.LineItem{
			TreatmentID: row.TreatmentID.String,
			Description: row.Description,
			Quantity:    row.Quantity,
			UnitPrice:   core.Money(row.UnitPrice),
			Discount:    core.Money(row.Discount),
		})
	}
	return items, nil
}

// replace deletes the document's items and inserts the given ones.
func (it itemTable) replace(ctx context.Context, exec core.DBExecutor, docID string, items []billing.LineItem) error {
	if _, err := execContext(ctx, exec, "DELETE FROM "+it.table+" WHERE "+it.docFK+" = ?", docID); err != nil {
		return errors.Wrapf(err, "clearing %s rows", it.table)
	}
	query := `INSERT INTO ` + it.table + ` (` + it.docFK + `, line_no, treatment_id, description, quantity, unit_price, discount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, li := range items {
		_, err := execContext(ctx, exec, query,
			docID, i+1, nullString(li.TreatmentID),
			li.Description, li.Quantity, int64(li.UnitPrice), int64(li.Discount),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting %s row", it.table)
		}
	}
	return nil
}
