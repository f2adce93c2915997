package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/quotation"
)

const quotationColumns = `id, number, client_id, status, valid_until, subtotal, discount_total, tax_total, total,
	notes, sale_id, created_at, updated_at`

var quotationOrdering = map[string]string{
	"number":      "number",
	"valid_until": "valid_until",
	"total":       "total",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

type quotationRow struct {
	ID            string      `db:"id"`
	Number        string      `db:"number"`
	ClientID      string      `db:"client_id"`
	Status        string      `db:"status"`
	ValidUntil    time.Time   `db:"valid_until"`
	Subtotal      int64       `db:"subtotal"`
	DiscountTotal int64       `db:"discount_total"`
	TaxTotal      int64       `db:"tax_total"`
	Total         int64       `db:"total"`
	Notes         string      `db:"notes"`
	SaleID        null.String `db:"sale_id"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

type quotationRepository struct {
	baseRepo
}

var _ quotation.Repository = (*quotationRepository)(nil) // interface compliance check

func NewQuotationRepository(exec core.DBExecutor) *quotationRepository {
	return &quotationRepository{baseRepo{exec: exec}}
}

func (repo quotationRepository) toRow(q quotation.Quotation) quotationRow {
	return quotationRow{
		ID:            q.ID,
		Number:        q.Number,
		ClientID:      q.ClientID,
		Status:        string(q.Status),
		ValidUntil:    utc(q.ValidUntil),
		Subtotal:      int64(q.Subtotal),
		DiscountTotal: int64(q.DiscountTotal),
		TaxTotal:      int64(q.TaxTotal),
		Total:         int64(q.Total),
		Notes:         q.Notes,
		SaleID:        nullString(q.SaleID),
		CreatedAt:     utc(q.CreatedAt),
		UpdatedAt:     utc(q.UpdatedAt),
	}
}

func (repo quotationRepository) fromRow(row quotationRow) quotation.Quotation {
	return quotation.Quotation{
		ID:         row.ID,
		Number:     row.Number,
		ClientID:   row.ClientID,
		Status:     quotation.Status(row.Status),
		ValidUntil: utc(row.ValidUntil),
		Items:      []billing.LineItem{},
		Totals: billing.Totals{
			Subtotal:      core.Money(row.Subtotal),
			DiscountTotal: core.Money(row.DiscountTotal),
			TaxTotal:      core.Money(row.TaxTotal),
			Total:         core.Money(row.Total),
		},
		Notes:     row.Notes,
		SaleID:    row.SaleID.String,
		CreatedAt: utc(row.CreatedAt),
		UpdatedAt: utc(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to quotation.ErrNotFound
func (repo quotationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return quotation.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo quotationRepository) withItems(ctx context.Context, exec core.DBExecutor, rows []quotationRow) ([]quotation.Quotation, error) {
	quots := make([]quotation.Quotation, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		quots[i] = repo.fromRow(row)
		ids[i] = row.ID
	}
	items, err := quotationItems.load(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for i := range quots {
		if lines, ok := items[quots[i].ID]; ok {
			quots[i].Items = lines
		}
	}
	return quots, nil
}

func (repo quotationRepository) CreateQuotation(ctx context.Context, q quotation.Quotation, exec ...core.DBExecutor) (quotation.Quotation, error) {
	exe := repo.getExec(exec)
	q.ID = uuid.New().String()
	query := `INSERT INTO quotation (` + quotationColumns + `) VALUES (:id, :number, :client_id, :status, :valid_until,
		:subtotal, :discount_total, :tax_total, :total, :notes, :sale_id, :created_at, :updated_at)`
	if err := namedExec(ctx, exe, query, repo.toRow(q)); err != nil {
		return quotation.Quotation{}, errors.Wrap(err, "inserting quotation")
	}
	if err := quotationItems.replace(ctx, exe, q.ID, q.Items); err != nil {
		return quotation.Quotation{}, err
	}
	return repo.GetQuotation(ctx, q.ID, exe)
}

func (repo quotationRepository) QueryQuotations(ctx context.Context, filter *quotation.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]quotation.Quotation, int, error) {
	exe := repo.getExec(exec)
	var w whereClause
	if filter != nil {
		w.search(filter.Search, "number")
		if filter.ClientID != "" {
			w.add("client_id = ?", filter.ClientID)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, len(filter.Statuses))
			for i, st := range filter.Statuses {
				statuses[i] = string(st)
			}
			w.add("status IN (?)", statuses)
		}
		if !filter.ValidAfter.IsZero() {
			w.add("valid_until >= ?", filter.ValidAfter.UTC())
		}
		if !filter.ValidBefore.IsZero() {
			w.add("valid_until < ?", filter.ValidBefore.UTC())
		}
		if !filter.From.IsZero() {
			w.add("created_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("created_at < ?", filter.To.UTC())
		}
	}

	var rows []quotationRow
	order := orderBy(ordering, quotationOrdering, "created_at DESC")
	count, err := queryPage(ctx, exe, &rows, quotationColumns, "quotation", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying quotations")
	}
	quots, err := repo.withItems(ctx, exe, rows)
	if err != nil {
		return nil, 0, err
	}
	return quots, count, nil
}

func (repo quotationRepository) GetQuotation(ctx context.Context, id string, exec ...core.DBExecutor) (quotation.Quotation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quotation.Quotation{}, quotation.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row quotationRow
	if err := getContext(ctx, exe, &row, "SELECT "+quotationColumns+" FROM quotation WHERE id = ?", id); err != nil {
		return quotation.Quotation{}, repo.trapNoRowsErr(err, "finding quotation")
	}
	quots, err := repo.withItems(ctx, exe, []quotationRow{row})
	if err != nil {
		return quotation.Quotation{}, err
	}
	return quots[0], nil
}

func (repo quotationRepository) UpdateQuotation(ctx context.Context, q quotation.Quotation, exec ...core.DBExecutor) (quotation.Quotation, error) {
	exe := repo.getExec(exec)
	query := `UPDATE quotation SET client_id = :client_id, status = :status, valid_until = :valid_until,
		subtotal = :subtotal, discount_total = :discount_total, tax_total = :tax_total, total = :total,
		notes = :notes, sale_id = :sale_id, updated_at = :updated_at
		WHERE id = :id`
	if err := namedExec(ctx, exe, query, repo.toRow(q)); err != nil {
		return quotation.Quotation{}, errors.Wrap(err, "updating quotation")
	}
	if err := quotationItems.replace(ctx, exe, q.ID, q.Items); err != nil {
		return quotation.Quotation{}, err
	}
	return repo.GetQuotation(ctx, q.ID, exe)
}

func (repo quotationRepository) UpdateQuotationStatus(ctx context.Context, q quotation.Quotation, exec ...core.DBExecutor) (quotation.Quotation, error) {
	query := "UPDATE quotation SET status = :status, sale_id = :sale_id, updated_at = :updated_at WHERE id = :id"
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(q)); err != nil {
		return quotation.Quotation{}, errors.Wrap(err, "updating quotation status")
	}
	return q, nil
}

func (repo quotationRepository) DeleteQuotation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := execContext(ctx, repo.getExec(exec), "DELETE FROM quotation WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting quotation")
	}
	return nil
}
