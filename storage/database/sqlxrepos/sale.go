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
	"github.com/trezcool/spadesk/core/sale"
)

const saleColumns = `id, number, client_id, employee_id, quotation_id, appointment_id, subtotal, discount_total,
	tax_total, total, payment_method, status, notes, sold_at, voided_at, void_reason, created_at`

var saleOrdering = map[string]string{
	"number":     "number",
	"sold_at":    "sold_at",
	"total":      "total",
	"created_at": "created_at",
}

type saleRow struct {
	ID            string      `db:"id"`
	Number        string      `db:"number"`
	ClientID      null.String `db:"client_id"`
	EmployeeID    null.String `db:"employee_id"`
	QuotationID   null.String `db:"quotation_id"`
	AppointmentID null.String `db:"appointment_id"`
	Subtotal      int64       `db:"subtotal"`
	DiscountTotal int64       `db:"discount_total"`
	TaxTotal      int64       `db:"tax_total"`
	Total         int64       `db:"total"`
	PaymentMethod string      `db:"payment_method"`
	Status        string      `db:"status"`
	Notes         string      `db:"notes"`
	SoldAt        time.Time   `db:"sold_at"`
	VoidedAt      null.Time   `db:"voided_at"`
	VoidReason    string      `db:"void_reason"`
	CreatedAt     time.Time   `db:"created_at"`
}

type saleRepository struct {
	baseRepo
}

var _ sale.Repository = (*saleRepository)(nil) // interface compliance check

func NewSaleRepository(exec core.DBExecutor) *saleRepository {
	return &saleRepository{baseRepo{exec: exec}}
}

func (repo saleRepository) toRow(s sale.Sale) saleRow {
	row := saleRow{
		ID:            s.ID,
		Number:        s.Number,
		ClientID:      nullString(s.ClientID),
		EmployeeID:    nullString(s.EmployeeID),
		QuotationID:   nullString(s.QuotationID),
		AppointmentID: nullString(s.AppointmentID),
		Subtotal:      int64(s.Subtotal),
		DiscountTotal: int64(s.DiscountTotal),
		TaxTotal:      int64(s.TaxTotal),
		Total:         int64(s.Total),
		PaymentMethod: string(s.PaymentMethod),
		Status:        string(s.Status),
		Notes:         s.Notes,
		SoldAt:        utc(s.SoldAt),
		VoidReason:    s.VoidReason,
		CreatedAt:     utc(s.CreatedAt),
	}
	if s.VoidedAt != nil {
		row.VoidedAt = null.TimeFrom(s.VoidedAt.UTC())
	}
	return row
}

func (repo saleRepository) fromRow(row saleRow) sale.Sale {
	s := sale.Sale{
		ID:            row.ID,
		Number:        row.Number,
		ClientID:      row.ClientID.String,
		EmployeeID:    row.EmployeeID.String,
		QuotationID:   row.QuotationID.String,
		AppointmentID: row.AppointmentID.String,
		Items:         []billing.LineItem{},
		Totals: billing.Totals{
			Subtotal:      core.Money(row.Subtotal),
			DiscountTotal: core.Money(row.DiscountTotal),
			TaxTotal:      core.Money(row.TaxTotal),
			Total:         core.Money(row.Total),
		},
		PaymentMethod: sale.PaymentMethod(row.PaymentMethod),
		Status:        sale.Status(row.Status),
		Notes:         row.Notes,
		SoldAt:        utc(row.SoldAt),
		VoidReason:    row.VoidReason,
		CreatedAt:     utc(row.CreatedAt),
	}
	if row.VoidedAt.Valid {
		t := row.VoidedAt.Time.UTC()
		s.VoidedAt = &t
	}
	return s
}

// trapNoRowsErr maps "no rows" err to sale.ErrNotFound
func (repo saleRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return sale.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo saleRepository) withItems(ctx context.Context, exec core.DBExecutor, rows []saleRow) ([]sale.Sale, error) {
	sales := make([]sale.Sale, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		sales[i] = repo.fromRow(row)
		ids[i] = row.ID
	}
	items, err := saleItems.load(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		if lines, ok := items[sales[i].ID]; ok {
			sales[i].Items = lines
		}
	}
	return sales, nil
}

func (repo saleRepository) CreateSale(ctx context.Context, s sale.Sale, exec ...core.DBExecutor) (sale.Sale, error) {
	exe := repo.getExec(exec)
	s.ID = uuid.New().String()
	query := `INSERT INTO sale (` + saleColumns + `) VALUES (:id, :number, :client_id, :employee_id, :quotation_id,
		:appointment_id, :subtotal, :discount_total, :tax_total, :total, :payment_method, :status, :notes, :sold_at,
		:voided_at, :void_reason, :created_at)`
	if err := namedExec(ctx, exe, query, repo.toRow(s)); err != nil {
		return sale.Sale{}, errors.Wrap(err, "inserting sale")
	}
	if err := saleItems.replace(ctx, exe, s.ID, s.Items); err != nil {
		return sale.Sale{}, err
	}
	return repo.GetSale(ctx, s.ID, exe)
}

func (repo saleRepository) QuerySales(ctx context.Context, filter *sale.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]sale.Sale, int, error) {
	exe := repo.getExec(exec)
	var w whereClause
	if filter != nil {
		w.search(filter.Search, "number")
		if !filter.From.IsZero() {
			w.add("sold_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("sold_at < ?", filter.To.UTC())
		}
		if filter.ClientID != "" {
			w.add("client_id = ?", filter.ClientID)
		}
		if filter.EmployeeID != "" {
			w.add("employee_id = ?", filter.EmployeeID)
		}
		if filter.PaymentMethod != "" {
			w.add("payment_method = ?", string(filter.PaymentMethod))
		}
		if filter.Status != "" {
			w.add("status = ?", string(filter.Status))
		}
	}

	var rows []saleRow
	order := orderBy(ordering, saleOrdering, "sold_at DESC")
	count, err := queryPage(ctx, exe, &rows, saleColumns, "sale", w, order, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying sales")
	}
	sales, err := repo.withItems(ctx, exe, rows)
	if err != nil {
		return nil, 0, err
	}
	return sales, count, nil
}

func (repo saleRepository) GetSale(ctx context.Context, id string, exec ...core.DBExecutor) (sale.Sale, error) {
	if _, err := uuid.Parse(id); err != nil {
		return sale.Sale{}, sale.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row saleRow
	if err := getContext(ctx, exe, &row, "SELECT "+saleColumns+" FROM sale WHERE id = ?", id); err != nil {
		return sale.Sale{}, repo.trapNoRowsErr(err, "finding sale")
	}
	sales, err := repo.withItems(ctx, exe, []saleRow{row})
	if err != nil {
		return sale.Sale{}, err
	}
	return sales[0], nil
}

func (repo saleRepository) VoidSale(ctx context.Context, s sale.Sale, exec ...core.DBExecutor) (sale.Sale, error) {
	query := "UPDATE sale SET status = :status, voided_at = :voided_at, void_reason = :void_reason WHERE id = :id"
	if err := namedExec(ctx, repo.getExec(exec), query, repo.toRow(s)); err != nil {
		return sale.Sale{}, errors.Wrap(err, "voiding sale")
	}
	return s, nil
}

func (repo saleRepository) SummarizeSales(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) (sale.Summary, error) {
	exe := repo.getExec(exec)
	where := " FROM sale WHERE status = ? AND sold_at >= ? AND sold_at < ?"
	args := []interface{}{string(sale.StatusPaid), from.UTC(), to.UTC()}

	var totals struct {
		Count         int   `db:"count"`
		Revenue       int64 `db:"revenue"`
		TaxTotal      int64 `db:"tax_total"`
		DiscountTotal int64 `db:"discount_total"`
	}
	query := `SELECT COUNT(*) AS count,
		CAST(COALESCE(SUM(total), 0) AS BIGINT) AS revenue,
		CAST(COALESCE(SUM(tax_total), 0) AS BIGINT) AS tax_total,
		CAST(COALESCE(SUM(discount_total), 0) AS BIGINT) AS discount_total` + where
	if err := getContext(ctx, exe, &totals, query, args...); err != nil {
		return sale.Summary{}, errors.Wrap(err, "summarizing sales")
	}

	sum := sale.Summary{
		Count:           totals.Count,
		Revenue:         core.Money(totals.Revenue),
		TaxTotal:        core.Money(totals.TaxTotal),
		DiscountTotal:   core.Money(totals.DiscountTotal),
		ByPaymentMethod: []sale.MethodTotal{},
		ByEmployee:      []sale.EmployeeTotal{},
	}
	if sum.Count == 0 {
		return sum, nil
	}

	query = `SELECT payment_method, COUNT(*) AS count, CAST(SUM(total) AS BIGINT) AS total` + where +
		` GROUP BY payment_method ORDER BY total DESC, payment_method`
	if err := selectContext(ctx, exe, &sum.ByPaymentMethod, query, args...); err != nil {
		return sale.Summary{}, errors.Wrap(err, "summarizing sales by payment method")
	}

	query = `SELECT COALESCE(employee_id, '') AS employee_id, COUNT(*) AS count, CAST(SUM(total) AS BIGINT) AS total` + where +
		` GROUP BY COALESCE(employee_id, '') ORDER BY total DESC, employee_id`
	if err := selectContext(ctx, exe, &sum.ByEmployee, query, args...); err != nil {
		return sale.Summary{}, errors.Wrap(err, "summarizing sales by employee")
	}
	return sum, nil
}
