package quotation

import (
	"context"
	"errors"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/sale"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("quotation")
	ErrNotDraft      = core.NewConflictError("only draft quotations can be changed")
	ErrExpired       = core.NewConflictError("quotation has expired")
	ErrNotAccepted   = core.NewConflictError("only accepted quotations can be invoiced")
	ErrInvalidClient = errors.New("invalid client")
	ErrNoClientEmail = errors.New("client has no email address")
)

// NowFunc returns the current time; tests replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

type (
	Repository interface {
		// CreateQuotation also stores the quotation's items.
		CreateQuotation(ctx context.Context, q Quotation, exec ...core.DBExecutor) (Quotation, error)
		// QueryQuotations applies AND operation on available QueryFilter fields.
		QueryQuotations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Quotation, int, error)
		GetQuotation(ctx context.Context, id string, exec ...core.DBExecutor) (Quotation, error)
		// UpdateQuotation also replaces the quotation's items.
		UpdateQuotation(ctx context.Context, q Quotation, exec ...core.DBExecutor) (Quotation, error)
		// UpdateQuotationStatus only stores the status, the sale link and the update time.
		UpdateQuotationStatus(ctx context.Context, q Quotation, exec ...core.DBExecutor) (Quotation, error)
		DeleteQuotation(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nq NewQuotation) (Quotation, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Quotation, int, error)
		Get(ctx context.Context, id string) (Quotation, error)
		Update(ctx context.Context, id string, uq UpdateQuotation) (Quotation, error)
		Delete(ctx context.Context, id string) error
		// Send emails the quotation to the client and marks drafts as sent.
		Send(ctx context.Context, id string) (Quotation, error)
		SetStatus(ctx context.Context, id string, status Status) (Quotation, error)
		// Convert invoices an accepted quotation, creating its sale in the same transaction.
		Convert(ctx context.Context, id string, c Convert) (Quotation, sale.Sale, error)
	}

	service struct {
		conf    *core.Config
		db      core.DB
		repo    Repository
		seq     billing.Sequencer
		clients client.Repository
		sales   sale.Service
		mailSvc core.EmailService
	}
)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	seq billing.Sequencer,
	clients client.Repository,
	sales sale.Service,
	mailSvc core.EmailService,
) Service {
	return &service{
		conf:    conf,
		db:      db,
		repo:    repo,
		seq:     seq,
		clients: clients,
		sales:   sales,
		mailSvc: mailSvc,
	}
}

func (svc *service) getClient(ctx context.Context, id string, exec ...core.DBExecutor) (client.Client, error) {
	cl, err := svc.clients.GetClient(ctx, id, exec...)
	if err == client.ErrNotFound {
		return client.Client{}, core.NewValidationError(ErrInvalidClient, core.FieldError{Field: "client_id", Error: ErrInvalidClient.Error()})
	}
	return cl, err
}

// validUntil defaults to the end of the last valid day in the business timezone.
func (svc *service) validUntil(requested, now time.Time) time.Time {
	if !requested.IsZero() {
		return requested
	}
	biz := svc.conf.Business()
	loc := biz.Location()
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+biz.QuotationValidDays+1, 0, 0, 0, 0, loc).Add(-time.Second).UTC()
}

func (svc *service) Create(ctx context.Context, nq NewQuotation) (Quotation, error) {
	now := NowFunc()
	q := Quotation{
		ClientID:   nq.ClientID,
		Status:     StatusDraft,
		ValidUntil: svc.validUntil(nq.ValidUntil, now),
		Items:      nq.Items,
		Totals:     billing.Compute(nq.Items, svc.conf.Business().TaxRateBasisPoints),
		Notes:      nq.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.getClient(ctx, q.ClientID, tx); err != nil {
			return err
		}
		n, err := svc.seq.Next(ctx, billing.CounterQuotation, tx)
		if err != nil {
			return err
		}
		q.Number = billing.FormatNumber(billing.CounterQuotation, n)
		q, err = svc.repo.CreateQuotation(ctx, q, tx)
		return err
	})
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Quotation, int, error) {
	now := NowFunc()
	if filter != nil {
		filter.Clean(now)
	}
	quots, n, err := svc.repo.QueryQuotations(ctx, filter, ordering, page)
	if err != nil {
		return nil, 0, err
	}
	for i := range quots {
		quots[i].RefreshStatus(now)
	}
	return quots, n, nil
}

func (svc *service) get(ctx context.Context, id string, exec ...core.DBExecutor) (Quotation, error) {
	q, err := svc.repo.GetQuotation(ctx, id, exec...)
	if err != nil {
		return Quotation{}, err
	}
	q.RefreshStatus(NowFunc())
	return q, nil
}

func (svc *service) Get(ctx context.Context, id string) (Quotation, error) {
	return svc.get(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uq UpdateQuotation) (Quotation, error) {
	var q Quotation
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if q, err = svc.repo.GetQuotation(ctx, id, tx); err != nil {
			return err
		}
		if q.Status != StatusDraft {
			return ErrNotDraft
		}
		if _, err = svc.getClient(ctx, uq.ClientID, tx); err != nil {
			return err
		}

		now := NowFunc()
		q.ClientID = uq.ClientID
		if !uq.ValidUntil.IsZero() {
			q.ValidUntil = uq.ValidUntil
		}
		q.Items = uq.Items
		q.Totals = billing.Compute(uq.Items, svc.conf.Business().TaxRateBasisPoints)
		q.Notes = uq.Notes
		q.UpdatedAt = now
		q, err = svc.repo.UpdateQuotation(ctx, q, tx)
		return err
	})
	if err != nil {
		return Quotation{}, err
	}
	q.RefreshStatus(NowFunc())
	return q, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	q, err := svc.repo.GetQuotation(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != StatusDraft {
		return ErrNotDraft
	}
	return svc.repo.DeleteQuotation(ctx, id)
}

func (svc *service) Send(ctx context.Context, id string) (Quotation, error) {
	q, err := svc.get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	switch q.Status {
	case StatusDraft, StatusSent:
	case StatusExpired:
		return Quotation{}, ErrExpired
	default:
		return Quotation{}, core.NewConflictError("a " + string(q.Status) + " quotation cannot be sent")
	}

	cl, err := svc.clients.GetClient(ctx, q.ClientID)
	if err != nil {
		return Quotation{}, pkgerrors.Wrap(err, "finding client")
	}
	if cl.Email == "" {
		return Quotation{}, core.NewValidationError(ErrNoClientEmail, core.FieldError{Field: "client_id", Error: ErrNoClientEmail.Error()})
	}

	if q.Status == StatusDraft {
		q.Status = StatusSent
		q.UpdatedAt = NowFunc()
		if q, err = svc.repo.UpdateQuotationStatus(ctx, q); err != nil {
			return Quotation{}, err
		}
	}
	svc.mailSvc.SendMessages(svc.quotationMessage(q, cl))
	return q, nil
}

type mailItem struct {
	Description string
	Quantity    int
	UnitPrice   string
	Discount    string
	Total       string
}

func (svc *service) quotationMessage(q Quotation, cl client.Client) *core.EmailMessage {
	biz := svc.conf.Business()
	cur := biz.Currency
	items := make([]mailItem, len(q.Items))
	for i, li := range q.Items {
		items[i] = mailItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice.Format(cur),
			Total:       li.Total().Format(cur),
		}
		if li.Discount > 0 {
			items[i].Discount = li.Discount.Format(cur)
		}
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: cl.FullName(), Address: cl.Email}},
		Subject:      "Quotation " + q.Number,
		TemplateName: "quotation",
		TemplateData: map[string]interface{}{
			"ClientName": cl.FullName(),
			"Number":     q.Number,
			"ValidUntil": q.ValidUntil.In(biz.Location()).Format("January 2, 2006"),
			"Items":      items,
			"Subtotal":   q.Subtotal.Format(cur),
			"Discount":   q.DiscountTotal.Format(cur),
			"Tax":        q.TaxTotal.Format(cur),
			"Total":      q.Total.Format(cur),
			"Notes":      q.Notes,
		},
	}
}

func (svc *service) SetStatus(ctx context.Context, id string, status Status) (Quotation, error) {
	q, err := svc.get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	switch q.Status {
	case StatusDraft, StatusSent:
	case StatusExpired:
		if status == StatusAccepted {
			return Quotation{}, ErrExpired
		}
	default:
		return Quotation{}, core.NewConflictError("a " + string(q.Status) + " quotation cannot be " + string(status))
	}

	q.Status = status
	q.UpdatedAt = NowFunc()
	return svc.repo.UpdateQuotationStatus(ctx, q)
}

func (svc *service) Convert(ctx context.Context, id string, c Convert) (Quotation, sale.Sale, error) {
	var (
		q Quotation
		s sale.Sale
	)
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if q, err = svc.get(ctx, id, tx); err != nil {
			return err
		}
		if q.Status != StatusAccepted {
			return ErrNotAccepted
		}

		s, err = svc.sales.Create(ctx, sale.NewSale{
			ClientID:      q.ClientID,
			EmployeeID:    c.EmployeeID,
			AppointmentID: c.AppointmentID,
			QuotationID:   q.ID,
			Items:         q.Items,
			PaymentMethod: c.PaymentMethod,
			Notes:         c.Notes,
		}, tx)
		if err != nil {
			return err
		}

		q.Status = StatusInvoiced
		q.SaleID = s.ID
		q.UpdatedAt = NowFunc()
		q, err = svc.repo.UpdateQuotationStatus(ctx, q, tx)
		return err
	})
	if err != nil {
		return Quotation{}, sale.Sale{}, err
	}
	return q, s, nil
}
