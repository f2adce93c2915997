package sale

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/treatment"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("sale")
	ErrAlreadyVoid       = core.NewConflictError("sale is already void")
	ErrInvalidClient     = errors.New("invalid client")
	ErrInvalidEmployee   = errors.New("invalid employee")
	ErrInvalidTreatments = errors.New("invalid services")
	ErrClientMismatch    = errors.New("client does not match the appointment's client")
)

// NowFunc returns the current time; tests replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

type (
	Repository interface {
		// CreateSale also stores the sale's items.
		CreateSale(ctx context.Context, s Sale, exec ...core.DBExecutor) (Sale, error)
		// QuerySales applies AND operation on available QueryFilter fields.
		// QueryFilter.From and QueryFilter.To bound SoldAt to [From, To).
		QuerySales(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Sale, int, error)
		GetSale(ctx context.Context, id string, exec ...core.DBExecutor) (Sale, error)
		// VoidSale only stores the void fields.
		VoidSale(ctx context.Context, s Sale, exec ...core.DBExecutor) (Sale, error)
		// SummarizeSales aggregates the paid sales sold in [from, to).
		SummarizeSales(ctx context.Context, from, to time.Time, exec ...core.DBExecutor) (Summary, error)
	}

	Service interface {
		// Create records a sale, joining the caller's transaction when exec is given.
		Create(ctx context.Context, ns NewSale, exec ...core.DBExecutor) (Sale, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Sale, int, error)
		Get(ctx context.Context, id string) (Sale, error)
		Void(ctx context.Context, id string, vs VoidSale) (Sale, error)
		Summary(ctx context.Context, from, to time.Time) (Summary, error)
	}

	service struct {
		conf         *core.Config
		db           core.DB
		repo         Repository
		seq          billing.Sequencer
		clients      client.Repository
		employees    employee.Repository
		treatments   treatment.Repository
		appointments appointment.Service
		metrics      core.Metrics
	}
)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	seq billing.Sequencer,
	clients client.Repository,
	employees employee.Repository,
	treatments treatment.Repository,
	appointments appointment.Service,
	metrics core.Metrics,
) Service {
	return &service{
		conf:         conf,
		db:           db,
		repo:         repo,
		seq:          seq,
		clients:      clients,
		employees:    employees,
		treatments:   treatments,
		appointments: appointments,
		metrics:      core.MetricsOrNop(metrics),
	}
}

func (svc *service) checkRefs(ctx context.Context, s Sale, tx core.DBExecutor) error {
	if s.ClientID != "" {
		if _, err := svc.clients.GetClient(ctx, s.ClientID, tx); err == client.ErrNotFound {
			return core.NewValidationError(ErrInvalidClient, core.FieldError{Field: "client_id", Error: ErrInvalidClient.Error()})
		} else if err != nil {
			return err
		}
	}
	if s.EmployeeID != "" {
		if _, err := svc.employees.GetEmployee(ctx, s.EmployeeID, tx); err == employee.ErrNotFound {
			return core.NewValidationError(ErrInvalidEmployee, core.FieldError{Field: "employee_id", Error: ErrInvalidEmployee.Error()})
		} else if err != nil {
			return err
		}
	}

	ids := make(map[string]struct{})
	for _, li := range s.Items {
		if li.TreatmentID != "" {
			ids[li.TreatmentID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	filter := &treatment.QueryFilter{IDs: make([]string, 0, len(ids))}
	for id := range ids {
		filter.IDs = append(filter.IDs, id)
	}
	_, n, err := svc.treatments.QueryTreatments(ctx, filter, nil, core.Page{Size: core.MaxPageSize}, tx)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return core.NewValidationError(ErrInvalidTreatments, core.FieldError{Field: "items", Error: ErrInvalidTreatments.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewSale, exec ...core.DBExecutor) (Sale, error) {
	biz := svc.conf.Business()
	now := NowFunc()
	s := Sale{
		ClientID:      ns.ClientID,
		EmployeeID:    ns.EmployeeID,
		QuotationID:   ns.QuotationID,
		AppointmentID: ns.AppointmentID,
		Items:         ns.Items,
		Totals:        billing.Compute(ns.Items, biz.TaxRateBasisPoints),
		PaymentMethod: ns.PaymentMethod,
		Status:        StatusPaid,
		Notes:         ns.Notes,
		SoldAt:        ns.SoldAt.UTC(),
		CreatedAt:     now,
	}
	if s.SoldAt.IsZero() {
		s.SoldAt = now
	}

	err := core.WithExec(ctx, svc.db, exec, func(tx core.DBExecutor) error {
		if s.AppointmentID != "" {
			appt, err := svc.appointments.Complete(ctx, s.AppointmentID, tx)
			if err == appointment.ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "appointment_id", Error: "invalid appointment"})
			} else if err != nil {
				return err
			}
			switch s.ClientID {
			case "":
				s.ClientID = appt.ClientID
			case appt.ClientID:
			default:
				return core.NewValidationError(ErrClientMismatch, core.FieldError{Field: "client_id", Error: ErrClientMismatch.Error()})
			}
			if s.EmployeeID == "" {
				s.EmployeeID = appt.EmployeeID
			}
		}
		if err := svc.checkRefs(ctx, s, tx); err != nil {
			return err
		}

		n, err := svc.seq.Next(ctx, billing.CounterSale, tx)
		if err != nil {
			return err
		}
		s.Number = billing.FormatNumber(billing.CounterSale, n)
		s, err = svc.repo.CreateSale(ctx, s, tx)
		return err
	})
	if err != nil {
		return Sale{}, err
	}
	svc.metrics.AddSale(string(s.PaymentMethod), s.Total)
	return s, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Sale, int, error) {
	return svc.repo.QuerySales(ctx, filter, ordering, page)
}

func (svc *service) Get(ctx context.Context, id string) (Sale, error) {
	return svc.repo.GetSale(ctx, id)
}

func (svc *service) Void(ctx context.Context, id string, vs VoidSale) (Sale, error) {
	var s Sale
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if s, err = svc.repo.GetSale(ctx, id, tx); err != nil {
			return err
		}
		if s.Status == StatusVoid {
			return ErrAlreadyVoid
		}
		now := NowFunc()
		s.Status = StatusVoid
		s.VoidedAt = &now
		s.VoidReason = vs.Reason
		s, err = svc.repo.VoidSale(ctx, s, tx)
		return err
	})
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

func (svc *service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	sum, err := svc.repo.SummarizeSales(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	sum.From, sum.To = from, to
	sum.Currency = svc.conf.Business().Currency
	if sum.ByPaymentMethod == nil {
		sum.ByPaymentMethod = []MethodTotal{}
	}
	if sum.ByEmployee == nil {
		sum.ByEmployee = []EmployeeTotal{}
	}
	return sum, nil
}
