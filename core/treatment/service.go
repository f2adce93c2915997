package treatment

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/spadesk/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("service")
	ErrNameExists = errors.New("a service with this name already exists")
	ErrInUse      = core.NewConflictError("service has appointments; deactivate it instead")
)

type (
	Repository interface {
		// NameExists does a case-insensitive lookup, ignoring excludedID.
		NameExists(ctx context.Context, name, excludedID string, exec ...core.DBExecutor) (bool, error)
		CreateTreatment(ctx context.Context, t Treatment, exec ...core.DBExecutor) (Treatment, error)
		// QueryTreatments applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on name, category or description.
		QueryTreatments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Treatment, int, error)
		GetTreatment(ctx context.Context, id string, exec ...core.DBExecutor) (Treatment, error)
		GetTreatmentByName(ctx context.Context, name string, exec ...core.DBExecutor) (Treatment, error)
		UpdateTreatment(ctx context.Context, t Treatment, exec ...core.DBExecutor) (Treatment, error)
		// DeleteTreatment returns ErrInUse when appointments still reference the treatment.
		DeleteTreatment(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nt NewTreatment) (Treatment, error)
		// Upsert creates the treatment or updates the one with the same name; used by catalog imports.
		Upsert(ctx context.Context, nt NewTreatment) (Treatment, bool, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Treatment, int, error)
		Get(ctx context.Context, id string) (Treatment, error)
		Update(ctx context.Context, id string, ut UpdateTreatment) (Treatment, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) checkName(ctx context.Context, name, excludedID string) error {
	exists, err := svc.repo.NameExists(ctx, name, excludedID)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTreatment) (Treatment, error) {
	if err := svc.checkName(ctx, nt.Name, ""); err != nil {
		return Treatment{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateTreatment(ctx, Treatment{
		Name:            nt.Name,
		Category:        nt.Category,
		Description:     nt.Description,
		DurationMinutes: nt.DurationMinutes,
		Price:           nt.Price,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) Upsert(ctx context.Context, nt NewTreatment) (Treatment, bool, error) {
	t, err := svc.repo.GetTreatmentByName(ctx, nt.Name)
	if err == ErrNotFound {
		t, err = svc.Create(ctx, nt)
		return t, true, err
	} else if err != nil {
		return Treatment{}, false, err
	}

	t.Category = nt.Category
	t.Description = nt.Description
	t.DurationMinutes = nt.DurationMinutes
	t.Price = nt.Price
	t.UpdatedAt = time.Now().UTC()
	t, err = svc.repo.UpdateTreatment(ctx, t)
	return t, false, err
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Treatment, int, error) {
	return svc.repo.QueryTreatments(ctx, filter, ordering, page)
}

func (svc *service) Get(ctx context.Context, id string) (Treatment, error) {
	return svc.repo.GetTreatment(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ut UpdateTreatment) (Treatment, error) {
	t, err := svc.repo.GetTreatment(ctx, id)
	if err != nil {
		return Treatment{}, err
	}
	if err = svc.checkName(ctx, ut.Name, t.ID); err != nil {
		return Treatment{}, err
	}

	t.Name = ut.Name
	t.Category = ut.Category
	t.Description = ut.Description
	t.DurationMinutes = ut.DurationMinutes
	t.Price = ut.Price
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTreatment(ctx, t)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetTreatment(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteTreatment(ctx, id)
}
