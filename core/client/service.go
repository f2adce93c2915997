package client

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/spadesk/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("client")
	ErrEmailExists = errors.New("a client with this email already exists")
	ErrHasHistory  = core.NewConflictError("client has appointments, quotations or sales; deactivate it instead")
)

type (
	Repository interface {
		// EmailExists reports whether a client other than excludedID uses email.
		EmailExists(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) (bool, error)
		CreateClient(ctx context.Context, cl Client, exec ...core.DBExecutor) (Client, error)
		// QueryClients applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on names, email or phone.
		QueryClients(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Client, int, error)
		GetClient(ctx context.Context, id string, exec ...core.DBExecutor) (Client, error)
		UpdateClient(ctx context.Context, cl Client, exec ...core.DBExecutor) (Client, error)
		// DeleteClient returns ErrHasHistory when rows still reference the client.
		DeleteClient(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nc NewClient) (Client, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Client, int, error)
		Get(ctx context.Context, id string) (Client, error)
		Update(ctx context.Context, id string, uc UpdateClient) (Client, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) checkEmail(ctx context.Context, email, excludedID string) error {
	if email == "" {
		return nil
	}
	exists, err := svc.repo.EmailExists(ctx, email, excludedID)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewClient) (Client, error) {
	if err := svc.checkEmail(ctx, nc.Email, ""); err != nil {
		return Client{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateClient(ctx, Client{
		FirstName: nc.FirstName,
		LastName:  nc.LastName,
		Email:     nc.Email,
		Phone:     nc.Phone,
		BirthDate: nc.BirthDate,
		Gender:    nc.Gender,
		Notes:     nc.Notes,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Client, int, error) {
	return svc.repo.QueryClients(ctx, filter, ordering, page)
}

func (svc *service) Get(ctx context.Context, id string) (Client, error) {
	return svc.repo.GetClient(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClient) (Client, error) {
	cl, err := svc.repo.GetClient(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if err = svc.checkEmail(ctx, uc.Email, cl.ID); err != nil {
		return Client{}, err
	}

	cl.FirstName = uc.FirstName
	cl.LastName = uc.LastName
	cl.Email = uc.Email
	cl.Phone = uc.Phone
	cl.BirthDate = uc.BirthDate
	cl.Gender = uc.Gender
	cl.Notes = uc.Notes
	if uc.IsActive != nil {
		cl.IsActive = *uc.IsActive
	}
	cl.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClient(ctx, cl)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetClient(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteClient(ctx, id)
}
