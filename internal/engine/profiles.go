package engine

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/engine/auth"
	"villagehub/internal/events"
	"villagehub/internal/repo"
)

type CustomerRegistration struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Password string
}

type WorkerRegistration struct {
	Name         string
	Email        string
	Phone        string
	Skill        string
	Experience   int
	PricePerHour float64
	Availability string
	Address      string
	Password     string
}

func validateContact(name, email, phone string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name is required")
	}
	if email == "" && phone == "" {
		return apperr.Validation("email or phone is required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return apperr.Validation("invalid email %q", email)
		}
	}
	return nil
}

func (e Engine) RegisterCustomer(ctx context.Context, reg CustomerRegistration) (domain.Customer, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := validateContact(reg.Name, reg.Email, reg.Phone); err != nil {
		return domain.Customer{}, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return domain.Customer{}, err
	}
	c := domain.Customer{
		Name:         strings.TrimSpace(reg.Name),
		Email:        reg.Email,
		Phone:        reg.Phone,
		Address:      strings.TrimSpace(reg.Address),
		PasswordHash: hash,
		CreatedAt:    e.stamp(),
	}
	err = e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		id, err := r.InsertCustomer(ctx, c)
		if err != nil {
			if errors.Is(err, repo.ErrUnique) {
				return apperr.Validation("email or phone already registered")
			}
			return apperr.Storage(err, "insert customer")
		}
		c.ID = id
		return e.appendEvent(ctx, tx, events.CustomerRegistered, "customer", id,
			domain.Actor{ID: id, Role: domain.RoleCustomer}, events.EventPayload{"name": c.Name})
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

func (e Engine) RegisterWorker(ctx context.Context, reg WorkerRegistration) (domain.Worker, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := validateContact(reg.Name, reg.Email, reg.Phone); err != nil {
		return domain.Worker{}, err
	}
	if reg.Experience < 0 {
		return domain.Worker{}, apperr.Validation("experience must not be negative")
	}
	if reg.PricePerHour < 0 {
		return domain.Worker{}, apperr.Validation("price_per_hour must not be negative")
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return domain.Worker{}, err
	}
	w := domain.Worker{
		Name:         strings.TrimSpace(reg.Name),
		Email:        reg.Email,
		Phone:        reg.Phone,
		Skill:        strings.TrimSpace(reg.Skill),
		Experience:   reg.Experience,
		PricePerHour: reg.PricePerHour,
		Availability: strings.TrimSpace(reg.Availability),
		Address:      strings.TrimSpace(reg.Address),
		PasswordHash: hash,
		CreatedAt:    e.stamp(),
	}
	err = e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		id, err := r.InsertWorker(ctx, w)
		if err != nil {
			if errors.Is(err, repo.ErrUnique) {
				return apperr.Validation("email or phone already registered")
			}
			return apperr.Storage(err, "insert worker")
		}
		w.ID = id
		return e.appendEvent(ctx, tx, events.WorkerRegistered, "worker", id,
			domain.Actor{ID: id, Role: domain.RoleWorker}, events.EventPayload{"name": w.Name, "skill": w.Skill})
	})
	if err != nil {
		return domain.Worker{}, err
	}
	return w, nil
}

// UpdateWorkerProfile lets a worker (or an admin) edit the directory entry.
func (e Engine) UpdateWorkerProfile(ctx context.Context, actor domain.Actor, workerID int64, u repo.WorkerUpdate) (domain.Worker, error) {
	if !(actor.Role == domain.RoleAdmin || (actor.Role == domain.RoleWorker && actor.ID == workerID)) {
		return domain.Worker{}, apperr.Authorization("only the worker or an admin may edit this profile")
	}
	if u.Experience != nil && *u.Experience < 0 {
		return domain.Worker{}, apperr.Validation("experience must not be negative")
	}
	if u.PricePerHour != nil && *u.PricePerHour < 0 {
		return domain.Worker{}, apperr.Validation("price_per_hour must not be negative")
	}
	var w domain.Worker
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		if err := r.UpdateWorker(ctx, workerID, u); err != nil {
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return apperr.NotFound("worker %d not found", workerID)
			case errors.Is(err, repo.ErrUnique):
				return apperr.Validation("phone already registered")
			}
			return apperr.Storage(err, "update worker")
		}
		var err error
		if w, err = r.GetWorker(ctx, workerID); err != nil {
			return apperr.Storage(err, "reload worker")
		}
		return e.appendEvent(ctx, tx, events.WorkerUpdated, "worker", workerID, actor, nil)
	})
	if err != nil {
		return domain.Worker{}, err
	}
	return w, nil
}

func (e Engine) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	w, err := e.Repo.GetWorker(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Worker{}, apperr.NotFound("worker %d not found", id)
		}
		return domain.Worker{}, apperr.Storage(err, "load worker")
	}
	return w, nil
}

func (e Engine) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	c, err := e.Repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Customer{}, apperr.NotFound("customer %d not found", id)
		}
		return domain.Customer{}, apperr.Storage(err, "load customer")
	}
	return c, nil
}

func (e Engine) SearchWorkers(ctx context.Context, f repo.WorkerSearch) ([]domain.Worker, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, apperr.Validation("min price exceeds max price")
	}
	res, err := e.Repo.SearchWorkers(ctx, f)
	if err != nil {
		return nil, apperr.Storage(err, "search workers")
	}
	return res, nil
}
