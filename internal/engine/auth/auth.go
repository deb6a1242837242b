package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/repo"
)

// ErrInvalidCredentials is returned for an unknown login or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLen = 6

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Service resolves credentials to the actor identity the core trusts.
type Service struct {
	Repo repo.Repo
}

// Login checks credentials for the given role. Customers and workers log in
// with email or phone, admins with their username.
func (s Service) Login(ctx context.Context, role domain.Role, login, password string) (domain.Actor, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return domain.Actor{}, ErrInvalidCredentials
	}
	var (
		id   int64
		hash string
		err  error
	)
	switch role {
	case domain.RoleCustomer:
		var c domain.Customer
		c, err = s.Repo.FindCustomerByLogin(ctx, login)
		id, hash = c.ID, c.PasswordHash
	case domain.RoleWorker:
		var w domain.Worker
		w, err = s.Repo.FindWorkerByLogin(ctx, login)
		id, hash = w.ID, w.PasswordHash
	case domain.RoleAdmin:
		var a domain.Admin
		a, err = s.Repo.GetAdminByUsername(ctx, login)
		id, hash = a.ID, a.PasswordHash
	default:
		return domain.Actor{}, apperr.Validation("unknown role %q", role)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Actor{}, apperr.Storage(err, "load %s", role)
	}
	if err := CheckPassword(hash, password); err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// Exists reports whether the actor still refers to a stored party.
func (s Service) Exists(ctx context.Context, actor domain.Actor) (bool, error) {
	var err error
	switch actor.Role {
	case domain.RoleCustomer:
		_, err = s.Repo.GetCustomer(ctx, actor.ID)
	case domain.RoleWorker:
		_, err = s.Repo.GetWorker(ctx, actor.ID)
	case domain.RoleAdmin:
		_, err = s.Repo.GetAdmin(ctx, actor.ID)
	default:
		return false, nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// RequireRole fails with an authorization error unless actor has one of roles.
func RequireRole(actor domain.Actor, roles ...domain.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperr.Authorization("role %q is not allowed here", actor.Role)
}

// IsParticipant reports whether actor is the booking's customer or worker.
// Admins see every booking.
func IsParticipant(b domain.Booking, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleCustomer:
		return b.IsCustomer(actor.ID)
	case domain.RoleWorker:
		return b.IsWorker(actor.ID)
	case domain.RoleAdmin:
		return true
	}
	return false
}
