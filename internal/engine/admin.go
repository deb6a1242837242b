package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/engine/auth"
	"villagehub/internal/events"
	"villagehub/internal/repo"
)

// RegisterAdmin creates an admin account. It is a bootstrap operation for the
// local CLI and does not take an actor.
func (e Engine) RegisterAdmin(ctx context.Context, username, password string) (domain.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Admin{}, apperr.Validation("username is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Admin{}, err
	}
	a := domain.Admin{Username: username, PasswordHash: hash, CreatedAt: e.stamp()}
	a.ID, err = e.Repo.InsertAdmin(ctx, a)
	if err != nil {
		if errors.Is(err, repo.ErrUnique) {
			return domain.Admin{}, apperr.Validation("admin %q already exists", username)
		}
		return domain.Admin{}, apperr.Storage(err, "insert admin")
	}
	return a, nil
}

func (e Engine) Stats(ctx context.Context, actor domain.Actor) (domain.Stats, error) {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Stats{}, err
	}
	var (
		s   domain.Stats
		err error
	)
	s.Customers, s.Workers, s.Bookings, err = e.Repo.CountParties(ctx)
	if err != nil {
		return domain.Stats{}, apperr.Storage(err, "count parties")
	}
	if s.ByStatus, err = e.Repo.CountBookingsByStatus(ctx); err != nil {
		return domain.Stats{}, apperr.Storage(err, "count bookings")
	}
	return s, nil
}

func (e Engine) ListCustomers(ctx context.Context, actor domain.Actor) ([]domain.Customer, error) {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	res, err := e.Repo.ListCustomers(ctx)
	return res, apperr.Storage(err, "list customers")
}

func (e Engine) ListWorkers(ctx context.Context, actor domain.Actor) ([]domain.Worker, error) {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	res, err := e.Repo.SearchWorkers(ctx, repo.WorkerSearch{Limit: 10000})
	return res, apperr.Storage(err, "list workers")
}

// ListAllBookings is the admin view; status filters when non-empty.
func (e Engine) ListAllBookings(ctx context.Context, actor domain.Actor, status domain.Status) ([]domain.BookingSummary, error) {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown booking status %q", status)
	}
	res, err := e.Repo.ListAllBookings(ctx, repo.BookingFilters{Status: status})
	return res, apperr.Storage(err, "list bookings")
}

// DeleteCustomer removes the customer and the messages they sent. Their
// bookings and reviews stay with a null customer reference.
func (e Engine) DeleteCustomer(ctx context.Context, actor domain.Actor, customerID int64) error {
	return e.deleteParty(ctx, actor, domain.RoleCustomer, customerID, func(r repo.Repo) error {
		return r.DeleteCustomer(ctx, customerID)
	}, events.CustomerDeleted)
}

// DeleteWorker removes the worker and the messages they sent. Their bookings
// and reviews stay with a null worker reference.
func (e Engine) DeleteWorker(ctx context.Context, actor domain.Actor, workerID int64) error {
	return e.deleteParty(ctx, actor, domain.RoleWorker, workerID, func(r repo.Repo) error {
		return r.DeleteWorker(ctx, workerID)
	}, events.WorkerDeleted)
}

func (e Engine) deleteParty(ctx context.Context, actor domain.Actor, role domain.Role, id int64, del func(repo.Repo) error, evtType string) error {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}
	var removed int64
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		if err := del(r); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.NotFound("%s %d not found", role, id)
			}
			return apperr.Storage(err, "delete %s", role)
		}
		var err error
		if removed, err = r.DeleteMessagesBySender(ctx, role, id); err != nil {
			return apperr.Storage(err, "delete messages")
		}
		return e.appendEvent(ctx, tx, evtType, string(role), id, actor, events.EventPayload{"messages_removed": removed})
	})
	if err != nil {
		return err
	}
	e.log().Warn("party deleted", "role", role, "id", id, "messages_removed", removed, "admin_id", actor.ID)
	return nil
}

// DeleteBooking removes a booking together with its messages and review.
func (e Engine) DeleteBooking(ctx context.Context, actor domain.Actor, bookingID int64) error {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		b, err := r.GetBooking(ctx, bookingID)
		if err != nil {
			return bookingLoadErr(err, bookingID)
		}
		if err := r.DeleteBooking(ctx, bookingID); err != nil {
			return apperr.Storage(err, "delete booking")
		}
		// The review, if any, is gone; keep the worker aggregate consistent.
		if b.WorkerID != nil {
			if _, err := r.RecomputeWorkerRating(ctx, *b.WorkerID); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return apperr.Storage(err, "recompute worker rating")
			}
		}
		return e.appendEvent(ctx, tx, events.BookingDeleted, "booking", bookingID, actor, events.EventPayload{"status": b.Status})
	})
	if err != nil {
		return err
	}
	e.log().Warn("booking deleted", "booking_id", bookingID, "admin_id", actor.ID)
	return nil
}

// Events returns the newest audit events first.
func (e Engine) Events(ctx context.Context, actor domain.Actor, f repo.EventFilters) ([]domain.Event, error) {
	if err := auth.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	res, err := e.Repo.LatestEvents(ctx, f)
	return res, apperr.Storage(err, "list events")
}
