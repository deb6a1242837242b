package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/apperr"
	"villagehub/internal/config"
	"villagehub/internal/domain"
	"villagehub/internal/events"
	"villagehub/internal/repo"
)

// Engine owns every state change of bookings, reviews and messages. It holds
// no booking state between calls; each operation is one store transaction.
type Engine struct {
	DB     *sqlx.DB
	Repo   repo.Repo
	Audit  events.Writer
	Config *config.Config
	Log    *slog.Logger
	Now    func() time.Time
}

func New(db *sqlx.DB, cfg *config.Config, log *slog.Logger) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// inTx runs fn in one write transaction. fn's error is returned as is; a
// failed commit is reported as a storage error.
func (e Engine) inTx(ctx context.Context, fn func(tx *sqlx.Tx, r repo.Repo) error) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Storage(err, "begin transaction")
	}
	defer tx.Rollback()
	if err := fn(tx, e.Repo.WithTx(tx)); err != nil {
		return err
	}
	return apperr.Storage(tx.Commit(), "commit")
}

func (e Engine) appendEvent(ctx context.Context, tx *sqlx.Tx, evtType, entityKind string, entityID int64, actor domain.Actor, payload events.EventPayload) error {
	w := e.Audit
	if w.Now == nil {
		w.Now = e.now
	}
	return apperr.Storage(w.Append(ctx, tx, evtType, entityKind, entityID, actor, payload), "append %s event", evtType)
}

// BookingCreateOptions are parameters for creating a booking.
type BookingCreateOptions struct {
	CustomerID  int64
	WorkerID    int64
	ServiceDate string
	Address     string
	Notes       string
	Actor       domain.Actor
}

// CreateBooking records a new booking in the requested state.
func (e Engine) CreateBooking(ctx context.Context, opts BookingCreateOptions) (domain.Booking, error) {
	opts.ServiceDate = strings.TrimSpace(opts.ServiceDate)
	opts.Address = strings.TrimSpace(opts.Address)
	switch {
	case opts.CustomerID <= 0:
		return domain.Booking{}, apperr.Validation("customer_id is required")
	case opts.WorkerID <= 0:
		return domain.Booking{}, apperr.Validation("worker_id is required")
	case opts.ServiceDate == "":
		return domain.Booking{}, apperr.Validation("service_date is required")
	case opts.Address == "":
		return domain.Booking{}, apperr.Validation("address is required")
	}
	switch opts.Actor.Role {
	case domain.RoleAdmin:
	case domain.RoleCustomer:
		if opts.Actor.ID != opts.CustomerID {
			return domain.Booking{}, apperr.Authorization("customer %d cannot book for customer %d", opts.Actor.ID, opts.CustomerID)
		}
	default:
		return domain.Booking{}, apperr.Authorization("role %q cannot create bookings", opts.Actor.Role)
	}

	now := e.stamp()
	b := domain.Booking{
		CustomerID:  &opts.CustomerID,
		WorkerID:    &opts.WorkerID,
		ServiceDate: opts.ServiceDate,
		Status:      domain.StatusRequested,
		Address:     opts.Address,
		Notes:       opts.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		if _, err := r.GetCustomer(ctx, opts.CustomerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Reference("customer %d does not exist", opts.CustomerID)
			}
			return apperr.Storage(err, "load customer")
		}
		if _, err := r.GetWorker(ctx, opts.WorkerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Reference("worker %d does not exist", opts.WorkerID)
			}
			return apperr.Storage(err, "load worker")
		}
		id, err := r.InsertBooking(ctx, b)
		if err != nil {
			if errors.Is(err, repo.ErrForeignKey) {
				return apperr.Wrap(apperr.KindReference, err, "booking references a missing party")
			}
			return apperr.Storage(err, "insert booking")
		}
		b.ID = id
		return e.appendEvent(ctx, tx, events.BookingCreated, "booking", id, opts.Actor, events.EventPayload{
			"customer_id":  opts.CustomerID,
			"worker_id":    opts.WorkerID,
			"service_date": b.ServiceDate,
			"status":       b.Status,
		})
	})
	if err != nil {
		return domain.Booking{}, err
	}
	e.log().Info("booking created", "booking_id", b.ID, "customer_id", opts.CustomerID, "worker_id", opts.WorkerID)
	return b, nil
}

// GetBooking is a pure read.
func (e Engine) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := e.Repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, bookingLoadErr(err, id)
	}
	return b, nil
}

func bookingLoadErr(err error, id int64) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound("booking %d not found", id)
	}
	return apperr.Storage(err, "load booking %d", id)
}

func ensureBookingTransition(from, to domain.Status) error {
	if !to.Valid() {
		return apperr.InvalidTransition("unknown booking status %q", to)
	}
	if from.Terminal() {
		return apperr.InvalidTransition("booking is %s; no transition out of a terminal status", from)
	}
	if !domain.CanTransition(from, to) {
		return apperr.InvalidTransition("invalid booking status transition %s -> %s", from, to)
	}
	return nil
}

// TransitionBooking applies one regular lifecycle step. Only the booking's
// own worker may decide; administrators use ForceTransition.
func (e Engine) TransitionBooking(ctx context.Context, bookingID int64, actor domain.Actor, target domain.Status) (domain.Booking, error) {
	var (
		b    domain.Booking
		from domain.Status
	)
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		var err error
		b, err = r.GetBooking(ctx, bookingID)
		if err != nil {
			return bookingLoadErr(err, bookingID)
		}
		if actor.Role != domain.RoleWorker {
			return apperr.Authorization("only the booking's worker may change its status")
		}
		if !b.IsWorker(actor.ID) {
			return apperr.Authorization("worker %d is not assigned to booking %d", actor.ID, bookingID)
		}
		if err := ensureBookingTransition(b.Status, target); err != nil {
			return err
		}
		from = b.Status
		if err := e.swapStatus(ctx, r, &b, target); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.BookingStatusChanged, "booking", bookingID, actor, events.EventPayload{
			"from": from,
			"to":   target,
		})
	})
	if err != nil {
		return domain.Booking{}, err
	}
	e.log().Info("booking status changed", "booking_id", bookingID, "from", from, "to", target, "actor_id", actor.ID)
	return b, nil
}

// ForceTransition is the administrative override: any status other than
// the current one, recorded with the reason.
func (e Engine) ForceTransition(ctx context.Context, bookingID int64, actor domain.Actor, target domain.Status, reason string) (domain.Booking, error) {
	var (
		b    domain.Booking
		from domain.Status
	)
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		var err error
		b, err = r.GetBooking(ctx, bookingID)
		if err != nil {
			return bookingLoadErr(err, bookingID)
		}
		if actor.Role != domain.RoleAdmin {
			return apperr.Authorization("forcing a booking status requires the admin role")
		}
		if !target.Valid() {
			return apperr.InvalidTransition("unknown booking status %q", target)
		}
		if target == b.Status {
			return apperr.InvalidTransition("booking %d is already %s", bookingID, target)
		}
		from = b.Status
		if err := e.swapStatus(ctx, r, &b, target); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.BookingStatusForced, "booking", bookingID, actor, events.EventPayload{
			"from":   from,
			"to":     target,
			"reason": reason,
		})
	})
	if err != nil {
		return domain.Booking{}, err
	}
	e.log().Warn("booking status forced", "booking_id", bookingID, "from", from, "to", target, "admin_id", actor.ID, "reason", reason)
	return b, nil
}

// swapStatus writes target only if the row still holds b.Status. A writer
// that lost the race gets the status it lost to.
func (e Engine) swapStatus(ctx context.Context, r repo.Repo, b *domain.Booking, target domain.Status) error {
	now := e.stamp()
	ok, err := r.CompareAndSetStatus(ctx, b.ID, b.Status, target, now)
	if err != nil {
		return apperr.Storage(err, "update booking status")
	}
	if !ok {
		cur, err := r.GetBooking(ctx, b.ID)
		if err != nil {
			return bookingLoadErr(err, b.ID)
		}
		return apperr.InvalidTransition("booking %d moved to %s concurrently", b.ID, cur.Status)
	}
	b.Status = target
	b.UpdatedAt = now
	return nil
}

// ListBookingsForCustomer is a pure read, newest booking first.
func (e Engine) ListBookingsForCustomer(ctx context.Context, customerID int64) ([]domain.BookingSummary, error) {
	res, err := e.Repo.ListBookingsForCustomer(ctx, customerID)
	if err != nil {
		return nil, apperr.Storage(err, "list bookings for customer %d", customerID)
	}
	return res, nil
}

// ListBookingsForWorker is a pure read, newest booking first.
func (e Engine) ListBookingsForWorker(ctx context.Context, workerID int64) ([]domain.BookingSummary, error) {
	res, err := e.Repo.ListBookingsForWorker(ctx, workerID)
	if err != nil {
		return nil, apperr.Storage(err, "list bookings for worker %d", workerID)
	}
	return res, nil
}

// ListBookingsFor dispatches on the actor's role.
func (e Engine) ListBookingsFor(ctx context.Context, actor domain.Actor) ([]domain.BookingSummary, error) {
	switch actor.Role {
	case domain.RoleCustomer:
		return e.ListBookingsForCustomer(ctx, actor.ID)
	case domain.RoleWorker:
		return e.ListBookingsForWorker(ctx, actor.ID)
	case domain.RoleAdmin:
		return e.ListAllBookings(ctx, actor, "")
	}
	return nil, apperr.Validation("unknown role %q", actor.Role)
}
