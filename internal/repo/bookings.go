package repo

import (
	"context"
	"database/sql"
	"errors"

	"villagehub/internal/domain"
)

const bookingColumns = `b.booking_id,b.customer_id,b.worker_id,b.service_date,b.status,b.address,b.notes,b.created_at,b.updated_at`

const reviewedColumn = `EXISTS(SELECT 1 FROM reviews r WHERE r.booking_id=b.booking_id) AS reviewed`

func (r Repo) InsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO bookings(customer_id,worker_id,service_date,status,address,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		nullableID(b.CustomerID), nullableID(b.WorkerID), b.ServiceDate, b.Status, b.Address, b.Notes, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	var b domain.Booking
	err := getOne(ctx, r.x(), &b, `SELECT `+bookingColumns+` FROM bookings b WHERE b.booking_id=?`, id)
	return b, err
}

// CompareAndSetStatus moves the booking from `from` to `to` only if it is
// still in `from`. It reports whether the row changed.
func (r Repo) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status, updatedAt string) (bool, error) {
	res, err := r.x().ExecContext(ctx, `UPDATE bookings SET status=?, updated_at=? WHERE booking_id=? AND status=?`,
		to, updatedAt, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) DeleteBooking(ctx context.Context, id int64) error {
	res, err := r.x().ExecContext(ctx, `DELETE FROM bookings WHERE booking_id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookingsForCustomer returns the customer's bookings, newest first, with
// the worker's display fields.
func (r Repo) ListBookingsForCustomer(ctx context.Context, customerID int64) ([]domain.BookingSummary, error) {
	res := []domain.BookingSummary{}
	err := r.selectSummaries(ctx, &res, `SELECT `+bookingColumns+`, w.name AS worker_name, w.skill AS worker_skill, `+reviewedColumn+`
		FROM bookings b LEFT JOIN workers w ON w.worker_id=b.worker_id
		WHERE b.customer_id=? ORDER BY b.booking_id DESC`, customerID)
	return res, err
}

// ListBookingsForWorker returns the worker's bookings, newest first, with the
// customer's display fields.
func (r Repo) ListBookingsForWorker(ctx context.Context, workerID int64) ([]domain.BookingSummary, error) {
	res := []domain.BookingSummary{}
	err := r.selectSummaries(ctx, &res, `SELECT `+bookingColumns+`, c.name AS customer_name, c.phone AS customer_phone, `+reviewedColumn+`
		FROM bookings b LEFT JOIN customers c ON c.customer_id=b.customer_id
		WHERE b.worker_id=? ORDER BY b.booking_id DESC`, workerID)
	return res, err
}

type BookingFilters struct {
	Status domain.Status
	Limit  int
}

func (r Repo) ListAllBookings(ctx context.Context, f BookingFilters) ([]domain.BookingSummary, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "b.status=?")
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	res := []domain.BookingSummary{}
	err := r.selectSummaries(ctx, &res, `SELECT `+bookingColumns+`,
		w.name AS worker_name, w.skill AS worker_skill, c.name AS customer_name, c.phone AS customer_phone, `+reviewedColumn+`
		FROM bookings b
		LEFT JOIN workers w ON w.worker_id=b.worker_id
		LEFT JOIN customers c ON c.customer_id=b.customer_id
		`+where(clauses)+` ORDER BY b.booking_id DESC LIMIT ?`, args...)
	return res, err
}

func (r Repo) selectSummaries(ctx context.Context, dest *[]domain.BookingSummary, query string, args ...any) error {
	return selectAll(ctx, r.x(), dest, query, args...)
}

func (r Repo) CountBookingsByStatus(ctx context.Context) (map[domain.Status]int, error) {
	var rows []struct {
		Status domain.Status `db:"status"`
		Count  int           `db:"cnt"`
	}
	if err := selectAll(ctx, r.x(), &rows, `SELECT status, COUNT(*) AS cnt FROM bookings GROUP BY status`); err != nil {
		return nil, err
	}
	res := map[domain.Status]int{}
	for _, s := range domain.Statuses {
		res[s] = 0
	}
	for _, row := range rows {
		res[row.Status] = row.Count
	}
	return res, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
