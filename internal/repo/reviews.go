package repo

import (
	"context"

	"villagehub/internal/domain"
)

const reviewColumns = `review_id,booking_id,customer_id,worker_id,rating,review_text,created_at`

// InsertReview fails with ErrUnique when the booking already has a review.
func (r Repo) InsertReview(ctx context.Context, rv domain.Review) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO reviews(booking_id,customer_id,worker_id,rating,review_text,created_at) VALUES (?,?,?,?,?,?)`,
		rv.BookingID, nullableID(rv.CustomerID), nullableID(rv.WorkerID), rv.Rating, rv.Text, rv.CreatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

func (r Repo) ReviewExists(ctx context.Context, bookingID int64) (bool, error) {
	var exists bool
	err := getOne(ctx, r.x(), &exists, `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id=?)`, bookingID)
	return exists, err
}

func (r Repo) GetReviewByBooking(ctx context.Context, bookingID int64) (domain.Review, error) {
	var rv domain.Review
	err := getOne(ctx, r.x(), &rv, `SELECT `+reviewColumns+` FROM reviews WHERE booking_id=?`, bookingID)
	return rv, err
}

func (r Repo) ListReviewsForWorker(ctx context.Context, workerID int64) ([]domain.Review, error) {
	res := []domain.Review{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+reviewColumns+` FROM reviews WHERE worker_id=? ORDER BY review_id DESC`, workerID)
	return res, err
}

// RecomputeWorkerRating sets the worker's rating to the mean of its reviews,
// or 0 when it has none, and returns the stored value.
func (r Repo) RecomputeWorkerRating(ctx context.Context, workerID int64) (float64, error) {
	res, err := r.x().ExecContext(ctx, `UPDATE workers SET rating=(SELECT COALESCE(AVG(rating),0) FROM reviews WHERE worker_id=?) WHERE worker_id=?`,
		workerID, workerID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return r.WorkerRating(ctx, workerID)
}

func (r Repo) WorkerRating(ctx context.Context, workerID int64) (float64, error) {
	var rating float64
	err := getOne(ctx, r.x(), &rating, `SELECT rating FROM workers WHERE worker_id=?`, workerID)
	return rating, err
}
