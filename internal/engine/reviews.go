package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/events"
	"villagehub/internal/repo"
)

// SubmitReview records the customer's single review of a completed booking
// and recomputes the worker's aggregate rating in the same transaction.
// Preconditions are checked in order and the first failure wins: booking
// exists, caller is its customer, booking is completed, no review yet,
// rating and text are well formed.
func (e Engine) SubmitReview(ctx context.Context, bookingID, customerID int64, rating int, text string) (domain.Review, error) {
	var (
		rv        domain.Review
		newRating float64
	)
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		b, err := r.GetBooking(ctx, bookingID)
		if err != nil {
			return bookingLoadErr(err, bookingID)
		}
		if !b.IsCustomer(customerID) {
			return apperr.Authorization("customer %d did not book %d", customerID, bookingID)
		}
		if b.Status != domain.StatusCompleted {
			return apperr.NotEligible("booking %d is %s; only completed bookings can be reviewed", bookingID, b.Status)
		}
		exists, err := r.ReviewExists(ctx, bookingID)
		if err != nil {
			return apperr.Storage(err, "check review")
		}
		if exists {
			return apperr.DuplicateReview("booking %d already has a review", bookingID)
		}
		if rating < 1 || rating > 5 {
			return apperr.Validation("rating must be between 1 and 5, got %d", rating)
		}
		if strings.TrimSpace(text) == "" {
			return apperr.Validation("review text is required")
		}
		rv = domain.Review{
			BookingID:  bookingID,
			CustomerID: b.CustomerID,
			WorkerID:   b.WorkerID,
			Rating:     rating,
			Text:       text,
			CreatedAt:  e.stamp(),
		}
		rv.ID, err = r.InsertReview(ctx, rv)
		if err != nil {
			if errors.Is(err, repo.ErrUnique) {
				return apperr.Wrap(apperr.KindDuplicateReview, err, "booking %d already has a review", bookingID)
			}
			return apperr.Storage(err, "insert review")
		}
		// The worker may have been removed; the review still stands.
		if b.WorkerID != nil {
			newRating, err = r.RecomputeWorkerRating(ctx, *b.WorkerID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return apperr.Storage(err, "recompute worker rating")
			}
		}
		return e.appendEvent(ctx, tx, events.ReviewSubmitted, "booking", bookingID,
			domain.Actor{ID: customerID, Role: domain.RoleCustomer}, events.EventPayload{
				"review_id":     rv.ID,
				"rating":        rating,
				"worker_rating": newRating,
			})
	})
	if err != nil {
		return domain.Review{}, err
	}
	e.log().Info("review submitted", "booking_id", bookingID, "rating", rating, "worker_rating", newRating)
	return rv, nil
}

// CheckReviewEligibility classifies a booking for the review UI. It never
// writes.
func (e Engine) CheckReviewEligibility(ctx context.Context, bookingID int64) (domain.Eligibility, error) {
	b, err := e.Repo.GetBooking(ctx, bookingID)
	if err != nil {
		return "", bookingLoadErr(err, bookingID)
	}
	exists, err := e.Repo.ReviewExists(ctx, bookingID)
	if err != nil {
		return "", apperr.Storage(err, "check review")
	}
	switch {
	case exists:
		return domain.EligibilityReviewed, nil
	case b.Status == domain.StatusCompleted:
		return domain.EligibilityEligible, nil
	}
	return domain.EligibilityNone, nil
}

// WorkerRating returns the stored aggregate; 0 when the worker has no reviews.
func (e Engine) WorkerRating(ctx context.Context, workerID int64) (float64, error) {
	rating, err := e.Repo.WorkerRating(ctx, workerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, apperr.NotFound("worker %d not found", workerID)
		}
		return 0, apperr.Storage(err, "load worker rating")
	}
	return rating, nil
}

func (e Engine) ListReviewsForWorker(ctx context.Context, workerID int64) ([]domain.Review, error) {
	res, err := e.Repo.ListReviewsForWorker(ctx, workerID)
	if err != nil {
		return nil, apperr.Storage(err, "list reviews")
	}
	return res, nil
}
