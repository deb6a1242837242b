package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/engine/auth"
)

type bookingResponse struct {
	Body domain.Booking `json:"body"`
}

type bookingListResponse struct {
	Body BookingList `json:"body"`
}

// visibleBooking loads a booking and hides it from actors outside it.
func visibleBooking(ctx context.Context, e engine.Engine, actor domain.Actor, id int64) (domain.Booking, error) {
	b, err := e.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !auth.IsParticipant(b, actor) {
		return domain.Booking{}, apperr.Authorization("booking %d belongs to other parties", id)
	}
	return b, nil
}

func registerBookings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-booking",
		Method:        http.MethodPost,
		Path:          "/bookings",
		Summary:       "Request a booking with a worker",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateBookingRequest `json:"body"`
	}) (*bookingResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		customerID := input.Body.CustomerID
		if customerID == 0 && actor.Role == domain.RoleCustomer {
			customerID = actor.ID
		}
		b, err := e.CreateBooking(ctx, engine.BookingCreateOptions{
			CustomerID:  customerID,
			WorkerID:    input.Body.WorkerID,
			ServiceDate: input.Body.ServiceDate,
			Address:     input.Body.Address,
			Notes:       input.Body.Notes,
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingResponse{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-booking",
		Method:      http.MethodGet,
		Path:        "/bookings/{booking_id}",
		Summary:     "Get a booking",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BookingID int64 `path:"booking_id"`
	}) (*bookingResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := visibleBooking(ctx, e, actor, input.BookingID)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingResponse{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-bookings",
		Method:      http.MethodGet,
		Path:        "/me/bookings",
		Summary:     "Bookings of the calling customer or worker, newest first",
	}, func(ctx context.Context, _ *struct{}) (*bookingListResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListBookingsFor(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingListResponse{Body: BookingList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "customer-bookings",
		Method:      http.MethodGet,
		Path:        "/customers/{customer_id}/bookings",
		Summary:     "Bookings of a customer",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CustomerID int64 `path:"customer_id"`
	}) (*bookingListResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != domain.RoleAdmin && (actor.Role != domain.RoleCustomer || actor.ID != input.CustomerID) {
			return nil, handleError(apperr.Authorization("customers may only list their own bookings"))
		}
		items, err := e.ListBookingsForCustomer(ctx, input.CustomerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingListResponse{Body: BookingList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-bookings",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/bookings",
		Summary:     "Bookings assigned to a worker",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID int64 `path:"worker_id"`
	}) (*bookingListResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != domain.RoleAdmin && (actor.Role != domain.RoleWorker || actor.ID != input.WorkerID) {
			return nil, handleError(apperr.Authorization("workers may only list their own bookings"))
		}
		items, err := e.ListBookingsForWorker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingListResponse{Body: BookingList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-booking",
		Method:      http.MethodPost,
		Path:        "/bookings/{booking_id}/transitions",
		Summary:     "Move a booking to its next status",
		Description: "The assigned worker accepts or rejects a requested booking and completes an accepted one.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		BookingID int64             `path:"booking_id"`
		Body      TransitionRequest `json:"body"`
	}) (*bookingResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.TransitionBooking(ctx, input.BookingID, actor, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingResponse{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "force-booking-status",
		Method:      http.MethodPost,
		Path:        "/bookings/{booking_id}/force",
		Summary:     "Admin override of a booking status",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		BookingID int64                  `path:"booking_id"`
		Body      ForceTransitionRequest `json:"body"`
	}) (*bookingResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.ForceTransition(ctx, input.BookingID, actor, input.Body.Status, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingResponse{Body: b}, nil
	})
}

func registerReviews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-review",
		Method:        http.MethodPost,
		Path:          "/bookings/{booking_id}/review",
		Summary:       "Review a completed booking",
		DefaultStatus: http.StatusCreated,
		Errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		BookingID int64               `path:"booking_id"`
		Body      SubmitReviewRequest `json:"body"`
	}) (*struct {
		Body domain.Review `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actor.Role != domain.RoleCustomer {
			return nil, handleError(apperr.Authorization("only customers write reviews"))
		}
		r, err := e.SubmitReview(ctx, input.BookingID, actor.ID, input.Body.Rating, input.Body.ReviewText)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Review `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-eligibility",
		Method:      http.MethodGet,
		Path:        "/bookings/{booking_id}/review-eligibility",
		Summary:     "Whether a booking can be reviewed",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BookingID int64 `path:"booking_id"`
	}) (*struct {
		Body EligibilityResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleBooking(ctx, e, actor, input.BookingID); err != nil {
			return nil, handleError(err)
		}
		el, err := e.CheckReviewEligibility(ctx, input.BookingID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EligibilityResponse `json:"body"`
		}{Body: EligibilityResponse{BookingID: input.BookingID, Eligibility: el}}, nil
	})
}

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/bookings/{booking_id}/messages",
		Summary:       "Send a chat message on a booking",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BookingID int64              `path:"booking_id"`
		Body      PostMessageRequest `json:"body"`
	}) (*struct {
		Body domain.Message `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.PostMessage(ctx, input.BookingID, actor.ID, actor.Role, input.Body.MessageText)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Message `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/bookings/{booking_id}/messages",
		Summary:     "Chat history, oldest first",
		Description: "Pass the previous response's last_id as after to fetch only newer messages.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BookingID int64 `path:"booking_id"`
		After     int64 `query:"after" minimum:"0"`
	}) (*struct {
		Body MessageList `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleBooking(ctx, e, actor, input.BookingID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.MessagesAfter(ctx, input.BookingID, input.After)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageList `json:"body"`
		}{Body: messageList(items, input.After)}, nil
	})
}
