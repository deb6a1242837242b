package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/repo"
)

type deletedResponse struct {
	Body struct {
		Deleted bool `json:"deleted"`
	} `json:"body"`
}

func deleted() *deletedResponse {
	res := &deletedResponse{}
	res.Body.Deleted = true
	return res
}

func registerAdmin(api huma.API, e engine.Engine) {
	admin := huma.NewGroup(api, "/admin")
	admin.UseSimpleModifier(func(op *huma.Operation) {
		op.Tags = append(op.Tags, "admin")
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Dashboard counters",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Stats `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := e.Stats(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stats `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-customers",
		Method:      http.MethodGet,
		Path:        "/customers",
		Summary:     "All customers",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CustomerList `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCustomers(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CustomerList `json:"body"`
		}{Body: CustomerList{Items: items}}, nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-workers",
		Method:      http.MethodGet,
		Path:        "/workers",
		Summary:     "All workers",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WorkerList `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListWorkers(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkerList `json:"body"`
		}{Body: WorkerList{Items: items}}, nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-bookings",
		Method:      http.MethodGet,
		Path:        "/bookings",
		Summary:     "All bookings, optionally filtered by status",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"requested,accepted,rejected,completed"`
	}) (*bookingListResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAllBookings(ctx, actor, domain.Status(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &bookingListResponse{Body: BookingList{Items: items}}, nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-delete-customer",
		Method:      http.MethodDelete,
		Path:        "/customers/{customer_id}",
		Summary:     "Delete a customer",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CustomerID int64 `path:"customer_id"`
	}) (*deletedResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCustomer(ctx, actor, input.CustomerID); err != nil {
			return nil, handleError(err)
		}
		return deleted(), nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-delete-worker",
		Method:      http.MethodDelete,
		Path:        "/workers/{worker_id}",
		Summary:     "Delete a worker",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID int64 `path:"worker_id"`
	}) (*deletedResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteWorker(ctx, actor, input.WorkerID); err != nil {
			return nil, handleError(err)
		}
		return deleted(), nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-delete-booking",
		Method:      http.MethodDelete,
		Path:        "/bookings/{booking_id}",
		Summary:     "Delete a booking with its review and messages",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BookingID int64 `path:"booking_id"`
	}) (*deletedResponse, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteBooking(ctx, actor, input.BookingID); err != nil {
			return nil, handleError(err)
		}
		return deleted(), nil
	})

	huma.Register(admin, huma.Operation{
		OperationID: "admin-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   int64  `query:"entity_id"`
		Cursor     string `query:"cursor"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      normalizeLimit(input.Limit),
		}
		if input.Cursor != "" {
			before, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || before <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			f.Before = before
		}
		evs, err := e.Events(ctx, actor, f)
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedEvents{Items: make([]EventResponse, 0, len(evs))}
		for _, ev := range evs {
			out.Items = append(out.Items, eventResponse(ev))
		}
		if len(evs) == f.Limit {
			out.NextCursor = strconv.FormatInt(evs[len(evs)-1].ID, 10)
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: out}, nil
	})
}
