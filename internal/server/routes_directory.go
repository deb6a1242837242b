package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/engine/auth"
	"villagehub/internal/repo"
)

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	svc := auth.Service{Repo: e.Repo}
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a bearer token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		actor, err := svc.Login(ctx, input.Body.Role, input.Body.Login, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, exp, err := signToken(authCfg, actor, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{
			Token:     token,
			ExpiresAt: exp.UTC().Format(time.RFC3339),
			ActorID:   actor.ID,
			Role:      actor.Role,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current actor",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Actor `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body domain.Actor `json:"body"`
		}{Body: actor}, nil
	})
}

func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-customer",
		Method:        http.MethodPost,
		Path:          "/customers",
		Summary:       "Register a customer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterCustomerRequest `json:"body"`
	}) (*struct {
		Body domain.Customer `json:"body"`
	}, error) {
		c, err := e.RegisterCustomer(ctx, engine.CustomerRegistration{
			Name:     input.Body.Name,
			Email:    input.Body.Email,
			Phone:    input.Body.Phone,
			Address:  input.Body.Address,
			Password: input.Body.Password,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Customer `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-worker",
		Method:        http.MethodPost,
		Path:          "/workers",
		Summary:       "Register a worker",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		w, err := e.RegisterWorker(ctx, engine.WorkerRegistration{
			Name:         input.Body.Name,
			Email:        input.Body.Email,
			Phone:        input.Body.Phone,
			Skill:        input.Body.Skill,
			Experience:   input.Body.Experience,
			PricePerHour: input.Body.PricePerHour,
			Availability: input.Body.Availability,
			Address:      input.Body.Address,
			Password:     input.Body.Password,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-workers",
		Method:      http.MethodGet,
		Path:        "/workers",
		Summary:     "Search the worker directory, cheapest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Q            string  `query:"q"`
		Skill        string  `query:"skill"`
		Availability string  `query:"availability"`
		MinPrice     float64 `query:"min_price" default:"-1"`
		MaxPrice     float64 `query:"max_price" default:"-1"`
		Limit        int     `query:"limit" default:"50"`
	}) (*struct {
		Body WorkerList `json:"body"`
	}, error) {
		f := repo.WorkerSearch{
			Keyword:      input.Q,
			Skill:        input.Skill,
			Availability: input.Availability,
			Limit:        normalizeLimit(input.Limit),
		}
		if input.MinPrice >= 0 {
			f.MinPrice = &input.MinPrice
		}
		if input.MaxPrice >= 0 {
			f.MaxPrice = &input.MaxPrice
		}
		items, err := e.SearchWorkers(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkerList `json:"body"`
		}{Body: WorkerList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-worker",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}",
		Summary:     "Get a worker profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID int64 `path:"worker_id"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		w, err := e.GetWorker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-worker",
		Method:      http.MethodPatch,
		Path:        "/workers/{worker_id}",
		Summary:     "Edit a worker profile",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID int64               `path:"worker_id"`
		Body     UpdateWorkerRequest `json:"body"`
	}) (*struct {
		Body domain.Worker `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.UpdateWorkerProfile(ctx, actor, input.WorkerID, repo.WorkerUpdate{
			Name:         input.Body.Name,
			Phone:        input.Body.Phone,
			Skill:        input.Body.Skill,
			Experience:   input.Body.Experience,
			PricePerHour: input.Body.PricePerHour,
			Availability: input.Body.Availability,
			Address:      input.Body.Address,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Worker `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-rating",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/rating",
		Summary:     "Aggregate rating of a worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID int64 `path:"worker_id"`
	}) (*struct {
		Body WorkerRatingResponse `json:"body"`
	}, error) {
		r, err := e.WorkerRating(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkerRatingResponse `json:"body"`
		}{Body: WorkerRatingResponse{WorkerID: input.WorkerID, Rating: r}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-reviews",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/reviews",
		Summary:     "Reviews of a worker, newest first",
	}, func(ctx context.Context, input *struct {
		WorkerID int64 `path:"worker_id"`
	}) (*struct {
		Body ReviewList `json:"body"`
	}, error) {
		items, err := e.ListReviewsForWorker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReviewList `json:"body"`
		}{Body: ReviewList{Items: items}}, nil
	})
}
