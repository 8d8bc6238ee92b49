package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/pagewise/internal/restaurant"
)

// Restaurants is the restaurant service as seen by the HTTP layer.
type Restaurants interface {
	Search(ctx context.Context, q restaurant.Query) (restaurant.Result, error)
}

type RestaurantDeps struct {
	Restaurants Restaurants
	Origins     []string
	Logger      *slog.Logger
}

type searchRequest struct {
	Query    string `json:"query" validate:"max=500"`
	Location string `json:"location" validate:"max=200"`
}

type searchResponse struct {
	Restaurants    []restaurant.Restaurant `json:"restaurants"`
	Source         string                  `json:"source"`
	ProcessingTime float64                 `json:"processing_time"`
}

// NewRestaurantHandler returns the restaurant service HTTP API.
func NewRestaurantHandler(deps RestaurantDeps) http.Handler {
	r := newRouter(deps.Origins, deps.Logger)
	v := newValidator()

	r.Get("/api/health", handleHealth)
	r.Post("/api/search", handleSearch(deps, v))

	return r
}

func handleSearch(deps RestaurantDeps, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := v.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
			return
		}

		res, err := deps.Restaurants.Search(r.Context(), restaurant.Query{
			Query:    req.Query,
			Location: req.Location,
		})
		if err != nil {
			serviceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Restaurants:    res.Restaurants,
			Source:         res.Source,
			ProcessingTime: res.ProcessingTime,
		})
	}
}
