package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yelpclone/directory/pkg/httputil"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/service"
)

// ReviewHandler handles HTTP requests for reviews nested under a business.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// ListReviews handles GET /business/{id}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reviews)
}

// AddReview handles POST /business/{id}/reviews
// The response is the business with its reviews and refreshed rating.
func (h *ReviewHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req service.AddReviewInput
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	detail, err := h.service.AddReview(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, detail)
}

// RemoveReview handles DELETE /business/{id}/reviews/{reviewId}
func (h *ReviewHandler) RemoveReview(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.RemoveReview(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "reviewId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, detail)
}
