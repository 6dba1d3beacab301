package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yelpclone/directory/pkg/httputil"
	"github.com/yelpclone/directory/pkg/pagination"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/service"
)

// BusinessHandler handles HTTP requests for business listings.
type BusinessHandler struct {
	service *service.BusinessService
	logger  *slog.Logger
}

// NewBusinessHandler creates a new business handler.
func NewBusinessHandler(svc *service.BusinessService, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{
		service: svc,
		logger:  logger,
	}
}

// ListBusinesses handles GET /business
//
// Query parameters: page, per_page, search.
func (h *BusinessHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	businesses, total, err := h.service.ListBusinesses(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(businesses, total, params.Page, params.PerPage))
}

// NewBusinessForm handles GET /business/new
func (h *BusinessHandler) NewBusinessForm(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, map[string]any{
		"fields": h.service.NewBusinessForm(),
	})
}

// GetBusiness handles GET /business/{id}
// It accepts both a UUID and a slug.
func (h *BusinessHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetBusiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, detail)
}

// EditBusiness handles GET /business/{id}/update
func (h *BusinessHandler) EditBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBusinessForEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]any{
		"business": b,
		"fields":   h.service.NewBusinessForm(),
	})
}

// CreateBusiness handles POST /business
func (h *BusinessHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req service.BusinessFields
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	b, err := h.service.CreateBusiness(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/business/"+b.ID)
	httputil.WriteData(w, http.StatusCreated, b)
}

// UpdateBusiness handles PUT /business/{id}
// All fields are optional. Rating and review links are ignored if sent.
func (h *BusinessHandler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateBusinessInput
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	b, err := h.service.UpdateBusiness(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, b)
}

// DeleteBusiness handles DELETE /business/{id}
func (h *BusinessHandler) DeleteBusiness(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBusiness(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
