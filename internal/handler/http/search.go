package http

import (
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/httputil"
	"github.com/yelpclone/directory/pkg/pagination"

	"github.com/yelpclone/directory/internal/service"
)

// SearchHandler serves full-text business search.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: svc, logger: logger}
}

// Search handles GET /search
//
// Query parameters: q, min_rating, sort, page, per_page.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := pagination.FromRequest(r)

	input := service.SearchInput{
		Text:    q.Get("q"),
		Sort:    q.Get("sort"),
		Page:    params.Page,
		PerPage: params.PerPage,
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("min_rating must be a number"), h.logger)
			return
		}
		input.MinRating = rating
	}

	res, err := h.service.Search(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(res.Businesses, res.Total, res.Page, res.PerPage))
}
