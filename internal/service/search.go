package service

import (
	"context"
	"log/slog"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/search"
)

// SearchInput holds the parameters of a full-text business search.
type SearchInput struct {
	Text      string  `json:"q" validate:"max=200"`
	MinRating float64 `json:"min_rating" validate:"gte=0,lte=5"`
	Sort      string  `json:"sort" validate:"omitempty,oneof=relevance rating title"`
	Page      int     `json:"page"`
	PerPage   int     `json:"per_page"`
}

// SearchService answers business searches from the search projection.
type SearchService struct {
	index  search.Index
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index search.Index, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, logger: logger}
}

// Search validates input and runs it against the index. Index failures are
// reported as an unavailable search backend.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*search.Result, error) {
	if err := validator.Validate(&input); err != nil {
		return nil, err
	}

	res, err := s.index.Search(ctx, &search.Query{
		Text:      input.Text,
		MinRating: input.MinRating,
		Sort:      input.Sort,
		Page:      input.Page,
		PerPage:   input.PerPage,
	})
	if err != nil {
		return nil, apperrors.ExternalService("search", err)
	}
	return res, nil
}
