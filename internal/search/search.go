// Package search maintains a full-text projection of the business directory.
// The projection is fed from domain events and never written by request
// handlers directly, so it may lag the primary store slightly.
package search

import (
	"context"
	"strings"

	"github.com/yelpclone/directory/pkg/pagination"

	"github.com/yelpclone/directory/internal/domain"
)

// Document is one business as stored in the search index.
type Document struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Slug          string  `json:"slug"`
	Location      string  `json:"location"`
	Description   string  `json:"description"`
	AverageRating float64 `json:"average_rating"`
}

// FromBusiness projects a business onto its search document.
func FromBusiness(b *domain.Business) Document {
	return Document{
		ID:            b.ID,
		Title:         b.Title,
		Slug:          b.Slug,
		Location:      b.Location,
		Description:   b.Description,
		AverageRating: b.AverageRating,
	}
}

// Sort options for search results.
const (
	SortRelevance = "relevance"
	SortRating    = "rating"
	SortTitle     = "title"
)

// Query holds the parameters of one search.
type Query struct {
	Text      string  `json:"q"`
	MinRating float64 `json:"min_rating,omitempty"`
	Sort      string  `json:"sort"`
	Page      int     `json:"page"`
	PerPage   int     `json:"per_page"`
}

// normalize clamps paging and trims the text.
func (q Query) normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	p := pagination.Params{Page: q.Page, PerPage: q.PerPage}.Normalized()
	q.Page, q.PerPage = p.Page, p.PerPage
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	return q
}

func (q Query) offset() int {
	return (q.Page - 1) * q.PerPage
}

// Result is one page of search hits.
type Result struct {
	Businesses []Document `json:"businesses"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TookMs     int64      `json:"took_ms"`
}

// Index is a searchable store of business documents.
//
// SetRating and Delete ignore unknown IDs: events may arrive for businesses
// the index never saw.
type Index interface {
	Upsert(ctx context.Context, doc *Document) error
	UpsertMany(ctx context.Context, docs []Document) error
	SetRating(ctx context.Context, id string, rating float64) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q *Query) (*Result, error)
	Ping(ctx context.Context) error
}
