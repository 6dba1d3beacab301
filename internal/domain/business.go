package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Field limits for user-supplied business attributes.
const (
	MaxTitleLength       = 200
	MaxLocationLength    = 200
	MaxDescriptionLength = 5000
)

// Business is a directory listing. ReviewIDs keeps the linked reviews in
// display order; AverageRating is a cached projection of their ratings and is
// only ever written by the review lifecycle.
type Business struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	ReviewIDs     []string  `json:"review_ids"`
	AverageRating float64   `json:"average_rating"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BusinessDetail is a business with its reviews resolved in link order.
type BusinessDetail struct {
	Business
	Reviews     []Review `json:"reviews"`
	ReviewCount int      `json:"review_count"`
}

// NewBusinessDetail pairs b with reviews. A nil slice is normalised so the
// JSON encoding is always a list.
func NewBusinessDetail(b *Business, reviews []Review) *BusinessDetail {
	if reviews == nil {
		reviews = []Review{}
	}
	return &BusinessDetail{Business: *b, Reviews: reviews, ReviewCount: len(reviews)}
}

// HasReview reports whether reviewID is linked to b.
func (b *Business) HasReview(reviewID string) bool {
	return slices.Contains(b.ReviewIDs, reviewID)
}

// LinkReview appends reviewID to the end of the review list.
func (b *Business) LinkReview(reviewID string) {
	b.ReviewIDs = append(b.ReviewIDs, reviewID)
}

// UnlinkReview removes reviewID from the review list, preserving the order of
// the remaining entries. It reports whether the review was linked.
func (b *Business) UnlinkReview(reviewID string) bool {
	i := slices.Index(b.ReviewIDs, reviewID)
	if i < 0 {
		return false
	}
	b.ReviewIDs = slices.Delete(b.ReviewIDs, i, i+1)
	return true
}

// Summary renders the business as plain text for the chat assistant's
// system prompt.
func (b *Business) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\n", b.Title)
	if b.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", b.Location)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", b.Description)
	}
	fmt.Fprintf(&sb, "Average rating: %.2f from %d reviews", b.AverageRating, len(b.ReviewIDs))
	return sb.String()
}

// FormField describes one client-writable business attribute.
type FormField struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	MaxLength int    `json:"max_length"`
}

// BusinessForm lists the attributes a client may set when creating or
// editing a business. Slug, review links and the average rating are derived
// and never appear here.
func BusinessForm() []FormField {
	return []FormField{
		{Name: "title", Type: "text", Required: true, MaxLength: MaxTitleLength},
		{Name: "location", Type: "text", MaxLength: MaxLocationLength},
		{Name: "description", Type: "textarea", MaxLength: MaxDescriptionLength},
	}
}
