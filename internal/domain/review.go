package domain

import (
	"math"
	"time"
)

// Review limits.
const (
	MinRating           = 1
	MaxRating           = 5
	MaxReviewBodyLength = 2000
	MaxAuthorLength     = 100
)

// Review is a rated comment owned by exactly one business. It is stored as
// its own record and linked into the owner's ReviewIDs.
type Review struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Rating     int       `json:"rating"`
	Body       string    `json:"body"`
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AverageRating returns the arithmetic mean of the ratings rounded to two
// decimal places, or 0 for an empty set. Rounding happens once, on the final
// mean.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*100) / 100
}

// OrderReviews returns the reviews whose IDs appear in ids, in the order of
// ids. IDs with no matching review are skipped.
func OrderReviews(ids []string, reviews []Review) []Review {
	byID := make(map[string]Review, len(reviews))
	for _, r := range reviews {
		byID[r.ID] = r
	}
	out := make([]Review, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
