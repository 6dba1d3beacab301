package repository

import (
	"context"

	"github.com/yelpclone/directory/internal/domain"
)

// BusinessFilter defines filter criteria for listing businesses.
type BusinessFilter struct {
	// Search matches a case-insensitive substring of title or location.
	Search  string
	Page    int
	PerPage int
}

// BusinessRepository defines persistence operations for businesses.
//
// Lookups return an error wrapping apperrors.ErrNotFound when the business
// does not exist.
type BusinessRepository interface {
	Create(ctx context.Context, b *domain.Business) error
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Business, error)

	// GetForUpdate loads a business and locks it until the surrounding
	// transaction ends, so concurrent review mutations on the same business
	// are serialised.
	GetForUpdate(ctx context.Context, id string) (*domain.Business, error)

	// List returns one page of businesses ordered by creation time together
	// with the total number of matches.
	List(ctx context.Context, filter BusinessFilter) ([]domain.Business, int, error)

	// Update writes the client-editable attributes (title, slug, location,
	// description) and UpdatedAt. Review links and the rating are untouched.
	Update(ctx context.Context, b *domain.Business) error

	// LinkReview appends reviewID to the business's review list.
	LinkReview(ctx context.Context, businessID, reviewID string) error

	// UnlinkReview removes reviewID from the review list.
	UnlinkReview(ctx context.Context, businessID, reviewID string) error

	// SetAverageRating stores the recomputed aggregate.
	SetAverageRating(ctx context.Context, businessID string, rating float64) error

	Delete(ctx context.Context, id string) error
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) error

	// GetByIDs returns the reviews with the given IDs in unspecified order.
	// Unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Review, error)

	Delete(ctx context.Context, id string) error

	// DeleteByBusiness removes every review owned by businessID.
	DeleteByBusiness(ctx context.Context, businessID string) error
}

// Transactor runs fn atomically. Repository calls made with the ctx handed to
// fn take part in the transaction; returning an error rolls it back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories of one storage backend.
type Store struct {
	Businesses BusinessRepository
	Reviews    ReviewRepository
	Tx         Transactor

	// Ping reports whether the backend is reachable.
	Ping func(ctx context.Context) error
	// Close releases the backend's connections.
	Close func(ctx context.Context) error
}
