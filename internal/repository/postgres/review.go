package postgres

import (
	"context"
	"fmt"

	"github.com/yelpclone/directory/pkg/database"
	apperrors "github.com/yelpclone/directory/pkg/errors"

	"github.com/yelpclone/directory/internal/domain"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.Pool
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, business_id, rating, body, author, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		rv.ID,
		rv.BusinessID,
		rv.Rating,
		rv.Body,
		rv.Author,
		rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByIDs returns the reviews with the given IDs.
func (r *ReviewRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Review, error) {
	if len(ids) == 0 {
		return []domain.Review{}, nil
	}

	query := `
		SELECT id, business_id, rating, body, author, created_at
		FROM reviews
		WHERE id = ANY($1::text[]::uuid[])`

	rows, err := conn(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0, len(ids))
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.BusinessID, &rv.Rating, &rv.Body, &rv.Author, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// Delete removes a review by its ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// DeleteByBusiness removes all reviews owned by businessID.
func (r *ReviewRepository) DeleteByBusiness(ctx context.Context, businessID string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM reviews WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete reviews of business: %w", err)
	}
	return nil
}
