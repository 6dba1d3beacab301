package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yelpclone/directory/pkg/database"
	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/pagination"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
)

const businessColumns = `id, title, slug, location, description, review_ids, average_rating, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BusinessRepository implements repository.BusinessRepository using PostgreSQL.
type BusinessRepository struct {
	pool database.Pool
}

// NewBusinessRepository creates a new PostgreSQL-backed business repository.
func NewBusinessRepository(pool database.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

// Create inserts a new business.
func (r *BusinessRepository) Create(ctx context.Context, b *domain.Business) error {
	query := `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		b.ID,
		b.Title,
		b.Slug,
		b.Location,
		b.Description,
		reviewIDs(b),
		b.AverageRating,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("business", "slug", b.Slug)
		}
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

// GetByID retrieves a business by its ID.
func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`
	return r.scanBusiness(ctx, id, query, id)
}

// GetBySlug retrieves a business by its slug.
func (r *BusinessRepository) GetBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE slug = $1`
	return r.scanBusiness(ctx, slug, query, slug)
}

// GetForUpdate retrieves a business and holds its row lock until the
// surrounding transaction ends.
func (r *BusinessRepository) GetForUpdate(ctx context.Context, id string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1 FOR UPDATE`
	return r.scanBusiness(ctx, id, query, id)
}

// List returns one page of businesses, oldest first, with the total count.
func (r *BusinessRepository) List(ctx context.Context, filter repository.BusinessFilter) ([]domain.Business, int, error) {
	p := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalized()

	var (
		where string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = `WHERE title ILIKE $1 OR location ILIKE $1`
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
	}
	n := len(args)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM businesses
		%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		businessColumns, where, n+1, n+2,
	)
	args = append(args, p.Limit(), p.Offset())

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var (
		businesses = []domain.Business{}
		total      int
	)
	for rows.Next() {
		var b domain.Business
		if err := rows.Scan(
			&b.ID,
			&b.Title,
			&b.Slug,
			&b.Location,
			&b.Description,
			&b.ReviewIDs,
			&b.AverageRating,
			&b.CreatedAt,
			&b.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan business row: %w", err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate business rows: %w", err)
	}

	// count(*) OVER() yields nothing on an empty page past the end.
	if len(businesses) == 0 && p.Page > 1 {
		countQuery := `SELECT count(*) FROM businesses ` + where
		if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args[:n]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count businesses: %w", err)
		}
	}
	return businesses, total, nil
}

// Update writes the editable attributes. review_ids and average_rating are
// left alone.
func (r *BusinessRepository) Update(ctx context.Context, b *domain.Business) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE businesses
		SET title = $1, slug = $2, location = $3, description = $4, updated_at = $5
		WHERE id = $6`

	ct, err := conn(ctx, r.pool).Exec(ctx, query,
		b.Title,
		b.Slug,
		b.Location,
		b.Description,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("business", "slug", b.Slug)
		}
		return fmt.Errorf("update business: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("business", b.ID)
	}
	return nil
}

// LinkReview appends reviewID to review_ids.
func (r *BusinessRepository) LinkReview(ctx context.Context, businessID, reviewID string) error {
	query := `UPDATE businesses SET review_ids = array_append(review_ids, $1) WHERE id = $2`

	ct, err := conn(ctx, r.pool).Exec(ctx, query, reviewID, businessID)
	if err != nil {
		return fmt.Errorf("link review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("business", businessID)
	}
	return nil
}

// UnlinkReview removes reviewID from review_ids.
func (r *BusinessRepository) UnlinkReview(ctx context.Context, businessID, reviewID string) error {
	query := `
		UPDATE businesses SET review_ids = array_remove(review_ids, $1)
		WHERE id = $2 AND $1 = ANY(review_ids)`

	ct, err := conn(ctx, r.pool).Exec(ctx, query, reviewID, businessID)
	if err != nil {
		return fmt.Errorf("unlink review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", reviewID)
	}
	return nil
}

// SetAverageRating stores the recomputed aggregate.
func (r *BusinessRepository) SetAverageRating(ctx context.Context, businessID string, rating float64) error {
	query := `UPDATE businesses SET average_rating = $1 WHERE id = $2`

	ct, err := conn(ctx, r.pool).Exec(ctx, query, rating, businessID)
	if err != nil {
		return fmt.Errorf("set average rating: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("business", businessID)
	}
	return nil
}

// Delete removes a business by its ID.
func (r *BusinessRepository) Delete(ctx context.Context, id string) error {
	ct, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("business", id)
	}
	return nil
}

func (r *BusinessRepository) scanBusiness(ctx context.Context, key, query string, args ...any) (*domain.Business, error) {
	var b domain.Business
	err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&b.ID,
		&b.Title,
		&b.Slug,
		&b.Location,
		&b.Description,
		&b.ReviewIDs,
		&b.AverageRating,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("business", key)
		}
		return nil, fmt.Errorf("scan business: %w", err)
	}
	if b.ReviewIDs == nil {
		b.ReviewIDs = []string{}
	}
	return &b, nil
}

func reviewIDs(b *domain.Business) []string {
	if b.ReviewIDs == nil {
		return []string{}
	}
	return b.ReviewIDs
}
