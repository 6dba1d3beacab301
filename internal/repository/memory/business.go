package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/pagination"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
)

// BusinessRepository implements repository.BusinessRepository in memory.
type BusinessRepository struct {
	store *Store
}

func (r *BusinessRepository) Create(ctx context.Context, b *domain.Business) error {
	defer r.store.write(ctx)()

	if _, ok := r.store.businesses[b.ID]; ok {
		return apperrors.AlreadyExists("business", "id", b.ID)
	}
	if r.slugTaken(b.Slug, b.ID) {
		return apperrors.AlreadyExists("business", "slug", b.Slug)
	}
	r.store.businesses[b.ID] = cloneBusiness(b)
	return nil
}

func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	defer r.store.read(ctx)()

	b, ok := r.store.businesses[id]
	if !ok {
		return nil, apperrors.NotFound("business", id)
	}
	return cloneBusiness(b), nil
}

func (r *BusinessRepository) GetBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	defer r.store.read(ctx)()

	for _, b := range r.store.businesses {
		if b.Slug == slug {
			return cloneBusiness(b), nil
		}
	}
	return nil, apperrors.NotFound("business", slug)
}

// GetForUpdate is GetByID: inside a transaction the store lock is already
// held exclusively.
func (r *BusinessRepository) GetForUpdate(ctx context.Context, id string) (*domain.Business, error) {
	return r.GetByID(ctx, id)
}

func (r *BusinessRepository) List(ctx context.Context, filter repository.BusinessFilter) ([]domain.Business, int, error) {
	defer r.store.read(ctx)()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matches := make([]domain.Business, 0, len(r.store.businesses))
	for _, b := range r.store.businesses {
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Location), search) {
			continue
		}
		matches = append(matches, *cloneBusiness(b))
	}
	slices.SortFunc(matches, func(a, b domain.Business) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	p := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalized()
	total := len(matches)
	start := min(p.Offset(), total)
	end := min(start+p.Limit(), total)
	return matches[start:end], total, nil
}

func (r *BusinessRepository) Update(ctx context.Context, b *domain.Business) error {
	defer r.store.write(ctx)()

	existing, ok := r.store.businesses[b.ID]
	if !ok {
		return apperrors.NotFound("business", b.ID)
	}
	if r.slugTaken(b.Slug, b.ID) {
		return apperrors.AlreadyExists("business", "slug", b.Slug)
	}
	b.UpdatedAt = time.Now().UTC()
	existing.Title = b.Title
	existing.Slug = b.Slug
	existing.Location = b.Location
	existing.Description = b.Description
	existing.UpdatedAt = b.UpdatedAt
	return nil
}

func (r *BusinessRepository) LinkReview(ctx context.Context, businessID, reviewID string) error {
	defer r.store.write(ctx)()

	b, ok := r.store.businesses[businessID]
	if !ok {
		return apperrors.NotFound("business", businessID)
	}
	b.LinkReview(reviewID)
	return nil
}

func (r *BusinessRepository) UnlinkReview(ctx context.Context, businessID, reviewID string) error {
	defer r.store.write(ctx)()

	b, ok := r.store.businesses[businessID]
	if !ok {
		return apperrors.NotFound("business", businessID)
	}
	if !b.UnlinkReview(reviewID) {
		return apperrors.NotFound("review", reviewID)
	}
	return nil
}

func (r *BusinessRepository) SetAverageRating(ctx context.Context, businessID string, rating float64) error {
	defer r.store.write(ctx)()

	b, ok := r.store.businesses[businessID]
	if !ok {
		return apperrors.NotFound("business", businessID)
	}
	b.AverageRating = rating
	return nil
}

func (r *BusinessRepository) Delete(ctx context.Context, id string) error {
	defer r.store.write(ctx)()

	if _, ok := r.store.businesses[id]; !ok {
		return apperrors.NotFound("business", id)
	}
	delete(r.store.businesses, id)
	return nil
}

// slugTaken must be called with the lock held.
func (r *BusinessRepository) slugTaken(slug, exceptID string) bool {
	for id, b := range r.store.businesses {
		if id != exceptID && b.Slug == slug {
			return true
		}
	}
	return false
}
