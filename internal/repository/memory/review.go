package memory

import (
	"context"

	apperrors "github.com/yelpclone/directory/pkg/errors"

	"github.com/yelpclone/directory/internal/domain"
)

// ReviewRepository implements repository.ReviewRepository in memory.
type ReviewRepository struct {
	store *Store
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	defer r.store.write(ctx)()

	if _, ok := r.store.reviews[rv.ID]; ok {
		return apperrors.AlreadyExists("review", "id", rv.ID)
	}
	cp := *rv
	r.store.reviews[rv.ID] = &cp
	return nil
}

func (r *ReviewRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Review, error) {
	defer r.store.read(ctx)()

	out := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		if rv, ok := r.store.reviews[id]; ok {
			out = append(out, *rv)
		}
	}
	return out, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	defer r.store.write(ctx)()

	if _, ok := r.store.reviews[id]; !ok {
		return apperrors.NotFound("review", id)
	}
	delete(r.store.reviews, id)
	return nil
}

func (r *ReviewRepository) DeleteByBusiness(ctx context.Context, businessID string) error {
	defer r.store.write(ctx)()

	for id, rv := range r.store.reviews {
		if rv.BusinessID == businessID {
			delete(r.store.reviews, id)
		}
	}
	return nil
}
