package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/pagination"
	"github.com/yelpclone/directory/pkg/slug"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/event"
	"github.com/yelpclone/directory/internal/repository"
)

// slugAttempts bounds how often Create retries with a fresh suffix when the
// generated slug is taken.
const slugAttempts = 4

// BusinessService implements the business logic for directory listings.
type BusinessService struct {
	businesses repository.BusinessRepository
	reviews    repository.ReviewRepository
	tx         repository.Transactor
	producer   *event.Producer
	logger     *slog.Logger
}

// NewBusinessService creates a new business service.
func NewBusinessService(store *repository.Store, producer *event.Producer, logger *slog.Logger) *BusinessService {
	return &BusinessService{
		businesses: store.Businesses,
		reviews:    store.Reviews,
		tx:         store.Tx,
		producer:   producer,
		logger:     logger,
	}
}

// BusinessFields holds the client-writable attributes of a business.
type BusinessFields struct {
	Title       string `json:"title" validate:"required,max=200"`
	Location    string `json:"location" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
}

func (f *BusinessFields) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Location = strings.TrimSpace(f.Location)
	f.Description = strings.TrimSpace(f.Description)
}

// UpdateBusinessInput is a partial update. Nil fields are left unchanged.
type UpdateBusinessInput struct {
	Title       *string `json:"title"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

// ListBusinesses returns one page of businesses and the total match count.
func (s *BusinessService) ListBusinesses(ctx context.Context, params pagination.Params) ([]domain.Business, int, error) {
	p := params.Normalized()
	businesses, total, err := s.businesses.List(ctx, repository.BusinessFilter{
		Search:  params.Search,
		Page:    p.Page,
		PerPage: p.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list businesses: %w", err)
	}
	return businesses, total, nil
}

// GetBusiness returns the business identified by key, an ID or a slug, with
// its reviews resolved in link order.
func (s *BusinessService) GetBusiness(ctx context.Context, key string) (*domain.BusinessDetail, error) {
	b, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	reviews, err := resolveReviews(ctx, s.reviews, b)
	if err != nil {
		return nil, err
	}
	return domain.NewBusinessDetail(b, reviews), nil
}

// GetBusinessForEdit returns the business identified by key without its
// reviews.
func (s *BusinessService) GetBusinessForEdit(ctx context.Context, key string) (*domain.Business, error) {
	return s.lookup(ctx, key)
}

// NewBusinessForm describes the attributes accepted by CreateBusiness.
func (s *BusinessService) NewBusinessForm() []domain.FormField {
	return domain.BusinessForm()
}

// CreateBusiness validates input and stores a new business with a unique
// slug and no reviews.
func (s *BusinessService) CreateBusiness(ctx context.Context, input BusinessFields) (*domain.Business, error) {
	input.normalize()
	if err := validator.Validate(&input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &domain.Business{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Location:    input.Location,
		Description: input.Description,
		ReviewIDs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withUniqueSlug(b, func() error { return s.businesses.Create(ctx, b) })
	if err != nil {
		return nil, fmt.Errorf("create business: %w", err)
	}

	if err := s.producer.PublishBusinessCreated(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish business.created event",
			slog.String("business_id", b.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "business created",
		slog.String("business_id", b.ID),
		slog.String("slug", b.Slug),
	)
	return b, nil
}

// UpdateBusiness applies a partial update. The slug follows the title; the
// review list and average rating cannot be changed here.
func (s *BusinessService) UpdateBusiness(ctx context.Context, id string, input UpdateBusinessInput) (*domain.Business, error) {
	if !isUUID(id) {
		return nil, apperrors.NotFound("business", id)
	}

	b, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}

	fields := BusinessFields{Title: b.Title, Location: b.Location, Description: b.Description}
	if input.Title != nil {
		fields.Title = *input.Title
	}
	if input.Location != nil {
		fields.Location = *input.Location
	}
	if input.Description != nil {
		fields.Description = *input.Description
	}
	fields.normalize()
	if err := validator.Validate(&fields); err != nil {
		return nil, err
	}

	titleChanged := fields.Title != b.Title
	b.Title = fields.Title
	b.Location = fields.Location
	b.Description = fields.Description

	save := func() error { return s.businesses.Update(ctx, b) }
	if titleChanged {
		err = s.withUniqueSlug(b, save)
	} else {
		err = save()
	}
	if err != nil {
		return nil, fmt.Errorf("update business: %w", err)
	}

	if err := s.producer.PublishBusinessUpdated(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish business.updated event",
			slog.String("business_id", b.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "business updated",
		slog.String("business_id", b.ID),
	)
	return b, nil
}

// DeleteBusiness removes a business and all of its reviews atomically.
func (s *BusinessService) DeleteBusiness(ctx context.Context, id string) error {
	if !isUUID(id) {
		return apperrors.NotFound("business", id)
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.businesses.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := s.reviews.DeleteByBusiness(ctx, id); err != nil {
			return err
		}
		return s.businesses.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}

	if err := s.producer.PublishBusinessDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish business.deleted event",
			slog.String("business_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "business deleted",
		slog.String("business_id", id),
	)
	return nil
}

// lookup resolves key as an ID when it parses as a UUID, as a slug otherwise.
func (s *BusinessService) lookup(ctx context.Context, key string) (*domain.Business, error) {
	if isUUID(key) {
		b, err := s.businesses.GetByID(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get business by id: %w", err)
		}
		return b, nil
	}
	b, err := s.businesses.GetBySlug(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get business by slug: %w", err)
	}
	return b, nil
}

// withUniqueSlug derives b.Slug from b.Title and runs save, retrying with a
// random suffix while the slug is taken. Running out of attempts is a
// conflict.
func (s *BusinessService) withUniqueSlug(b *domain.Business, save func() error) error {
	base := slug.Generate(b.Title)
	if base == "" {
		base = "business"
	}
	b.Slug = base

	for attempt := 0; attempt < slugAttempts; attempt++ {
		if attempt > 0 {
			b.Slug = slug.WithSuffix(base, uuid.New().String()[:8])
		}
		if err := save(); !errors.Is(err, apperrors.ErrAlreadyExists) {
			return err
		}
	}
	return apperrors.Conflict(fmt.Sprintf("no free slug derived from %q after %d attempts", base, slugAttempts))
}

// resolveReviews loads b's linked reviews in link order.
func resolveReviews(ctx context.Context, reviews repository.ReviewRepository, b *domain.Business) ([]domain.Review, error) {
	if len(b.ReviewIDs) == 0 {
		return []domain.Review{}, nil
	}
	found, err := reviews.GetByIDs(ctx, b.ReviewIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve reviews: %w", err)
	}
	return domain.OrderReviews(b.ReviewIDs, found), nil
}

// isUUID accepts only the canonical 36-character form.
func isUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}
