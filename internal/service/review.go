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
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/event"
	"github.com/yelpclone/directory/internal/repository"
)

// ReviewService owns the review lifecycle. Every mutation recomputes the
// owning business's average rating in the same transaction.
type ReviewService struct {
	businesses repository.BusinessRepository
	reviews    repository.ReviewRepository
	tx         repository.Transactor
	producer   *event.Producer
	logger     *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(store *repository.Store, producer *event.Producer, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		businesses: store.Businesses,
		reviews:    store.Reviews,
		tx:         store.Tx,
		producer:   producer,
		logger:     logger,
	}
}

// AddReviewInput holds the parameters for adding a review.
type AddReviewInput struct {
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Body   string `json:"body" validate:"max=2000"`
	Author string `json:"author" validate:"max=100"`
}

// AddReview stores a review, links it to the business and recomputes the
// business's average rating.
func (s *ReviewService) AddReview(ctx context.Context, businessID string, input AddReviewInput) (*domain.BusinessDetail, error) {
	input.Body = strings.TrimSpace(input.Body)
	input.Author = strings.TrimSpace(input.Author)
	if err := validator.Validate(&input); err != nil {
		return nil, err
	}
	if !isUUID(businessID) {
		return nil, apperrors.NotFound("business", businessID)
	}

	var (
		review *domain.Review
		detail *domain.BusinessDetail
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.businesses.GetForUpdate(ctx, businessID)
		if err != nil {
			return err
		}

		review = &domain.Review{
			ID:         uuid.New().String(),
			BusinessID: b.ID,
			Rating:     input.Rating,
			Body:       input.Body,
			Author:     input.Author,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.reviews.Create(ctx, review); err != nil {
			return err
		}
		if err := s.businesses.LinkReview(ctx, b.ID, review.ID); err != nil {
			return err
		}
		b.LinkReview(review.ID)

		detail, err = s.recompute(ctx, b)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}

	if err := s.producer.PublishReviewAdded(ctx, review, detail.AverageRating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.added event",
			slog.String("business_id", businessID),
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review added",
		slog.String("business_id", businessID),
		slog.String("review_id", review.ID),
		slog.Int("rating", review.Rating),
		slog.Float64("average_rating", detail.AverageRating),
	)
	return detail, nil
}

// RemoveReview unlinks and deletes a review of the business and recomputes
// the average rating. A review that is not linked to the business is
// reported as not found.
func (s *ReviewService) RemoveReview(ctx context.Context, businessID, reviewID string) (*domain.BusinessDetail, error) {
	if !isUUID(businessID) {
		return nil, apperrors.NotFound("business", businessID)
	}
	if !isUUID(reviewID) {
		return nil, apperrors.NotFound("review", reviewID)
	}

	var detail *domain.BusinessDetail
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.businesses.GetForUpdate(ctx, businessID)
		if err != nil {
			return err
		}
		if !b.HasReview(reviewID) {
			return apperrors.NotFound("review", reviewID)
		}

		if err := s.businesses.UnlinkReview(ctx, b.ID, reviewID); err != nil {
			return err
		}
		b.UnlinkReview(reviewID)

		// A dangling link has no record left to delete.
		if err := s.reviews.Delete(ctx, reviewID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		detail, err = s.recompute(ctx, b)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("remove review: %w", err)
	}

	if err := s.producer.PublishReviewRemoved(ctx, businessID, reviewID, detail.AverageRating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.removed event",
			slog.String("business_id", businessID),
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review removed",
		slog.String("business_id", businessID),
		slog.String("review_id", reviewID),
		slog.Float64("average_rating", detail.AverageRating),
	)
	return detail, nil
}

// RecomputeRating re-derives the average rating from the reviews currently
// linked to the business and stores it if it drifted.
func (s *ReviewService) RecomputeRating(ctx context.Context, businessID string) error {
	if !isUUID(businessID) {
		return apperrors.NotFound("business", businessID)
	}

	var before, after float64
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.businesses.GetForUpdate(ctx, businessID)
		if err != nil {
			return err
		}
		before = b.AverageRating

		reviews, err := resolveReviews(ctx, s.reviews, b)
		if err != nil {
			return err
		}
		after = domain.AverageRating(reviews)
		if after == before {
			return nil
		}
		return s.businesses.SetAverageRating(ctx, b.ID, after)
	})
	if err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}

	if after != before {
		s.logger.WarnContext(ctx, "average rating drift corrected",
			slog.String("business_id", businessID),
			slog.Float64("stored", before),
			slog.Float64("recomputed", after),
		)
	}
	return nil
}

// ListReviews returns the reviews of the business identified by key, an ID or
// a slug, in link order.
func (s *ReviewService) ListReviews(ctx context.Context, key string) ([]domain.Review, error) {
	var (
		b   *domain.Business
		err error
	)
	if isUUID(key) {
		b, err = s.businesses.GetByID(ctx, key)
	} else {
		b, err = s.businesses.GetBySlug(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	return resolveReviews(ctx, s.reviews, b)
}

// recompute resolves b's reviews, stores the new average and returns the
// resulting detail. It must run inside the caller's transaction.
func (s *ReviewService) recompute(ctx context.Context, b *domain.Business) (*domain.BusinessDetail, error) {
	reviews, err := resolveReviews(ctx, s.reviews, b)
	if err != nil {
		return nil, err
	}
	b.AverageRating = domain.AverageRating(reviews)
	if err := s.businesses.SetAverageRating(ctx, b.ID, b.AverageRating); err != nil {
		return nil, err
	}
	return domain.NewBusinessDetail(b, reviews), nil
}
