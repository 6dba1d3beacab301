package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	pkgkafka "github.com/yelpclone/directory/pkg/kafka"
)

// ReconcilerGroup is the consumer group of the rating reconciler.
const ReconcilerGroup = "directory-rating-reconciler"

// RatingRecomputer re-derives a business's average rating from its reviews.
type RatingRecomputer interface {
	RecomputeRating(ctx context.Context, businessID string) error
}

// Reconciler consumes review events and recomputes the rating of the business
// they belong to.
type Reconciler struct {
	ratings RatingRecomputer
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(ratings RatingRecomputer, logger *slog.Logger) *Reconciler {
	return &Reconciler{ratings: ratings, logger: logger}
}

// Topics returns the topics the reconciler subscribes to.
func (r *Reconciler) Topics() []string {
	return []string{TopicReviewAdded, TopicReviewRemoved}
}

// Handle processes one review event.
func (r *Reconciler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case TopicReviewAdded, TopicReviewRemoved:
	default:
		r.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	var data ReviewData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", evt.EventType, err)
	}
	if data.BusinessID == "" {
		r.logger.WarnContext(ctx, "review event without business id",
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	if err := r.ratings.RecomputeRating(ctx, data.BusinessID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.InfoContext(ctx, "business gone, nothing to reconcile",
				slog.String("business_id", data.BusinessID),
			)
			return nil
		}
		return fmt.Errorf("recompute rating from %s: %w", evt.EventType, err)
	}

	r.logger.DebugContext(ctx, "reconciled average rating",
		slog.String("business_id", data.BusinessID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}
