package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/yelpclone/directory/pkg/kafka"

	"github.com/yelpclone/directory/internal/domain"
)

// Kafka topics for directory domain events. The event type of each message
// equals its topic.
var (
	TopicBusinessCreated = pkgkafka.Topic("business", "created")
	TopicBusinessUpdated = pkgkafka.Topic("business", "updated")
	TopicBusinessDeleted = pkgkafka.Topic("business", "deleted")
	TopicReviewAdded     = pkgkafka.Topic("review", "added")
	TopicReviewRemoved   = pkgkafka.Topic("review", "removed")
)

const (
	AggregateTypeBusiness = "business"
	AggregateTypeReview   = "review"

	SourceDirectoryService = "directory-service"
)

// BusinessData is the payload of business.created and business.updated.
type BusinessData struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Slug          string  `json:"slug"`
	Location      string  `json:"location"`
	Description   string  `json:"description"`
	AverageRating float64 `json:"average_rating"`
}

// BusinessDeletedData is the payload of business.deleted.
type BusinessDeletedData struct {
	ID string `json:"id"`
}

// ReviewData is the payload of review.added and review.removed.
// AverageRating is the business's rating after the change.
type ReviewData struct {
	ReviewID      string  `json:"review_id"`
	BusinessID    string  `json:"business_id"`
	Rating        int     `json:"rating,omitempty"`
	AverageRating float64 `json:"average_rating"`
}

// Sender publishes an event envelope to a topic. *pkgkafka.Producer
// satisfies it.
type Sender interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes directory domain events.
type Producer struct {
	sender Sender
	logger *slog.Logger
}

// NewProducer creates a Producer over sender.
func NewProducer(sender Sender, logger *slog.Logger) *Producer {
	return &Producer{sender: sender, logger: logger}
}

// NewNoopProducer returns a Producer that drops every event, used when Kafka
// is disabled.
func NewNoopProducer(logger *slog.Logger) *Producer {
	return &Producer{logger: logger}
}

// PublishBusinessCreated publishes a business.created event.
func (p *Producer) PublishBusinessCreated(ctx context.Context, b *domain.Business) error {
	return p.publish(ctx, TopicBusinessCreated, b.ID, AggregateTypeBusiness, businessData(b))
}

// PublishBusinessUpdated publishes a business.updated event.
func (p *Producer) PublishBusinessUpdated(ctx context.Context, b *domain.Business) error {
	return p.publish(ctx, TopicBusinessUpdated, b.ID, AggregateTypeBusiness, businessData(b))
}

// PublishBusinessDeleted publishes a business.deleted event.
func (p *Producer) PublishBusinessDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicBusinessDeleted, id, AggregateTypeBusiness, BusinessDeletedData{ID: id})
}

// PublishReviewAdded publishes a review.added event.
func (p *Producer) PublishReviewAdded(ctx context.Context, r *domain.Review, averageRating float64) error {
	return p.publish(ctx, TopicReviewAdded, r.ID, AggregateTypeReview, ReviewData{
		ReviewID:      r.ID,
		BusinessID:    r.BusinessID,
		Rating:        r.Rating,
		AverageRating: averageRating,
	})
}

// PublishReviewRemoved publishes a review.removed event.
func (p *Producer) PublishReviewRemoved(ctx context.Context, businessID, reviewID string, averageRating float64) error {
	return p.publish(ctx, TopicReviewRemoved, reviewID, AggregateTypeReview, ReviewData{
		ReviewID:      reviewID,
		BusinessID:    businessID,
		AverageRating: averageRating,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.sender == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceDirectoryService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.sender.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

func businessData(b *domain.Business) BusinessData {
	return BusinessData{
		ID:            b.ID,
		Title:         b.Title,
		Slug:          b.Slug,
		Location:      b.Location,
		Description:   b.Description,
		AverageRating: b.AverageRating,
	}
}
