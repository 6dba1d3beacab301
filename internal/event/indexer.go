package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/yelpclone/directory/pkg/kafka"

	"github.com/yelpclone/directory/internal/search"
)

// IndexerGroup is the consumer group of the search indexer.
const IndexerGroup = "directory-search-indexer"

// Indexer keeps the search index in step with business and review events.
type Indexer struct {
	index  search.Index
	logger *slog.Logger
}

// NewIndexer creates an Indexer writing to index.
func NewIndexer(index search.Index, logger *slog.Logger) *Indexer {
	return &Indexer{index: index, logger: logger}
}

// Topics returns the topics the indexer subscribes to.
func (ix *Indexer) Topics() []string {
	return []string{
		TopicBusinessCreated,
		TopicBusinessUpdated,
		TopicBusinessDeleted,
		TopicReviewAdded,
		TopicReviewRemoved,
	}
}

// Handle applies one event to the index. Returned errors are retried by the
// consumer, so malformed payloads are reported rather than skipped.
func (ix *Indexer) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case TopicBusinessCreated, TopicBusinessUpdated:
		var data BusinessData
		if err := evt.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal %s data: %w", evt.EventType, err)
		}
		doc := search.Document{
			ID:            data.ID,
			Title:         data.Title,
			Slug:          data.Slug,
			Location:      data.Location,
			Description:   data.Description,
			AverageRating: data.AverageRating,
		}
		if err := ix.index.Upsert(ctx, &doc); err != nil {
			return fmt.Errorf("index business %s: %w", data.ID, err)
		}

	case TopicBusinessDeleted:
		var data BusinessDeletedData
		if err := evt.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal %s data: %w", evt.EventType, err)
		}
		if err := ix.index.Delete(ctx, data.ID); err != nil {
			return fmt.Errorf("remove business %s from index: %w", data.ID, err)
		}

	case TopicReviewAdded, TopicReviewRemoved:
		var data ReviewData
		if err := evt.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal %s data: %w", evt.EventType, err)
		}
		if err := ix.index.SetRating(ctx, data.BusinessID, data.AverageRating); err != nil {
			return fmt.Errorf("update indexed rating of %s: %w", data.BusinessID, err)
		}

	default:
		ix.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	ix.logger.DebugContext(ctx, "search index updated",
		slog.String("event_type", evt.EventType),
		slog.String("aggregate_id", evt.AggregateID),
	)
	return nil
}

// HandlerSender delivers events straight to an in-process handler. It
// stands in for Kafka when the broker is disabled.
type HandlerSender func(ctx context.Context, evt *pkgkafka.Event) error

// Publish calls f with evt. The topic is carried by evt.EventType.
func (f HandlerSender) Publish(ctx context.Context, _ string, evt *pkgkafka.Event) error {
	return f(ctx, evt)
}
