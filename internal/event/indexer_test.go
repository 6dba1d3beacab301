package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/yelpclone/directory/pkg/kafka"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/search"
)

type failingIndex struct {
	*search.MemoryIndex
}

func (failingIndex) Upsert(context.Context, *search.Document) error {
	return errors.New("cluster unavailable")
}

func searchAll(t *testing.T, idx search.Index) []search.Document {
	t.Helper()
	res, err := idx.Search(context.Background(), &search.Query{Sort: search.SortTitle})
	require.NoError(t, err)
	return res.Businesses
}

func TestIndexer_FollowsBusinessLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := search.NewMemoryIndex()
	sender := &recordingSender{}
	p := NewProducer(sender, discardLogger())
	ix := NewIndexer(idx, discardLogger())

	b := &domain.Business{ID: "b-1", Title: "Blue Door", Slug: "blue-door", Location: "Lisbon"}
	require.NoError(t, p.PublishBusinessCreated(ctx, b))
	b.Title = "Blue Door Cafe"
	require.NoError(t, p.PublishBusinessUpdated(ctx, b))
	require.NoError(t, p.PublishReviewAdded(ctx, &domain.Review{ID: "r-1", BusinessID: "b-1", Rating: 4}, 4))

	for _, evt := range sender.events {
		require.NoError(t, ix.Handle(ctx, evt))
	}

	docs := searchAll(t, idx)
	require.Len(t, docs, 1)
	assert.Equal(t, "Blue Door Cafe", docs[0].Title)
	assert.Equal(t, 4.0, docs[0].AverageRating)

	require.NoError(t, p.PublishBusinessDeleted(ctx, "b-1"))
	require.NoError(t, ix.Handle(ctx, sender.events[len(sender.events)-1]))
	assert.Empty(t, searchAll(t, idx))
}

func TestIndexer_ReviewRemovedUpdatesRating(t *testing.T) {
	ctx := context.Background()
	idx := search.NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, &search.Document{ID: "b-1", Title: "Blue Door", AverageRating: 4.5}))

	evt, err := pkgkafka.NewEvent(TopicReviewRemoved, "r-1", AggregateTypeReview, SourceDirectoryService,
		ReviewData{ReviewID: "r-1", BusinessID: "b-1", AverageRating: 0})
	require.NoError(t, err)

	require.NoError(t, NewIndexer(idx, discardLogger()).Handle(ctx, evt))
	assert.Equal(t, 0.0, searchAll(t, idx)[0].AverageRating)
}

func TestIndexer_IndexErrorIsReturned(t *testing.T) {
	evt, err := pkgkafka.NewEvent(TopicBusinessCreated, "b-1", AggregateTypeBusiness, SourceDirectoryService,
		BusinessData{ID: "b-1", Title: "Blue Door"})
	require.NoError(t, err)

	err = NewIndexer(failingIndex{search.NewMemoryIndex()}, discardLogger()).Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster unavailable")
}

func TestIndexer_MalformedPayload(t *testing.T) {
	evt := &pkgkafka.Event{EventType: TopicBusinessCreated, Data: []byte(`"not an object"`)}
	err := NewIndexer(search.NewMemoryIndex(), discardLogger()).Handle(context.Background(), evt)
	require.Error(t, err)
}

func TestIndexer_IgnoresOtherEvents(t *testing.T) {
	evt := &pkgkafka.Event{EventType: "directory.unknown.thing", Data: []byte(`{}`)}
	assert.NoError(t, NewIndexer(search.NewMemoryIndex(), discardLogger()).Handle(context.Background(), evt))
}

func TestIndexer_Topics(t *testing.T) {
	topics := NewIndexer(search.NewMemoryIndex(), discardLogger()).Topics()
	assert.ElementsMatch(t, []string{
		TopicBusinessCreated, TopicBusinessUpdated, TopicBusinessDeleted, TopicReviewAdded, TopicReviewRemoved,
	}, topics)
}

func TestHandlerSender_DeliversInProcess(t *testing.T) {
	idx := search.NewMemoryIndex()
	ix := NewIndexer(idx, discardLogger())
	p := NewProducer(HandlerSender(ix.Handle), discardLogger())

	require.NoError(t, p.PublishBusinessCreated(context.Background(),
		&domain.Business{ID: "b-9", Title: "Harbor Grill", Location: "Porto"}))

	docs := searchAll(t, idx)
	require.Len(t, docs, 1)
	assert.Equal(t, "Harbor Grill", docs[0].Title)
}
