package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumerConfig() ConsumerConfig {
	cfg := DefaultConsumerConfig(nil, "rating-reconciler", Topic("review", "added"))
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func eventMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	event, err := NewEvent("review.added", "biz-1", "business", "directory", map[string]int{"rating": 5})
	require.NoError(t, err)
	value, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: Topic("review", "added"), Offset: offset, Key: []byte("biz-1"), Value: value}
}

func runUntilCommitted(t *testing.T, c *Consumer, r *fakeReader, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) >= want }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1), eventMessage(t, 2)}}

	var handled atomic.Int32
	c := newConsumer(r, testConsumerConfig(), func(_ context.Context, e *Event) error {
		assert.Equal(t, "biz-1", e.AggregateID)
		handled.Add(1)
		return nil
	}, testLogger())

	runUntilCommitted(t, c, r, 2)
	assert.Equal(t, int32(2), handled.Load())
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1)}}

	var calls atomic.Int32
	c := newConsumer(r, testConsumerConfig(), func(context.Context, *Event) error {
		if calls.Add(1) < 3 {
			return errors.New("mongo write conflict")
		}
		return nil
	}, testLogger())

	runUntilCommitted(t, c, r, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConsumer_ExhaustedRetriesGoToDLQ(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 7)}}
	w := &fakeWriter{}
	dlq := &DLQProducer{writer: w, logger: testLogger()}

	var calls atomic.Int32
	c := newConsumer(r, testConsumerConfig(), func(context.Context, *Event) error {
		calls.Add(1)
		return errors.New("still failing")
	}, testLogger(), WithDLQ(dlq))

	runUntilCommitted(t, c, r, 1)
	assert.Equal(t, int32(3), calls.Load())

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "directory.dlq.directory.review.added", msgs[0].Topic)
	assert.Equal(t, "still failing", headerValue(msgs[0], "dlq.error"))
	assert.Equal(t, "7", headerValue(msgs[0], "dlq.original_offset"))
	assert.Equal(t, "rating-reconciler", headerValue(msgs[0], "dlq.consumer_group"))
}

func TestConsumer_InvalidEnvelopeSkipsHandler(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: Topic("review", "added"), Value: []byte("garbage")}}}
	w := &fakeWriter{}

	c := newConsumer(r, testConsumerConfig(), func(context.Context, *Event) error {
		t.Error("handler must not run for an invalid envelope")
		return nil
	}, testLogger(), WithDLQ(&DLQProducer{writer: w, logger: testLogger()}))

	runUntilCommitted(t, c, r, 1)
	assert.Len(t, w.written(), 1)
}

func TestConsumer_CancelDuringRetryDoesNotCommit(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.RetryBackoff = time.Hour
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(r, cfg, func(context.Context, *Event) error {
		cancel()
		return errors.New("fail")
	}, testLogger())

	require.NoError(t, c.Start(ctx))
	assert.Empty(t, r.commits())
}

func TestConsumer_CloseIsIdempotent(t *testing.T) {
	r := &fakeReader{}
	c := newConsumer(r, testConsumerConfig(), nil, testLogger())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
