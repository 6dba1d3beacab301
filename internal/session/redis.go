package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yelpclone/directory/internal/domain"
)

const keyPrefix = "chat:session:"

// RedisStore keeps each transcript as a Redis list of JSON-encoded messages.
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxMessages int
}

// NewRedisStore creates a Redis-backed session store. Every Append refreshes
// the session's expiry to ttl and trims the list to its newest maxMessages
// entries. A maxMessages of zero keeps every message.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxMessages int) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, maxMessages: maxMessages}
}

func (s *RedisStore) Load(ctx context.Context, id string) ([]domain.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, keyPrefix+id, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange session: %w", err)
	}

	msgs := make([]domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal chat message: %w", err)
		}
		values = append(values, data)
	}

	key := keyPrefix + id
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.maxMessages > 0 {
			pipe.LTrim(ctx, key, -int64(s.maxMessages), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
