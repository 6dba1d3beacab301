package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/yelpclone/directory/internal/domain"
)

type memoryEntry struct {
	msgs      []domain.ChatMessage
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired sessions are dropped when next
// touched.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*memoryEntry
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

// NewMemoryStore creates an in-memory session store. A ttl of zero keeps
// sessions forever and a maxMessages of zero keeps every message.
func NewMemoryStore(ttl time.Duration, maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*memoryEntry),
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(id)
	if e == nil {
		return []domain.ChatMessage{}, nil
	}
	out := make([]domain.ChatMessage, len(e.msgs))
	copy(out, e.msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(id)
	if e == nil {
		e = &memoryEntry{}
		s.sessions[id] = e
	}
	e.msgs = append(e.msgs, msgs...)
	if s.maxMessages > 0 && len(e.msgs) > s.maxMessages {
		e.msgs = slices.Clone(e.msgs[len(e.msgs)-s.maxMessages:])
	}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// live returns the entry for id, evicting it if expired. Callers hold mu.
func (s *MemoryStore) live(id string) *memoryEntry {
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.sessions, id)
		return nil
	}
	return e
}
