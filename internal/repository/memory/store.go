// Package memory is an in-process storage backend for local development and
// tests. A single store-wide lock serialises transactions.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
)

type txKey struct{}

// Store holds businesses and reviews in maps guarded by one RWMutex.
type Store struct {
	mu         sync.RWMutex
	businesses map[string]*domain.Business
	reviews    map[string]*domain.Review
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		businesses: make(map[string]*domain.Business),
		reviews:    make(map[string]*domain.Review),
	}
}

// Repositories exposes s through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Businesses: &BusinessRepository{store: s},
		Reviews:    &ReviewRepository{store: s},
		Tx:         s,
		Ping:       func(context.Context) error { return nil },
		Close:      func(context.Context) error { return nil },
	}
}

// WithinTransaction holds the write lock for the whole of fn. If fn fails the
// maps are restored to their state before fn ran.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	businesses, reviews := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.businesses, s.reviews = businesses, reviews
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// write takes the write lock unless ctx already runs inside a transaction on s.
func (s *Store) write(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) read(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) snapshot() (map[string]*domain.Business, map[string]*domain.Review) {
	businesses := make(map[string]*domain.Business, len(s.businesses))
	for id, b := range s.businesses {
		businesses[id] = cloneBusiness(b)
	}
	reviews := make(map[string]*domain.Review, len(s.reviews))
	for id, r := range s.reviews {
		cp := *r
		reviews[id] = &cp
	}
	return businesses, reviews
}

func cloneBusiness(b *domain.Business) *domain.Business {
	cp := *b
	cp.ReviewIDs = slices.Clone(b.ReviewIDs)
	if cp.ReviewIDs == nil {
		cp.ReviewIDs = []string{}
	}
	return &cp
}
