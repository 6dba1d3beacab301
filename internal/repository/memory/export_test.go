package memory

import (
	"maps"
	"slices"
)

// Len reports the number of stored businesses and reviews.
func (s *Store) Len() (businesses, reviews int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.businesses), len(s.reviews)
}

// ReviewIDs returns the IDs of every stored review, sorted.
func (s *Store) ReviewIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.reviews))
}
