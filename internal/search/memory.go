package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryIndex is an in-process Index. Every query term must appear as a
// case-insensitive substring of the title, location or description.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]Document)}
}

func (m *MemoryIndex) Upsert(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryIndex) UpsertMany(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range docs {
		m.docs[docs[i].ID] = docs[i]
	}
	return nil
}

func (m *MemoryIndex) SetRating(_ context.Context, id string, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		d.AverageRating = rating
		m.docs[id] = d
	}
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemoryIndex) Ping(context.Context) error { return nil }

type scored struct {
	doc   Document
	score int
}

// Search ranks matches by a weighted count of term hits: title 3, location
// 2, description 1.
func (m *MemoryIndex) Search(_ context.Context, q *Query) (*Result, error) {
	start := time.Now()
	query := q.normalize()
	terms := strings.Fields(strings.ToLower(query.Text))

	m.mu.RLock()
	matched := make([]scored, 0)
	for _, d := range m.docs {
		if d.AverageRating < query.MinRating {
			continue
		}
		if s, ok := score(d, terms); ok {
			matched = append(matched, scored{doc: d, score: s})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch query.Sort {
		case SortRating:
			if a.doc.AverageRating != b.doc.AverageRating {
				return a.doc.AverageRating > b.doc.AverageRating
			}
		case SortTitle:
		default:
			if a.score != b.score {
				return a.score > b.score
			}
		}
		if a.doc.Title != b.doc.Title {
			return a.doc.Title < b.doc.Title
		}
		return a.doc.ID < b.doc.ID
	})

	total := len(matched)
	from := min(query.offset(), total)
	to := min(from+query.PerPage, total)

	docs := make([]Document, 0, to-from)
	for _, s := range matched[from:to] {
		docs = append(docs, s.doc)
	}

	return &Result{
		Businesses: docs,
		Total:      total,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TookMs:     time.Since(start).Milliseconds(),
	}, nil
}

// score returns the weighted hit count of terms in d, and false when some
// term matches no field. No terms match everything.
func score(d Document, terms []string) (int, bool) {
	title := strings.ToLower(d.Title)
	location := strings.ToLower(d.Location)
	description := strings.ToLower(d.Description)

	total := 0
	for _, t := range terms {
		s := 0
		if strings.Contains(title, t) {
			s += 3
		}
		if strings.Contains(location, t) {
			s += 2
		}
		if strings.Contains(description, t) {
			s++
		}
		if s == 0 {
			return 0, false
		}
		total += s
	}
	return total, true
}
