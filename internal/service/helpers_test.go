package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/yelpclone/directory/pkg/kafka"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/event"
	"github.com/yelpclone/directory/internal/repository"
	"github.com/yelpclone/directory/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Event capture ---

type capturedEvents struct {
	mu     sync.Mutex
	topics []string
	events []*pkgkafka.Event
	err    error
}

func (c *capturedEvents) Publish(_ context.Context, topic string, evt *pkgkafka.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.topics = append(c.topics, topic)
	c.events = append(c.events, evt)
	return nil
}

func (c *capturedEvents) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

// --- Fixture over the in-memory store ---

// recordingReviews remembers the ID of every review handed to Create, so a
// test can later ask which of them are still stored.
type recordingReviews struct {
	repository.ReviewRepository
	mu  sync.Mutex
	ids []string
}

func (r *recordingReviews) Create(ctx context.Context, rv *domain.Review) error {
	r.mu.Lock()
	r.ids = append(r.ids, rv.ID)
	r.mu.Unlock()
	return r.ReviewRepository.Create(ctx, rv)
}

type fixture struct {
	store      *repository.Store
	created    *recordingReviews
	events     *capturedEvents
	businesses *BusinessService
	reviews    *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore().Repositories()
	created := &recordingReviews{ReviewRepository: store.Reviews}
	store.Reviews = created
	events := &capturedEvents{}
	producer := event.NewProducer(events, discardLogger())
	return &fixture{
		store:      store,
		created:    created,
		events:     events,
		businesses: NewBusinessService(store, producer, discardLogger()),
		reviews:    NewReviewService(store, producer, discardLogger()),
	}
}

// businessCount returns the number of stored businesses.
func (f *fixture) businessCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.store.Businesses.List(context.Background(), repository.BusinessFilter{Page: 1, PerPage: 1})
	require.NoError(t, err)
	return total
}

// storedReviewIDs returns the IDs of every review created through the fixture
// that is still stored.
func (f *fixture) storedReviewIDs(t *testing.T) []string {
	t.Helper()
	f.created.mu.Lock()
	ids := append([]string(nil), f.created.ids...)
	f.created.mu.Unlock()

	found, err := f.store.Reviews.GetByIDs(context.Background(), ids)
	require.NoError(t, err)
	out := make([]string, 0, len(found))
	for _, rv := range found {
		out = append(out, rv.ID)
	}
	return out
}

func (f *fixture) createBusiness(t *testing.T, title string, ratings ...int) *domain.BusinessDetail {
	t.Helper()
	b, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{Title: title, Location: "Lisbon"})
	require.NoError(t, err)

	detail := domain.NewBusinessDetail(b, nil)
	for _, r := range ratings {
		detail, err = f.reviews.AddReview(context.Background(), b.ID, AddReviewInput{Rating: r, Body: "ok"})
		require.NoError(t, err)
	}
	return detail
}

// --- Mock repositories ---

type mockBusinessRepository struct {
	mock.Mock
}

func (m *mockBusinessRepository) Create(ctx context.Context, b *domain.Business) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBusinessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *mockBusinessRepository) GetBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *mockBusinessRepository) GetForUpdate(ctx context.Context, id string) (*domain.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Business), args.Error(1)
}

func (m *mockBusinessRepository) List(ctx context.Context, filter repository.BusinessFilter) ([]domain.Business, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Business), args.Int(1), args.Error(2)
}

func (m *mockBusinessRepository) Update(ctx context.Context, b *domain.Business) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBusinessRepository) LinkReview(ctx context.Context, businessID, reviewID string) error {
	return m.Called(ctx, businessID, reviewID).Error(0)
}

func (m *mockBusinessRepository) UnlinkReview(ctx context.Context, businessID, reviewID string) error {
	return m.Called(ctx, businessID, reviewID).Error(0)
}

func (m *mockBusinessRepository) SetAverageRating(ctx context.Context, businessID string, rating float64) error {
	return m.Called(ctx, businessID, rating).Error(0)
}

func (m *mockBusinessRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Review, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewRepository) DeleteByBusiness(ctx context.Context, businessID string) error {
	return m.Called(ctx, businessID).Error(0)
}

// passthroughTx runs fn directly.
type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func mockStore(b *mockBusinessRepository, r *mockReviewRepository) *repository.Store {
	return &repository.Store{Businesses: b, Reviews: r, Tx: passthroughTx{}}
}

// --- Mock chat model ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}
