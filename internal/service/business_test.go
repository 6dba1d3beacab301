package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/pagination"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/event"
)

func ptr[T any](v T) *T { return &v }

func TestCreateBusiness_Success(t *testing.T) {
	f := newFixture(t)

	b, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{
		Title:       "  Café Olé & Sons ",
		Location:    "Porto",
		Description: "Coffee",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Café Olé & Sons", b.Title)
	assert.Equal(t, "cafe-ole-and-sons", b.Slug)
	assert.Equal(t, 0.0, b.AverageRating)
	assert.Empty(t, b.ReviewIDs)
	assert.Equal(t, []string{event.TopicBusinessCreated}, f.events.Topics())
}

func TestCreateBusiness_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{
		Title:    "   ",
		Location: strings.Repeat("x", domain.MaxLocationLength+1),
	})
	require.Error(t, err)

	var valErr *validator.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields(), "title")
	assert.Contains(t, valErr.Fields(), "location")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Empty(t, f.events.Topics())
}

func TestCreateBusiness_SlugCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)

	first, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{Title: "Blue Door"})
	require.NoError(t, err)
	second, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{Title: "Blue Door"})
	require.NoError(t, err)

	assert.Equal(t, "blue-door", first.Slug)
	assert.True(t, strings.HasPrefix(second.Slug, "blue-door-"))
	assert.NotEqual(t, first.Slug, second.Slug)
}

func TestCreateBusiness_SlugExhaustedIsConflict(t *testing.T) {
	businesses := new(mockBusinessRepository)
	svc := NewBusinessService(mockStore(businesses, new(mockReviewRepository)), event.NewNoopProducer(discardLogger()), discardLogger())

	businesses.On("Create", mock.Anything, mock.AnythingOfType("*domain.Business")).
		Return(apperrors.AlreadyExists("business", "slug", "blue-door"))

	_, err := svc.CreateBusiness(context.Background(), BusinessFields{Title: "Blue Door"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	businesses.AssertNumberOfCalls(t, "Create", slugAttempts)
}

func TestCreateBusiness_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	b, err := f.businesses.CreateBusiness(context.Background(), BusinessFields{Title: "Blue Door"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
}

func TestGetBusiness_ByIDAndSlugWithReviewsInOrder(t *testing.T) {
	f := newFixture(t)
	created := f.createBusiness(t, "Blue Door", 4, 5, 3)

	byID, err := f.businesses.GetBusiness(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, byID.Reviews, 3)
	assert.Equal(t, 3, byID.ReviewCount)
	assert.Equal(t, []int{4, 5, 3}, []int{byID.Reviews[0].Rating, byID.Reviews[1].Rating, byID.Reviews[2].Rating})
	assert.Equal(t, 4.0, byID.AverageRating)

	bySlug, err := f.businesses.GetBusiness(context.Background(), "blue-door")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)
}

func TestGetBusiness_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.businesses.GetBusiness(context.Background(), uuid.New().String())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = f.businesses.GetBusinessForEdit(context.Background(), "no-such-slug")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListBusinesses_SearchAndPagination(t *testing.T) {
	f := newFixture(t)
	f.createBusiness(t, "Blue Door")
	f.createBusiness(t, "Red Lantern")
	f.createBusiness(t, "Blue Moon")

	got, total, err := f.businesses.ListBusinesses(context.Background(), pagination.Params{Page: 1, PerPage: 1, Search: "blue"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Contains(t, []string{"Blue Door", "Blue Moon"}, got[0].Title)

	got, total, err = f.businesses.ListBusinesses(context.Background(), pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, got, 3)
}

func TestUpdateBusiness_PartialAndSlugFollowsTitle(t *testing.T) {
	f := newFixture(t)
	created := f.createBusiness(t, "Blue Door", 5)

	updated, err := f.businesses.UpdateBusiness(context.Background(), created.ID, UpdateBusinessInput{
		Title: ptr("Green Door"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Green Door", updated.Title)
	assert.Equal(t, "green-door", updated.Slug)
	assert.Equal(t, "Lisbon", updated.Location)

	stored, err := f.businesses.GetBusiness(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.AverageRating)
	assert.Equal(t, created.ReviewIDs, stored.ReviewIDs)
	assert.Contains(t, f.events.Topics(), event.TopicBusinessUpdated)
}

func TestUpdateBusiness_CannotChangeRating(t *testing.T) {
	f := newFixture(t)
	created := f.createBusiness(t, "Blue Door", 4, 5)

	// Unknown JSON fields such as average_rating have no place in the input,
	// so an update can only touch title, location and description.
	_, err := f.businesses.UpdateBusiness(context.Background(), created.ID, UpdateBusinessInput{
		Description: ptr("new description"),
	})
	require.NoError(t, err)

	stored, err := f.businesses.GetBusiness(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, stored.AverageRating)
	assert.Len(t, stored.ReviewIDs, 2)
}

func TestUpdateBusiness_ValidationRerunOnWrite(t *testing.T) {
	f := newFixture(t)
	created := f.createBusiness(t, "Blue Door")

	_, err := f.businesses.UpdateBusiness(context.Background(), created.ID, UpdateBusinessInput{Title: ptr("")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	stored, err := f.businesses.GetBusinessForEdit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Door", stored.Title)
}

func TestUpdateBusiness_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.businesses.UpdateBusiness(context.Background(), uuid.New().String(), UpdateBusinessInput{Title: ptr("x")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = f.businesses.UpdateBusiness(context.Background(), "not-a-uuid", UpdateBusinessInput{Title: ptr("x")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDeleteBusiness_CascadesToReviews(t *testing.T) {
	f := newFixture(t)
	keep := f.createBusiness(t, "Keep", 2)
	gone := f.createBusiness(t, "Gone", 4, 5)

	require.NoError(t, f.businesses.DeleteBusiness(context.Background(), gone.ID))

	_, err := f.businesses.GetBusiness(context.Background(), gone.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.Equal(t, 1, f.businessCount(t))
	assert.ElementsMatch(t, keep.ReviewIDs, f.storedReviewIDs(t))
	assert.Contains(t, f.events.Topics(), event.TopicBusinessDeleted)
}

func TestDeleteBusiness_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.businesses.DeleteBusiness(context.Background(), uuid.New().String())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NotContains(t, f.events.Topics(), event.TopicBusinessDeleted)
}

func TestDeleteBusiness_ReviewDeleteFailureAbortsDelete(t *testing.T) {
	businesses := new(mockBusinessRepository)
	reviews := new(mockReviewRepository)
	svc := NewBusinessService(mockStore(businesses, reviews), event.NewNoopProducer(discardLogger()), discardLogger())
	id := uuid.New().String()

	businesses.On("GetForUpdate", mock.Anything, id).Return(&domain.Business{ID: id}, nil)
	reviews.On("DeleteByBusiness", mock.Anything, id).Return(errors.New("connection reset"))

	err := svc.DeleteBusiness(context.Background(), id)
	require.Error(t, err)
	businesses.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestListBusinesses_RepositoryError(t *testing.T) {
	businesses := new(mockBusinessRepository)
	svc := NewBusinessService(mockStore(businesses, new(mockReviewRepository)), event.NewNoopProducer(discardLogger()), discardLogger())

	businesses.On("List", mock.Anything, mock.Anything).Return([]domain.Business(nil), 0, errors.New("timeout"))

	_, _, err := svc.ListBusinesses(context.Background(), pagination.DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list businesses")
}

func TestNewBusinessForm(t *testing.T) {
	f := newFixture(t)
	form := f.businesses.NewBusinessForm()

	names := make([]string, 0, len(form))
	for _, field := range form {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"title", "location", "description"}, names)
}
