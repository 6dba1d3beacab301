package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yelpclone/directory/pkg/database"
	apperrors "github.com/yelpclone/directory/pkg/errors"

	"github.com/yelpclone/directory/internal/domain"
)

type reviewDoc struct {
	ID         string    `bson:"_id"`
	BusinessID string    `bson:"business_id"`
	Rating     int       `bson:"rating"`
	Body       string    `bson:"body"`
	Author     string    `bson:"author"`
	CreatedAt  time.Time `bson:"created_at"`
}

// ReviewRepository implements repository.ReviewRepository using MongoDB.
type ReviewRepository struct {
	coll *mongo.Collection
}

// NewReviewRepository creates a new Mongo-backed review repository.
func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{coll: db.Collection(reviewCollection)}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (err error) {
	ctx, end := database.TraceCommand(ctx, "insertReview", reviewCollection)
	defer func() { end(err) }()

	_, err = r.coll.InsertOne(ctx, reviewDoc{
		ID:         rv.ID,
		BusinessID: rv.BusinessID,
		Rating:     rv.Rating,
		Body:       rv.Body,
		Author:     rv.Author,
		CreatedAt:  rv.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetByIDs(ctx context.Context, ids []string) (_ []domain.Review, err error) {
	if len(ids) == 0 {
		return []domain.Review{}, nil
	}

	ctx, end := database.TraceCommand(ctx, "findReviews", reviewCollection)
	defer func() { end(err) }()

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	var docs []reviewDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		reviews = append(reviews, domain.Review{
			ID:         d.ID,
			BusinessID: d.BusinessID,
			Rating:     d.Rating,
			Body:       d.Body,
			Author:     d.Author,
			CreatedAt:  utc(d.CreatedAt),
		})
	}
	return reviews, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceCommand(ctx, "deleteReview", reviewCollection)
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

func (r *ReviewRepository) DeleteByBusiness(ctx context.Context, businessID string) (err error) {
	ctx, end := database.TraceCommand(ctx, "deleteReviewsOfBusiness", reviewCollection)
	defer func() { end(err) }()

	if _, err = r.coll.DeleteMany(ctx, bson.M{"business_id": businessID}); err != nil {
		return fmt.Errorf("delete reviews of business: %w", err)
	}
	return nil
}
