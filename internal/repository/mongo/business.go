package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yelpclone/directory/pkg/database"
	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/pagination"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
)

type businessDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Slug          string    `bson:"slug"`
	Location      string    `bson:"location"`
	Description   string    `bson:"description"`
	ReviewIDs     []string  `bson:"review_ids"`
	AverageRating float64   `bson:"average_rating"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
	// LockVersion is bumped by GetForUpdate so that the document takes a
	// write lock inside the transaction.
	LockVersion int64 `bson:"lock_version"`
}

func toBusinessDoc(b *domain.Business) businessDoc {
	ids := b.ReviewIDs
	if ids == nil {
		ids = []string{}
	}
	return businessDoc{
		ID:            b.ID,
		Title:         b.Title,
		Slug:          b.Slug,
		Location:      b.Location,
		Description:   b.Description,
		ReviewIDs:     ids,
		AverageRating: b.AverageRating,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func (d businessDoc) toDomain() *domain.Business {
	ids := d.ReviewIDs
	if ids == nil {
		ids = []string{}
	}
	return &domain.Business{
		ID:            d.ID,
		Title:         d.Title,
		Slug:          d.Slug,
		Location:      d.Location,
		Description:   d.Description,
		ReviewIDs:     ids,
		AverageRating: d.AverageRating,
		CreatedAt:     utc(d.CreatedAt),
		UpdatedAt:     utc(d.UpdatedAt),
	}
}

// BusinessRepository implements repository.BusinessRepository using MongoDB.
type BusinessRepository struct {
	coll *mongo.Collection
}

// NewBusinessRepository creates a new Mongo-backed business repository.
func NewBusinessRepository(db *mongo.Database) *BusinessRepository {
	return &BusinessRepository{coll: db.Collection(businessCollection)}
}

func (r *BusinessRepository) Create(ctx context.Context, b *domain.Business) (err error) {
	ctx, end := database.TraceCommand(ctx, "insertBusiness", businessCollection)
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, toBusinessDoc(b)); err != nil {
		if isDuplicateKey(err) {
			return apperrors.AlreadyExists("business", "slug", b.Slug)
		}
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	return r.findOne(ctx, "findBusiness", id, bson.M{"_id": id})
}

func (r *BusinessRepository) GetBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	return r.findOne(ctx, "findBusinessBySlug", slug, bson.M{"slug": slug})
}

// GetForUpdate bumps lock_version so that concurrent transactions touching
// the same business conflict and one of them is retried.
func (r *BusinessRepository) GetForUpdate(ctx context.Context, id string) (_ *domain.Business, err error) {
	ctx, end := database.TraceCommand(ctx, "lockBusiness", businessCollection)
	defer func() { end(err) }()

	var doc businessDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.NotFound("business", id)
		}
		return nil, fmt.Errorf("lock business: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *BusinessRepository) List(ctx context.Context, filter repository.BusinessFilter) (_ []domain.Business, _ int, err error) {
	ctx, end := database.TraceCommand(ctx, "listBusinesses", businessCollection)
	defer func() { end(err) }()

	p := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalized()

	query := bson.M{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
		query["$or"] = bson.A{bson.M{"title": pattern}, bson.M{"location": pattern}}
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count businesses: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit()))
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find businesses: %w", err)
	}
	var docs []businessDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode businesses: %w", err)
	}

	businesses := make([]domain.Business, 0, len(docs))
	for _, d := range docs {
		businesses = append(businesses, *d.toDomain())
	}
	return businesses, int(total), nil
}

func (r *BusinessRepository) Update(ctx context.Context, b *domain.Business) (err error) {
	ctx, end := database.TraceCommand(ctx, "updateBusiness", businessCollection)
	defer func() { end(err) }()

	b.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": b.ID}, bson.M{"$set": bson.M{
		"title":       b.Title,
		"slug":        b.Slug,
		"location":    b.Location,
		"description": b.Description,
		"updated_at":  b.UpdatedAt,
	}})
	if err != nil {
		if isDuplicateKey(err) {
			return apperrors.AlreadyExists("business", "slug", b.Slug)
		}
		return fmt.Errorf("update business: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("business", b.ID)
	}
	return nil
}

func (r *BusinessRepository) LinkReview(ctx context.Context, businessID, reviewID string) (err error) {
	ctx, end := database.TraceCommand(ctx, "linkReview", businessCollection)
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": businessID},
		bson.M{"$push": bson.M{"review_ids": reviewID}},
	)
	if err != nil {
		return fmt.Errorf("link review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("business", businessID)
	}
	return nil
}

func (r *BusinessRepository) UnlinkReview(ctx context.Context, businessID, reviewID string) (err error) {
	ctx, end := database.TraceCommand(ctx, "unlinkReview", businessCollection)
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": businessID, "review_ids": reviewID},
		bson.M{"$pull": bson.M{"review_ids": reviewID}},
	)
	if err != nil {
		return fmt.Errorf("unlink review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("review", reviewID)
	}
	return nil
}

func (r *BusinessRepository) SetAverageRating(ctx context.Context, businessID string, rating float64) (err error) {
	ctx, end := database.TraceCommand(ctx, "setAverageRating", businessCollection)
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": businessID},
		bson.M{"$set": bson.M{"average_rating": rating}},
	)
	if err != nil {
		return fmt.Errorf("set average rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("business", businessID)
	}
	return nil
}

func (r *BusinessRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceCommand(ctx, "deleteBusiness", businessCollection)
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("business", id)
	}
	return nil
}

func (r *BusinessRepository) findOne(ctx context.Context, op, key string, filter bson.M) (_ *domain.Business, err error) {
	ctx, end := database.TraceCommand(ctx, op, businessCollection)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var doc businessDoc
	if err = r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.NotFound("business", key)
		}
		return nil, fmt.Errorf("find business: %w", err)
	}
	return doc.toDomain(), nil
}
