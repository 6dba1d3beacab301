// Package mongo is the MongoDB storage backend. Review mutations run in a
// multi-document transaction, which needs a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yelpclone/directory/pkg/database"

	"github.com/yelpclone/directory/internal/repository"
)

const (
	businessCollection = "businesses"
	reviewCollection   = "reviews"
)

// NewStore wires the Mongo repositories over db.
func NewStore(db *mongo.Database) *repository.Store {
	client := db.Client()
	return &repository.Store{
		Businesses: NewBusinessRepository(db),
		Reviews:    NewReviewRepository(db),
		Tx:         NewTransactor(client),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Close: client.Disconnect,
	}
}

// EnsureIndexes creates the unique slug index and the review owner index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) (err error) {
	ctx, end := database.TraceCommand(ctx, "createIndexes", businessCollection)
	defer func() { end(err) }()

	_, err = db.Collection(businessCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create business indexes: %w", err)
	}
	_, err = db.Collection(reviewCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "business_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create review indexes: %w", err)
	}
	return nil
}

// Transactor implements repository.Transactor with a client session.
type Transactor struct {
	client *mongo.Client
}

// NewTransactor creates a Transactor over client.
func NewTransactor(client *mongo.Client) *Transactor {
	return &Transactor{client: client}
}

// WithinTransaction runs fn in a session transaction. A nested call joins the
// session already carried by ctx. The driver retries fn on transient
// transaction errors, so fn must be safe to run more than once.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
