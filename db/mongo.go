package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")

// Collection names.
const (
	UsersCollection       = "users"
	ProjectsCollection    = "projects"
	TiersCollection       = "tiers"
	MembershipsCollection = "memberships"
	ProductsCollection    = "products"
	OrdersCollection      = "orders"
)

// Index names checked when mapping duplicate-key errors.
const (
	UsernameIndex         = "users_username_key"
	EmailIndex            = "users_email_key"
	ActiveMembershipIndex = "memberships_active_key"
)

// ConnectMongo connects and pings, retrying while the server starts.
func ConnectMongo(ctx context.Context, url, database string, attempts int, interval time.Duration, log *logrus.Logger) (*mongo.Database, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(url).
				SetConnectTimeout(10 * time.Second).
				SetMaxPoolSize(100).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				return client.Database(database), nil
			}
			_ = client.Disconnect(ctx)
		}
		log.WithError(err).Warnf("mongo connection attempt %d failed", i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, ErrFailedToConnectToMongo
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(UsernameIndex)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(EmailIndex)},
		},
		ProjectsCollection: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		TiersCollection: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}}},
		},
		MembershipsCollection: {
			{
				Keys: bson.D{{Key: "supporter_id", Value: 1}, {Key: "creator_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName(ActiveMembershipIndex).
					SetPartialFilterExpression(bson.D{{Key: "status", Value: "active"}}),
			},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		ProductsCollection: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// MongoHealthcheck returns a ping function for /healthz.
func MongoHealthcheck(database *mongo.Database) func(context.Context) error {
	return func(ctx context.Context) error {
		return database.Client().Ping(ctx, nil)
	}
}
