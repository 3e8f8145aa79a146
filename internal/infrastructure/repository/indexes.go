package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. The unique mapping
// indexes are what keep internal and external ids 1:1 per scope.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	activeOnly := options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"isActive": true})

	indexes := map[string][]mongo.IndexModel{
		"integrations": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "provider", Value: 1}}, Options: activeOnly},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "realmId", Value: 1}}},
		},
		"external_mappings": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "provider", Value: 1}, {Key: "entityType", Value: 1}, {Key: "externalId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "provider", Value: 1}, {Key: "entityType", Value: 1}, {Key: "internalId", Value: 1}}, Options: unique},
		},
		"sync_logs": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "entityType", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"customers": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "name", Value: 1}}},
		},
		"products": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "name", Value: 1}}},
		},
		"invoices": {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "number", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
