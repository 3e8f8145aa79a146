package repository

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/repository/entity"
	"pestops-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMappingRepository implements MappingRepository using MongoDB. Uniqueness of
// internal and external ids per scope is enforced by the indexes in EnsureIndexes.
type MongoMappingRepository struct {
	collection *mongo.Collection
}

func NewMongoMappingRepository(db *mongo.Database) ports.MappingRepository {
	return &MongoMappingRepository{collection: db.Collection("external_mappings")}
}

func scopeFilter(scope domain.MappingScope) bson.M {
	return bson.M{
		"accountId":  scope.AccountID,
		"provider":   string(scope.Provider),
		"entityType": string(scope.EntityType),
	}
}

func (r *MongoMappingRepository) findOne(ctx context.Context, filter bson.M) (*domain.ExternalMapping, error) {
	var doc entity.MongoMappingDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoMappingRepository) FindMappingByExternalID(ctx context.Context, scope domain.MappingScope, externalID string) (*domain.ExternalMapping, error) {
	filter := scopeFilter(scope)
	filter["externalId"] = externalID
	return r.findOne(ctx, filter)
}

func (r *MongoMappingRepository) FindMappingByInternalID(ctx context.Context, scope domain.MappingScope, internalID string) (*domain.ExternalMapping, error) {
	filter := scopeFilter(scope)
	filter["internalId"] = internalID
	return r.findOne(ctx, filter)
}

func (r *MongoMappingRepository) SaveMapping(ctx context.Context, mapping *domain.ExternalMapping) error {
	now := time.Now()
	if mapping.LastSyncedAt.IsZero() {
		mapping.LastSyncedAt = now
	}
	if mapping.ID == "" {
		mapping.ID = primitive.NewObjectID().Hex()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	doc := entity.MongoMappingDocFromDomain(mapping)

	filter := scopeFilter(mapping.Scope())
	filter["externalId"] = mapping.ExternalID
	update := bson.M{
		"$set": bson.M{
			"internalId":   doc.InternalID,
			"syncToken":    doc.SyncToken,
			"lastSyncedAt": doc.LastSyncedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        doc.ID,
			"accountId":  doc.AccountID,
			"provider":   doc.Provider,
			"entityType": doc.EntityType,
			"externalId": doc.ExternalID,
			"createdAt":  doc.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved entity.MongoMappingDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	mapping.ID = saved.ID
	mapping.CreatedAt = saved.CreatedAt
	return nil
}

func (r *MongoMappingRepository) ListMappings(ctx context.Context, scope domain.MappingScope) ([]*domain.ExternalMapping, error) {
	cursor, err := r.collection.Find(ctx, scopeFilter(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.ExternalMapping
	for cursor.Next(ctx) {
		var doc entity.MongoMappingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode mapping: %w", err)
		}
		out = append(out, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
