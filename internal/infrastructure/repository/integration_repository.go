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

// MongoIntegrationRepository implements IntegrationRepository using MongoDB
type MongoIntegrationRepository struct {
	collection *mongo.Collection
}

// NewMongoIntegrationRepository creates a new MongoDB integration repository
func NewMongoIntegrationRepository(db *mongo.Database) ports.IntegrationRepository {
	return &MongoIntegrationRepository{
		collection: db.Collection("integrations"),
	}
}

// UpsertIntegration keeps one active row per (account, provider).
func (r *MongoIntegrationRepository) UpsertIntegration(ctx context.Context, integration *domain.Integration) error {
	now := time.Now()
	doc := entity.MongoIntegrationDocFromDomain(integration)
	doc.IsActive = true
	doc.UpdatedAt = now

	filter := bson.M{
		"accountId": integration.AccountID,
		"provider":  string(integration.Provider),
		"isActive":  true,
	}
	update := bson.M{
		"$set": bson.M{
			"accessToken":  doc.AccessToken,
			"refreshToken": doc.RefreshToken,
			"realmId":      doc.RealmID,
			"isActive":     true,
			"settings":     doc.Settings,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"accountId": doc.AccountID,
			"provider":  doc.Provider,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved entity.MongoIntegrationDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	integration.ID = saved.ID.Hex()
	integration.IsActive = true
	integration.CreatedAt = saved.CreatedAt
	integration.UpdatedAt = saved.UpdatedAt
	return nil
}

func (r *MongoIntegrationRepository) findOne(ctx context.Context, filter bson.M) (*domain.Integration, error) {
	var doc entity.MongoIntegrationDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetActiveIntegration returns nil, nil when none exists
func (r *MongoIntegrationRepository) GetActiveIntegration(ctx context.Context, accountID string, provider domain.Provider) (*domain.Integration, error) {
	return r.findOne(ctx, bson.M{
		"accountId": accountID,
		"provider":  string(provider),
		"isActive":  true,
	})
}

func (r *MongoIntegrationRepository) GetIntegrationByRealm(ctx context.Context, provider domain.Provider, realmID string) (*domain.Integration, error) {
	return r.findOne(ctx, bson.M{
		"provider": string(provider),
		"realmId":  realmID,
		"isActive": true,
	})
}

func (r *MongoIntegrationRepository) ListActiveIntegrations(ctx context.Context, provider domain.Provider) ([]*domain.Integration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"provider": string(provider), "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.Integration
	for cursor.Next(ctx) {
		var doc entity.MongoIntegrationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode integration: %w", err)
		}
		out = append(out, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func (r *MongoIntegrationRepository) update(ctx context.Context, integrationID string, set bson.M) error {
	objID, err := primitive.ObjectIDFromHex(integrationID)
	if err != nil {
		return fmt.Errorf("invalid integration id %q: %w", integrationID, err)
	}
	set["updatedAt"] = time.Now()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}

func (r *MongoIntegrationRepository) UpdateTokens(ctx context.Context, integrationID string, accessToken, refreshToken string) error {
	return r.update(ctx, integrationID, bson.M{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (r *MongoIntegrationRepository) UpdateLastSync(ctx context.Context, integrationID string, at time.Time) error {
	return r.update(ctx, integrationID, bson.M{"lastSyncAt": at})
}

func (r *MongoIntegrationRepository) DeactivateIntegration(ctx context.Context, integrationID string) error {
	return r.update(ctx, integrationID, bson.M{
		"isActive":     false,
		"accessToken":  "",
		"refreshToken": "",
	})
}
