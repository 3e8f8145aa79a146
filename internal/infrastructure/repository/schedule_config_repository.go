package repository

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/repository/entity"
	"pestops-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoScheduleConfigRepository stores one schedule document per provider.
type MongoScheduleConfigRepository struct {
	collection *mongo.Collection
}

func NewMongoScheduleConfigRepository(db *mongo.Database) ports.ScheduleConfigRepository {
	return &MongoScheduleConfigRepository{collection: db.Collection("schedule_configs")}
}

// GetScheduleConfig returns nil, nil when the provider has no stored config.
func (r *MongoScheduleConfigRepository) GetScheduleConfig(ctx context.Context, provider domain.Provider) (*domain.ScheduleConfig, error) {
	var doc entity.MongoScheduleDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": string(provider)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule config: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoScheduleConfigRepository) SaveScheduleConfig(ctx context.Context, config *domain.ScheduleConfig) error {
	config.UpdatedAt = time.Now()
	doc := entity.MongoScheduleDocFromDomain(config)

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.Provider}, doc, opts); err != nil {
		return fmt.Errorf("failed to save schedule config: %w", err)
	}
	return nil
}

func (r *MongoScheduleConfigRepository) ListScheduleConfigs(ctx context.Context) ([]*domain.ScheduleConfig, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule configs: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.ScheduleConfig
	for cursor.Next(ctx) {
		var doc entity.MongoScheduleDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode schedule config: %w", err)
		}
		out = append(out, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
