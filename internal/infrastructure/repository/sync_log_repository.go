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

const defaultHistoryLimit = 100

// MongoSyncLogRepository implements SyncLogRepository using MongoDB. Entries are
// only ever inserted.
type MongoSyncLogRepository struct {
	collection *mongo.Collection
}

func NewMongoSyncLogRepository(db *mongo.Database) ports.SyncLogRepository {
	return &MongoSyncLogRepository{collection: db.Collection("sync_logs")}
}

func (r *MongoSyncLogRepository) AppendSyncLog(ctx context.Context, e *domain.SyncLogEntry) error {
	if e.ID == "" {
		e.ID = primitive.NewObjectID().Hex()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, entity.MongoSyncLogDocFromDomain(e)); err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

func (r *MongoSyncLogRepository) ListSyncLogs(ctx context.Context, f domain.SyncLogFilter) ([]*domain.SyncLogEntry, error) {
	filter := bson.M{}
	if f.AccountID != "" {
		filter["accountId"] = f.AccountID
	}
	if f.Provider != "" {
		filter["provider"] = string(f.Provider)
	}
	if f.EntityType != "" {
		filter["entityType"] = string(f.EntityType)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if !f.Since.IsZero() {
		filter["createdAt"] = bson.M{"$gte": f.Since}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.SyncLogEntry
	for cursor.Next(ctx) {
		var doc entity.MongoSyncLogDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode sync log: %w", err)
		}
		out = append(out, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
