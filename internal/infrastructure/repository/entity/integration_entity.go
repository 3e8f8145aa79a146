package entity

import (
	"time"

	"pestops-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoIntegrationDoc represents an integration in MongoDB
type MongoIntegrationDoc struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty"`
	AccountID    string                 `bson:"accountId"`
	Provider     string                 `bson:"provider"`
	AccessToken  string                 `bson:"accessToken"`
	RefreshToken string                 `bson:"refreshToken"`
	RealmID      string                 `bson:"realmId"`
	IsActive     bool                   `bson:"isActive"`
	LastSyncAt   *time.Time             `bson:"lastSyncAt,omitempty"`
	Settings     map[string]interface{} `bson:"settings,omitempty"`
	CreatedAt    time.Time              `bson:"createdAt"`
	UpdatedAt    time.Time              `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoIntegrationDoc) ToDomain() *domain.Integration {
	return &domain.Integration{
		ID:           d.ID.Hex(),
		AccountID:    d.AccountID,
		Provider:     domain.Provider(d.Provider),
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		RealmID:      d.RealmID,
		IsActive:     d.IsActive,
		LastSyncAt:   d.LastSyncAt,
		Settings:     d.Settings,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoIntegrationDocFromDomain converts a domain entity to a MongoDB document
func MongoIntegrationDocFromDomain(integration *domain.Integration) *MongoIntegrationDoc {
	doc := &MongoIntegrationDoc{
		AccountID:    integration.AccountID,
		Provider:     string(integration.Provider),
		AccessToken:  integration.AccessToken,
		RefreshToken: integration.RefreshToken,
		RealmID:      integration.RealmID,
		IsActive:     integration.IsActive,
		LastSyncAt:   integration.LastSyncAt,
		Settings:     integration.Settings,
		CreatedAt:    integration.CreatedAt,
		UpdatedAt:    integration.UpdatedAt,
	}

	if integration.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(integration.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
