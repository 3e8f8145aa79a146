package entity

import (
	"time"

	"pestops-sync/internal/domain"
)

// MongoMappingDoc represents an external mapping in MongoDB
type MongoMappingDoc struct {
	ID           string    `bson:"_id"`
	AccountID    string    `bson:"accountId"`
	Provider     string    `bson:"provider"`
	EntityType   string    `bson:"entityType"`
	InternalID   string    `bson:"internalId"`
	ExternalID   string    `bson:"externalId"`
	SyncToken    string    `bson:"syncToken,omitempty"`
	LastSyncedAt time.Time `bson:"lastSyncedAt"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d *MongoMappingDoc) ToDomain() *domain.ExternalMapping {
	return &domain.ExternalMapping{
		ID:           d.ID,
		AccountID:    d.AccountID,
		Provider:     domain.Provider(d.Provider),
		EntityType:   domain.EntityType(d.EntityType),
		InternalID:   d.InternalID,
		ExternalID:   d.ExternalID,
		SyncToken:    d.SyncToken,
		LastSyncedAt: d.LastSyncedAt,
		CreatedAt:    d.CreatedAt,
	}
}

func MongoMappingDocFromDomain(m *domain.ExternalMapping) *MongoMappingDoc {
	return &MongoMappingDoc{
		ID:           m.ID,
		AccountID:    m.AccountID,
		Provider:     string(m.Provider),
		EntityType:   string(m.EntityType),
		InternalID:   m.InternalID,
		ExternalID:   m.ExternalID,
		SyncToken:    m.SyncToken,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
	}
}

// MongoSyncLogDoc represents an audit entry in MongoDB
type MongoSyncLogDoc struct {
	ID           string    `bson:"_id"`
	RunID        string    `bson:"runId,omitempty"`
	AccountID    string    `bson:"accountId"`
	Provider     string    `bson:"provider"`
	Operation    string    `bson:"operation"`
	EntityType   string    `bson:"entityType"`
	EntityID     string    `bson:"entityId,omitempty"`
	ExternalID   string    `bson:"externalId,omitempty"`
	Status       string    `bson:"status"`
	Direction    string    `bson:"direction"`
	Trigger      string    `bson:"trigger,omitempty"`
	Message      string    `bson:"message,omitempty"`
	ErrorMessage string    `bson:"errorMessage,omitempty"`
	ErrorKind    string    `bson:"errorKind,omitempty"`
	DurationMs   int64     `bson:"durationMs,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d *MongoSyncLogDoc) ToDomain() *domain.SyncLogEntry {
	return &domain.SyncLogEntry{
		ID:           d.ID,
		RunID:        d.RunID,
		AccountID:    d.AccountID,
		Provider:     domain.Provider(d.Provider),
		Operation:    domain.SyncOperation(d.Operation),
		EntityType:   domain.EntityType(d.EntityType),
		EntityID:     d.EntityID,
		ExternalID:   d.ExternalID,
		Status:       domain.SyncStatus(d.Status),
		Direction:    domain.SyncDirection(d.Direction),
		Trigger:      domain.SyncTrigger(d.Trigger),
		Message:      d.Message,
		ErrorMessage: d.ErrorMessage,
		ErrorKind:    d.ErrorKind,
		DurationMs:   d.DurationMs,
		CreatedAt:    d.CreatedAt,
	}
}

func MongoSyncLogDocFromDomain(e *domain.SyncLogEntry) *MongoSyncLogDoc {
	return &MongoSyncLogDoc{
		ID:           e.ID,
		RunID:        e.RunID,
		AccountID:    e.AccountID,
		Provider:     string(e.Provider),
		Operation:    string(e.Operation),
		EntityType:   string(e.EntityType),
		EntityID:     e.EntityID,
		ExternalID:   e.ExternalID,
		Status:       string(e.Status),
		Direction:    string(e.Direction),
		Trigger:      string(e.Trigger),
		Message:      e.Message,
		ErrorMessage: e.ErrorMessage,
		ErrorKind:    e.ErrorKind,
		DurationMs:   e.DurationMs,
		CreatedAt:    e.CreatedAt,
	}
}

// MongoScheduleDoc represents a provider schedule in MongoDB, keyed by provider.
type MongoScheduleDoc struct {
	Provider          string     `bson:"_id"`
	Enabled           bool       `bson:"enabled"`
	IntervalMinutes   int        `bson:"intervalMinutes"`
	BusinessHoursOnly bool       `bson:"businessHoursOnly"`
	RetryAttempts     int        `bson:"retryAttempts"`
	Priority          string     `bson:"priority"`
	LastRun           *time.Time `bson:"lastRun,omitempty"`
	NextRun           *time.Time `bson:"nextRun,omitempty"`
	UpdatedAt         time.Time  `bson:"updatedAt"`
}

func (d *MongoScheduleDoc) ToDomain() *domain.ScheduleConfig {
	return &domain.ScheduleConfig{
		Provider:          domain.Provider(d.Provider),
		Enabled:           d.Enabled,
		IntervalMinutes:   d.IntervalMinutes,
		BusinessHoursOnly: d.BusinessHoursOnly,
		RetryAttempts:     d.RetryAttempts,
		Priority:          domain.SchedulePriority(d.Priority),
		LastRun:           d.LastRun,
		NextRun:           d.NextRun,
		UpdatedAt:         d.UpdatedAt,
	}
}

func MongoScheduleDocFromDomain(c *domain.ScheduleConfig) *MongoScheduleDoc {
	return &MongoScheduleDoc{
		Provider:          string(c.Provider),
		Enabled:           c.Enabled,
		IntervalMinutes:   c.IntervalMinutes,
		BusinessHoursOnly: c.BusinessHoursOnly,
		RetryAttempts:     c.RetryAttempts,
		Priority:          string(c.Priority),
		LastRun:           c.LastRun,
		NextRun:           c.NextRun,
		UpdatedAt:         c.UpdatedAt,
	}
}
