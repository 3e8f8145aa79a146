package domain

import "time"

// MappingScope scopes an external mapping. Internal and external ids are each
// unique within one scope.
type MappingScope struct {
	AccountID  string
	Provider   Provider
	EntityType EntityType
}

// ExternalMapping links one internal row to its provider-side counterpart.
type ExternalMapping struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Provider     Provider   `json:"provider"`
	EntityType   EntityType `json:"entity_type"`
	InternalID   string     `json:"internal_id"`
	ExternalID   string     `json:"external_id"`
	SyncToken    string     `json:"sync_token,omitempty"`
	LastSyncedAt time.Time  `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Scope returns the scope the mapping belongs to.
func (m *ExternalMapping) Scope() MappingScope {
	return MappingScope{AccountID: m.AccountID, Provider: m.Provider, EntityType: m.EntityType}
}
