package domain

import "time"

// Provider identifies an external system connected through OAuth2.
type Provider string

const (
	ProviderQuickBooks Provider = "quickbooks"
)

// Valid reports whether p is a provider this service knows how to sync.
func (p Provider) Valid() bool {
	return p == ProviderQuickBooks
}

// Integration is the connection between one account and one provider.
// At most one active Integration exists per (account, provider). Revoking an
// integration clears its tokens and marks it inactive; rows are never removed so
// the sync history keeps its owner.
type Integration struct {
	ID           string                 `json:"id"`
	AccountID    string                 `json:"account_id"`
	Provider     Provider               `json:"provider"`
	AccessToken  string                 `json:"-"` // encrypted at rest
	RefreshToken string                 `json:"-"` // encrypted at rest
	RealmID      string                 `json:"realm_id"`
	IsActive     bool                   `json:"is_active"`
	LastSyncAt   *time.Time             `json:"last_sync_at,omitempty"`
	Settings     map[string]interface{} `json:"settings,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// TokenPair is the result of a code exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// IntegrationState is the user-facing connection state.
type IntegrationState string

const (
	IntegrationConnected            IntegrationState = "connected"
	IntegrationNotConnected         IntegrationState = "not_connected"
	IntegrationNeedsReauthorization IntegrationState = "needs_reauthorization"
)

// IntegrationStatus is the read-only projection returned to callers.
type IntegrationStatus struct {
	Provider   Provider         `json:"provider"`
	State      IntegrationState `json:"state"`
	RealmID    string           `json:"realm_id,omitempty"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
}
