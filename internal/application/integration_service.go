package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	oauthStateTTL    = 10 * time.Minute
	oauthStatePrefix = "oauth_state:"
)

// IntegrationService handles the OAuth connection lifecycle of an account.
type IntegrationService struct {
	provider      domain.Provider
	integrations  ports.IntegrationRepository
	oauth         ports.OAuthClient
	encryptionSvc ports.EncryptionService
	states        ports.KeyValueStore
	audit         *AuditLog
	now           func() time.Time
	logger        zerolog.Logger
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(
	integrations ports.IntegrationRepository,
	oauth ports.OAuthClient,
	encryptionSvc ports.EncryptionService,
	states ports.KeyValueStore,
	audit *AuditLog,
	logger zerolog.Logger,
) *IntegrationService {
	return &IntegrationService{
		provider:      domain.ProviderQuickBooks,
		integrations:  integrations,
		oauth:         oauth,
		encryptionSvc: encryptionSvc,
		states:        states,
		audit:         audit,
		now:           time.Now,
		logger:        logger,
	}
}

// AuthorizationURL starts the OAuth flow for an account. The returned URL
// carries a one-time state that Connect consumes.
func (s *IntegrationService) AuthorizationURL(ctx context.Context, accountID, returnURL string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("account id is required")
	}
	state := &domain.OAuthState{
		State:     uuid.NewString(),
		AccountID: accountID,
		Provider:  s.provider,
		ReturnURL: returnURL,
		ExpiresAt: s.now().Add(oauthStateTTL),
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode oauth state: %w", err)
	}
	if err := s.states.Set(ctx, oauthStatePrefix+state.State, raw, oauthStateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state.State), nil
}

// Connect completes the OAuth flow: it consumes the state, exchanges the code
// and stores the encrypted tokens on the account's single active integration.
func (s *IntegrationService) Connect(ctx context.Context, code, state, realmID string) (*domain.Integration, string, error) {
	pending, err := s.consumeState(ctx, state)
	if err != nil {
		return nil, "", err
	}
	if code == "" || realmID == "" {
		return nil, "", fmt.Errorf("authorization code and realm id are required")
	}

	tokens, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	access, err := s.encryptionSvc.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := s.encryptionSvc.Encrypt(tokens.RefreshToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := s.now()
	integration := &domain.Integration{
		AccountID:    pending.AccountID,
		Provider:     s.provider,
		AccessToken:  access,
		RefreshToken: refresh,
		RealmID:      realmID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return nil, "", fmt.Errorf("failed to save integration: %w", err)
	}

	s.logger.Info().
		Str("accountId", pending.AccountID).
		Str("realmId", realmID).
		Msg("Integration connected")
	return integration, pending.ReturnURL, nil
}

func (s *IntegrationService) consumeState(ctx context.Context, state string) (*domain.OAuthState, error) {
	if state == "" {
		return nil, domain.ErrInvalidOAuthState
	}
	key := oauthStatePrefix + state
	raw, found, err := s.states.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth state: %w", err)
	}
	if !found {
		return nil, domain.ErrInvalidOAuthState
	}
	if err := s.states.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to delete oauth state")
	}

	var pending domain.OAuthState
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOAuthState, err)
	}
	if pending.AccountID == "" || s.now().After(pending.ExpiresAt) {
		return nil, domain.ErrInvalidOAuthState
	}
	return &pending, nil
}

// Revoke disconnects the account. The provider-side revoke is best effort; the
// local integration is always deactivated and its tokens cleared.
func (s *IntegrationService) Revoke(ctx context.Context, accountID string) error {
	integration, err := s.integrations.GetActiveIntegration(ctx, accountID, s.provider)
	if err != nil {
		return fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return domain.ErrIntegrationNotFound
	}

	log := s.logger.With().Str("accountId", accountID).Logger()
	if integration.RefreshToken != "" {
		token, err := s.encryptionSvc.Decrypt(integration.RefreshToken)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to decrypt refresh token, skipping provider revoke")
		} else if err := s.oauth.Revoke(ctx, token); err != nil {
			log.Warn().Err(err).Msg("Provider token revoke failed")
		}
	}

	if err := s.integrations.DeactivateIntegration(ctx, integration.ID); err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}
	log.Info().Msg("Integration revoked")
	return nil
}

// Status reports whether the account is connected. An integration whose last
// recorded failure was a terminal token problem needs reauthorization.
func (s *IntegrationService) Status(ctx context.Context, accountID string) (*domain.IntegrationStatus, error) {
	integration, err := s.integrations.GetActiveIntegration(ctx, accountID, s.provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	status := &domain.IntegrationStatus{Provider: s.provider, State: domain.IntegrationNotConnected}
	if integration == nil {
		return status, nil
	}
	status.State = domain.IntegrationConnected
	status.RealmID = integration.RealmID
	status.LastSyncAt = integration.LastSyncAt

	if integration.AccessToken == "" {
		status.State = domain.IntegrationNeedsReauthorization
		return status, nil
	}
	latest, err := s.audit.History(ctx, domain.SyncLogFilter{AccountID: accountID, Provider: s.provider, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}
	if len(latest) == 1 && latest[0].Status == domain.StatusError && needsReauthorization(latest[0].ErrorKind) {
		status.State = domain.IntegrationNeedsReauthorization
		status.LastError = latest[0].ErrorMessage
	}
	return status, nil
}

func needsReauthorization(kind string) bool {
	return kind == domain.ErrorKind(domain.ErrTokenRefreshFailed) || kind == domain.ErrorKind(domain.ErrNoAccessToken)
}
