package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/metrics"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

const validationTimeout = 10 * time.Second

// TokenManager hands out access tokens for QuickBooks integrations. The stored
// token is validated with a cheap company-info read; any failure triggers exactly
// one refresh, whose result is persisted before it is returned.
type TokenManager struct {
	integrations  ports.IntegrationRepository
	encryptionSvc ports.EncryptionService
	oauth         ports.OAuthClient
	httpClient    *http.Client
	baseURL       string
	metrics       *metrics.Recorder
	logger        zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTokenManager(
	integrations ports.IntegrationRepository,
	encryptionSvc ports.EncryptionService,
	oauth ports.OAuthClient,
	httpClient *http.Client,
	baseURL string,
	recorder *metrics.Recorder,
	logger zerolog.Logger,
) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		integrations:  integrations,
		encryptionSvc: encryptionSvc,
		oauth:         oauth,
		httpClient:    httpClient,
		baseURL:       baseURL,
		metrics:       recorder,
		logger:        logger,
		locks:         make(map[string]*sync.Mutex),
	}
}

// EncryptToken encrypts a token before storage
func (tm *TokenManager) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return tm.encryptionSvc.Encrypt(token)
}

// DecryptToken decrypts a stored token
func (tm *TokenManager) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", fmt.Errorf("encrypted token cannot be empty")
	}
	return tm.encryptionSvc.Decrypt(encryptedToken)
}

func (tm *TokenManager) accountLock(accountID string) *sync.Mutex {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	l, ok := tm.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		tm.locks[accountID] = l
	}
	return l
}

// GetValidAccessToken returns a usable access token for the account's active
// QuickBooks integration.
func (tm *TokenManager) GetValidAccessToken(ctx context.Context, accountID string) (string, error) {
	l := tm.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	integration, err := tm.integrations.GetActiveIntegration(ctx, accountID, domain.ProviderQuickBooks)
	if err != nil {
		return "", fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return "", domain.ErrIntegrationNotFound
	}
	if integration.AccessToken == "" {
		return "", domain.ErrNoAccessToken
	}

	accessToken, err := tm.DecryptToken(integration.AccessToken)
	if err != nil {
		// an undecryptable token is treated like a rejected one
		tm.logger.Warn().Err(err).Str("accountId", accountID).Msg("Failed to decrypt stored access token")
	} else if verr := tm.validate(ctx, integration.RealmID, accessToken); verr == nil {
		return accessToken, nil
	} else {
		tm.logger.Info().Err(verr).Str("accountId", accountID).Msg("Stored access token rejected, refreshing")
	}

	return tm.refresh(ctx, integration)
}

func (tm *TokenManager) refresh(ctx context.Context, integration *domain.Integration) (string, error) {
	if integration.RefreshToken == "" {
		tm.metrics.IncTokenRefresh(domain.ProviderQuickBooks, false)
		return "", fmt.Errorf("%w: no refresh token stored", domain.ErrTokenRefreshFailed)
	}
	refreshToken, err := tm.DecryptToken(integration.RefreshToken)
	if err != nil {
		tm.metrics.IncTokenRefresh(domain.ProviderQuickBooks, false)
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}

	pair, err := tm.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		tm.metrics.IncTokenRefresh(domain.ProviderQuickBooks, false)
		tm.logger.Warn().Err(err).Str("accountId", integration.AccountID).Msg("Token refresh failed, re-authorization required")
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	encAccess, err := tm.EncryptToken(pair.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := tm.EncryptToken(pair.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	if err := tm.integrations.UpdateTokens(ctx, integration.ID, encAccess, encRefresh); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	tm.metrics.IncTokenRefresh(domain.ProviderQuickBooks, true)
	tm.logger.Info().Str("accountId", integration.AccountID).Msg("Access token refreshed")
	return pair.AccessToken, nil
}

// validate reads company info, the cheapest authenticated endpoint.
func (tm *TokenManager) validate(ctx context.Context, realmID, token string) error {
	if realmID == "" {
		return errors.New("integration has no realm id")
	}
	ctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s", tm.baseURL, realmID, realmID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token validation returned status %d", resp.StatusCode)
	}
	return nil
}
