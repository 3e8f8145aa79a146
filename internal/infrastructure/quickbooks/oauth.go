package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pestops-sync/internal/domain"

	"golang.org/x/oauth2"
)

const (
	intuitAuthURL   = "https://appcenter.intuit.com/connect/oauth2"
	intuitTokenURL  = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	intuitRevokeURL = "https://developer.api.intuit.com/v2/oauth2/tokens/revoke"

	ScopeAccounting = "com.intuit.quickbooks.accounting"
)

// OAuthConfig holds the app credentials registered with Intuit.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides, empty means Intuit production endpoints.
	AuthURL   string
	TokenURL  string
	RevokeURL string
}

// OAuthClient implements ports.OAuthClient with golang.org/x/oauth2.
type OAuthClient struct {
	cfg        *oauth2.Config
	revokeURL  string
	httpClient *http.Client
}

func NewOAuthClient(c OAuthConfig, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	authURL, tokenURL, revokeURL := c.AuthURL, c.TokenURL, c.RevokeURL
	if authURL == "" {
		authURL = intuitAuthURL
	}
	if tokenURL == "" {
		tokenURL = intuitTokenURL
	}
	if revokeURL == "" {
		revokeURL = intuitRevokeURL
	}
	return &OAuthClient{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{ScopeAccounting},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		revokeURL:  revokeURL,
		httpClient: httpClient,
	}
}

func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state)
}

func (c *OAuthClient) Exchange(ctx context.Context, code string) (*domain.TokenPair, error) {
	tok, err := c.cfg.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return toPair(tok), nil
}

// Refresh trades a refresh token for a new pair. Intuit rotates refresh tokens,
// so callers must persist both values.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	src := c.cfg.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return toPair(tok), nil
}

func (c *OAuthClient) Revoke(ctx context.Context, token string) error {
	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ProviderAPIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

func (c *OAuthClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toPair(tok *oauth2.Token) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
