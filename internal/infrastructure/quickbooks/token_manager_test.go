package quickbooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/encryption"
	"pestops-sync/internal/infrastructure/repository"
	"pestops-sync/internal/ports"

	"github.com/rs/zerolog"
)

type fakeOAuth struct {
	validRefresh string
	refreshes    int32
}

func (f *fakeOAuth) AuthCodeURL(state string) string { return "https://auth.example/?state=" + state }

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*domain.TokenPair, error) {
	return &domain.TokenPair{AccessToken: "exchanged", RefreshToken: "exchanged-refresh"}, nil
}

func (f *fakeOAuth) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	atomic.AddInt32(&f.refreshes, 1)
	if refreshToken != f.validRefresh {
		return nil, errors.New("invalid_grant")
	}
	return &domain.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
}

func (f *fakeOAuth) Revoke(ctx context.Context, token string) error { return nil }

// companyInfoServer accepts only the bearer token "new-access" or "good-access".
func companyInfoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/company/realm-1/companyinfo/realm-1" {
			http.NotFound(w, r)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good-access", "Bearer new-access":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"CompanyInfo":{"CompanyName":"Acme Pest"}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedIntegration(t *testing.T, store *repository.MemoryStore, enc ports.EncryptionService, access, refresh string) *domain.Integration {
	t.Helper()
	in := &domain.Integration{AccountID: "acct-1", Provider: domain.ProviderQuickBooks, RealmID: "realm-1"}
	if access != "" {
		in.AccessToken, _ = enc.Encrypt(access)
	}
	if refresh != "" {
		in.RefreshToken, _ = enc.Encrypt(refresh)
	}
	if err := store.UpsertIntegration(context.Background(), in); err != nil {
		t.Fatalf("UpsertIntegration: %v", err)
	}
	return in
}

func newTestTokenManager(t *testing.T, oauth ports.OAuthClient) (*TokenManager, *repository.MemoryStore, ports.EncryptionService) {
	t.Helper()
	store := repository.NewMemoryStore()
	enc, err := encryption.NewService("test-key")
	if err != nil {
		t.Fatalf("encryption: %v", err)
	}
	srv := companyInfoServer(t)
	tm := NewTokenManager(store, enc, oauth, srv.Client(), srv.URL, nil, zerolog.Nop())
	return tm, store, enc
}

func TestGetValidAccessTokenReturnsStoredTokenWhenValid(t *testing.T) {
	oauth := &fakeOAuth{validRefresh: "good-refresh"}
	tm, store, enc := newTestTokenManager(t, oauth)
	seedIntegration(t, store, enc, "good-access", "good-refresh")

	tok, err := tm.GetValidAccessToken(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if tok != "good-access" {
		t.Fatalf("token=%q want=good-access", tok)
	}
	if oauth.refreshes != 0 {
		t.Fatalf("refreshes=%d want=0", oauth.refreshes)
	}
}

func TestGetValidAccessTokenRefreshesRejectedToken(t *testing.T) {
	oauth := &fakeOAuth{validRefresh: "good-refresh"}
	tm, store, enc := newTestTokenManager(t, oauth)
	seedIntegration(t, store, enc, "expired-access", "good-refresh")

	tok, err := tm.GetValidAccessToken(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if tok != "new-access" {
		t.Fatalf("token=%q want=new-access", tok)
	}

	row, _ := store.GetActiveIntegration(context.Background(), "acct-1", domain.ProviderQuickBooks)
	access, _ := enc.Decrypt(row.AccessToken)
	refresh, _ := enc.Decrypt(row.RefreshToken)
	if access != "new-access" || refresh != "new-refresh" {
		t.Fatalf("stored tokens=%q/%q want=new-access/new-refresh", access, refresh)
	}
	if oauth.refreshes != 1 {
		t.Fatalf("refreshes=%d want=1", oauth.refreshes)
	}
}

func TestGetValidAccessTokenRefreshFailureLeavesTokensUntouched(t *testing.T) {
	oauth := &fakeOAuth{validRefresh: "good-refresh"}
	tm, store, enc := newTestTokenManager(t, oauth)
	before := seedIntegration(t, store, enc, "expired-access", "revoked-refresh")

	_, err := tm.GetValidAccessToken(context.Background(), "acct-1")
	if !errors.Is(err, domain.ErrTokenRefreshFailed) {
		t.Fatalf("err=%v want ErrTokenRefreshFailed", err)
	}

	row, _ := store.GetActiveIntegration(context.Background(), "acct-1", domain.ProviderQuickBooks)
	if row.AccessToken != before.AccessToken || row.RefreshToken != before.RefreshToken {
		t.Fatalf("stored tokens changed after failed refresh")
	}
	if oauth.refreshes != 1 {
		t.Fatalf("refreshes=%d want exactly 1", oauth.refreshes)
	}
}

func TestGetValidAccessTokenConfigurationErrors(t *testing.T) {
	tm, store, enc := newTestTokenManager(t, &fakeOAuth{})

	if _, err := tm.GetValidAccessToken(context.Background(), "acct-1"); !errors.Is(err, domain.ErrIntegrationNotFound) {
		t.Fatalf("err=%v want ErrIntegrationNotFound", err)
	}

	seedIntegration(t, store, enc, "", "")
	if _, err := tm.GetValidAccessToken(context.Background(), "acct-1"); !errors.Is(err, domain.ErrNoAccessToken) {
		t.Fatalf("err=%v want ErrNoAccessToken", err)
	}
}
