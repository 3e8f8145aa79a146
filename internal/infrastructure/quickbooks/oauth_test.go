package quickbooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestOAuthRefreshUsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("basic auth=%v %q %q", ok, user, pass)
		}
		b, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(b))
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "rt-1" {
			t.Errorf("form=%v", form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-2","refresh_token":"rt-2","token_type":"bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example/callback",
		TokenURL:     srv.URL,
	}, srv.Client())

	pair, err := c.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken != "at-2" || pair.RefreshToken != "rt-2" {
		t.Fatalf("pair=%+v", pair)
	}
}

func TestOAuthRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL}, srv.Client())
	if _, err := c.Refresh(context.Background(), "bad"); err == nil {
		t.Fatalf("expected refresh error")
	}
}

func TestAuthCodeURL(t *testing.T) {
	c := NewOAuthClient(OAuthConfig{ClientID: "id", RedirectURL: "https://app.example/cb"}, nil)
	u := c.AuthCodeURL("state-123")
	if !strings.HasPrefix(u, intuitAuthURL) {
		t.Fatalf("url=%s", u)
	}
	for _, want := range []string{"state=state-123", "client_id=id", "scope=com.intuit.quickbooks.accounting"} {
		if !strings.Contains(u, want) {
			t.Fatalf("url %s missing %s", u, want)
		}
	}
}

func TestRevokePostsToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{ClientID: "id", ClientSecret: "s", RevokeURL: srv.URL}, srv.Client())
	if err := c.Revoke(context.Background(), "rt-9"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got != `{"token":"rt-9"}` {
		t.Fatalf("body=%s", got)
	}
}
