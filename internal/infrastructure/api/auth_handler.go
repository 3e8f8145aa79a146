package api

import (
	"errors"
	"net/http"
	"net/url"

	"pestops-sync/internal/domain"
)

// oauthStart redirects the browser to the provider consent screen.
func (s *server) oauthStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := domain.GetAccountIDFromContext(ctx)
	returnURL := r.URL.Query().Get("return_url")
	if returnURL == "" {
		returnURL = s.DefaultReturnURL
	}

	authURL, err := s.Integrations.AuthorizationURL(ctx, accountID, returnURL)
	if err != nil {
		s.logger.Error().Err(err).Str("accountId", accountID).Msg("Failed to start OAuth flow")
		writeError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// oauthCallback completes the flow and sends the browser back to the app.
func (s *server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		s.logger.Warn().Str("error", providerErr).Msg("Authorization declined")
		writeBadRequest(w, "authorization failed: "+providerErr)
		return
	}

	code, state, realmID := q.Get("code"), q.Get("state"), q.Get("realmId")
	if code == "" || state == "" || realmID == "" {
		writeBadRequest(w, "code, state and realmId are required")
		return
	}

	integration, returnURL, err := s.Integrations.Connect(ctx, code, state, realmID)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidOAuthState) {
			s.logger.Error().Err(err).Str("realmId", realmID).Msg("Failed to complete OAuth flow")
		}
		writeError(w, err)
		return
	}

	if returnURL == "" {
		returnURL = s.DefaultReturnURL
	}
	if returnURL == "" {
		writeJSON(w, http.StatusOK, integration)
		return
	}
	target, err := url.Parse(returnURL)
	if err != nil {
		writeBadRequest(w, "invalid return url")
		return
	}
	params := target.Query()
	params.Set("quickbooks_oauth", "success")
	params.Set("realm_id", integration.RealmID)
	target.RawQuery = params.Encode()

	s.logger.Info().Str("accountId", integration.AccountID).Msg("Redirecting after successful OAuth")
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *server) integrationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := s.Integrations.Status(ctx, domain.GetAccountIDFromContext(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) revokeIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Integrations.Revoke(ctx, domain.GetAccountIDFromContext(ctx)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
