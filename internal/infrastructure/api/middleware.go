package api

import (
	"net/http"

	"pestops-sync/internal/domain"

	"github.com/rs/zerolog"
)

// AccountHeader carries the account scope of API calls. Browser-initiated
// requests (OAuth start, EventSource) may pass it as the account_id query
// parameter instead.
const AccountHeader = "X-Account-ID"

func accountMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := r.Header.Get(AccountHeader)
			if accountID == "" {
				accountID = r.URL.Query().Get("account_id")
			}
			if accountID == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("Request without account scope")
				writeBadRequest(w, AccountHeader+" header is required")
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.WithAccountID(r.Context(), accountID)))
		})
	}
}
