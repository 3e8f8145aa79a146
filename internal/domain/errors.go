package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIntegrationNotFound     = errors.New("integration not found")
	ErrNoAccessToken           = errors.New("integration has no access token")
	ErrTokenRefreshFailed      = errors.New("token refresh failed")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrUnmappedReference       = errors.New("referenced entity has no external mapping")
	ErrSyncInProgress          = errors.New("sync already in progress")
	ErrNotFound                = errors.New("not found")
	ErrInvalidOAuthState       = errors.New("invalid or expired oauth state")
	ErrInvalidConfig           = errors.New("invalid configuration")
)

// ProviderAPIError is a non-2xx response from the provider REST API.
type ProviderAPIError struct {
	StatusCode int
	Body       string
	Fault      string
}

func (e *ProviderAPIError) Error() string {
	if e.Fault != "" {
		return fmt.Sprintf("provider api error %d: %s", e.StatusCode, e.Fault)
	}
	return fmt.Sprintf("provider api error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether a retry may succeed: throttling and server errors.
func (e *ProviderAPIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable classifies err for the schedule controller's immediate retries.
// Configuration and authorization errors are terminal; provider 4xx are terminal;
// anything else (network, timeouts, 5xx, 429) may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrIntegrationNotFound),
		errors.Is(err, ErrNoAccessToken),
		errors.Is(err, ErrTokenRefreshFailed),
		errors.Is(err, ErrSyncInProgress),
		errors.Is(err, ErrUnmappedReference):
		return false
	}
	var apiErr *ProviderAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// ErrorKind returns a stable identifier for err, stored on audit entries.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrationNotFound):
		return "integration_not_found"
	case errors.Is(err, ErrNoAccessToken):
		return "no_access_token"
	case errors.Is(err, ErrTokenRefreshFailed):
		return "token_refresh_failed"
	case errors.Is(err, ErrUnmappedReference):
		return "unmapped_reference"
	case errors.Is(err, ErrSyncInProgress):
		return "sync_in_progress"
	}
	var apiErr *ProviderAPIError
	if errors.As(err, &apiErr) {
		return "provider_api_error"
	}
	return "internal"
}
