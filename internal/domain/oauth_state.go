package domain

import "time"

// OAuthState is the CSRF state kept between the authorization redirect and the callback.
type OAuthState struct {
	State     string    `json:"state"`
	AccountID string    `json:"account_id"`
	Provider  Provider  `json:"provider"`
	ReturnURL string    `json:"return_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
