package quickbooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw body.
const SignatureHeader = "intuit-signature"

// WebhookVerifier checks Intuit webhook signatures against the app's verifier token.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(verifierToken string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(verifierToken)}
}

// Verify returns domain.ErrWebhookSignatureInvalid unless signature matches payload.
func (v *WebhookVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return domain.ErrWebhookSignatureInvalid
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return domain.ErrWebhookSignatureInvalid
	}
	if !hmac.Equal(got, v.sign(payload)) {
		return domain.ErrWebhookSignatureInvalid
	}
	return nil
}

// Sign returns the header value for payload.
func (v *WebhookVerifier) Sign(payload []byte) string {
	return base64.StdEncoding.EncodeToString(v.sign(payload))
}

func (v *WebhookVerifier) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

type webhookPayload struct {
	EventNotifications []struct {
		RealmID         string `json:"realmId"`
		DataChangeEvent struct {
			Entities []struct {
				Name        string `json:"name"`
				ID          string `json:"id"`
				Operation   string `json:"operation"`
				LastUpdated string `json:"lastUpdated"`
			} `json:"entities"`
		} `json:"dataChangeEvent"`
	} `json:"eventNotifications"`
}

// ParseWebhookPayload flattens a notification body into entity changes.
func ParseWebhookPayload(body []byte) ([]domain.EntityChange, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	var changes []domain.EntityChange
	for _, n := range p.EventNotifications {
		for _, e := range n.DataChangeEvent.Entities {
			c := domain.EntityChange{
				RealmID:    n.RealmID,
				EntityName: e.Name,
				EntityID:   e.ID,
				Operation:  domain.ChangeOperation(e.Operation),
			}
			if t, err := time.Parse(time.RFC3339, e.LastUpdated); err == nil {
				c.OccurredAt = &t
			}
			changes = append(changes, c)
		}
	}
	return changes, nil
}
