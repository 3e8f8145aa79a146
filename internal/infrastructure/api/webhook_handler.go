package api

import (
	"io"
	"net/http"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/quickbooks"
)

// webhook authenticates the body before anything else touches it. Handler
// failures are in the audit log and still answer 200; only failures before
// dispatch ask the provider to redeliver.
func (s *server) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if err := s.Verifier.Verify(payload, r.Header.Get(quickbooks.SignatureHeader)); err != nil {
		s.logger.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("Webhook signature verification failed")
		s.incWebhook("invalid_signature")
		writeError(w, err)
		return
	}

	changes, err := quickbooks.ParseWebhookPayload(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Malformed webhook payload")
		s.incWebhook("malformed")
		writeBadRequest(w, "malformed payload")
		return
	}

	if err := s.Webhooks.Process(ctx, changes); err != nil {
		s.logger.Error().Err(err).Int("changes", len(changes)).Msg("Failed to process webhook")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": len(changes)})
}

func (s *server) incWebhook(outcome string) {
	if s.Metrics != nil {
		s.Metrics.IncWebhook(domain.ProviderQuickBooks, outcome)
	}
}
