package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
)

const sseHeartbeat = 15 * time.Second

// triggerSync runs a manual full sync for the caller's account and returns its
// result. A sync already running for the account answers 409.
func (s *server) triggerSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := domain.GetAccountIDFromContext(ctx)

	result, err := s.Sync.FullSync(ctx, accountID, domain.TriggerManual)
	if err != nil {
		if result == nil || !partialFailure(err) {
			writeError(w, err)
			return
		}
		// the run reached the provider and was recorded; report both the partial result and the error
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"result": result,
			"error":  err.Error(),
			"kind":   domain.ErrorKind(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// partialFailure reports whether err broke a run midway. Integration and token
// errors keep their own status so callers can prompt re-authorization.
func partialFailure(err error) bool {
	switch domain.ErrorKind(err) {
	case "provider_api_error", "internal":
		return true
	}
	return false
}

func (s *server) pushCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mapping, err := s.Sync.PushCustomer(ctx, domain.GetAccountIDFromContext(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

func (s *server) syncHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := domain.SyncLogFilter{
		AccountID:  domain.GetAccountIDFromContext(ctx),
		Provider:   domain.Provider(q.Get("provider")),
		EntityType: domain.EntityType(q.Get("entity_type")),
		Status:     domain.SyncStatus(q.Get("status")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			writeBadRequest(w, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.History.History(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.SyncLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// syncEvents streams the caller's audit entries as Server-Sent Events.
func (s *server) syncEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}
	ctx := r.Context()

	filter := &pubsub.SyncEventFilter{AccountID: domain.GetAccountIDFromContext(ctx)}
	if v := r.URL.Query().Get("entity_types"); v != "" {
		for _, name := range strings.Split(v, ",") {
			filter.EntityTypes = append(filter.EntityTypes, domain.EntityType(strings.TrimSpace(name)))
		}
	}
	sub := s.Events.Subscribe(ctx, filter)
	defer s.Events.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case entry, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode sync event")
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: sync\ndata: %s\n\n", entry.ID, data)
			flusher.Flush()
		}
	}
}
