package api

import (
	"context"
	"net/http"

	"pestops-sync/internal/domain"

	"github.com/go-chi/chi/v5"
)

type scheduleRequest struct {
	Enabled           bool                    `json:"enabled"`
	IntervalMinutes   int                     `json:"interval_minutes"`
	BusinessHoursOnly bool                    `json:"business_hours_only"`
	RetryAttempts     int                     `json:"retry_attempts"`
	Priority          domain.SchedulePriority `json:"priority"`
}

func (s *server) listSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Schedules.Status())
}

func (s *server) recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Recommender.GenerateRecommendations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func providerParam(w http.ResponseWriter, r *http.Request) (domain.Provider, bool) {
	p := domain.Provider(chi.URLParam(r, "provider"))
	if !p.Valid() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown provider " + string(p)})
		return "", false
	}
	return p, true
}

func (s *server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := readJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	cfg, err := s.Schedules.UpdateConfig(r.Context(), domain.ScheduleConfig{
		Provider:          p,
		Enabled:           req.Enabled,
		IntervalMinutes:   req.IntervalMinutes,
		BusinessHoursOnly: req.BusinessHoursOnly,
		RetryAttempts:     req.RetryAttempts,
		Priority:          req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *server) enableSchedule(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, s.Schedules.Enable)
}

func (s *server) disableSchedule(w http.ResponseWriter, r *http.Request) {
	s.toggleSchedule(w, r, s.Schedules.Disable)
}

func (s *server) toggleSchedule(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error)) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	cfg, err := fn(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// runSchedule runs one provider-wide cycle now. It blocks until the cycle ends.
func (s *server) runSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	if err := s.Schedules.TriggerNow(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
