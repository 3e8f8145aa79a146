package metrics

import (
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes sync engine metrics. A nil *Recorder is a no-op.
type Recorder struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	entities      *prometheus.CounterVec
	tokenRefresh  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Full sync runs by provider, trigger and status.",
		}, []string{"provider", "trigger", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of full sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"provider"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_entities_total",
			Help: "Entities processed by entity type and status.",
		}, []string{"provider", "entity_type", "status"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "OAuth token refresh attempts.",
		}, []string{"provider", "status"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook entity notifications by outcome.",
		}, []string{"provider", "outcome"}),
	}
	reg.MustRegister(r.runs, r.runDuration, r.entities, r.tokenRefresh, r.webhookEvents)
	return r
}

func (r *Recorder) ObserveRun(provider domain.Provider, trigger domain.SyncTrigger, status domain.SyncStatus, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(string(provider), string(trigger), string(status)).Inc()
	r.runDuration.WithLabelValues(string(provider)).Observe(d.Seconds())
}

func (r *Recorder) IncEntity(provider domain.Provider, entityType domain.EntityType, status domain.SyncStatus) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(string(provider), string(entityType), string(status)).Inc()
}

func (r *Recorder) IncTokenRefresh(provider domain.Provider, ok bool) {
	if r == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	r.tokenRefresh.WithLabelValues(string(provider), status).Inc()
}

func (r *Recorder) IncWebhook(provider domain.Provider, outcome string) {
	if r == nil {
		return
	}
	r.webhookEvents.WithLabelValues(string(provider), outcome).Inc()
}

var _ ports.SyncMetrics = (*Recorder)(nil)
