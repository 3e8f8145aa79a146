package api

import (
	"context"
	"net/http"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/pubsub"
	"pestops-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SyncService runs on-demand syncs.
type SyncService interface {
	FullSync(ctx context.Context, accountID string, trigger domain.SyncTrigger) (*domain.SyncResult, error)
	PushCustomer(ctx context.Context, accountID, customerID string) (*domain.ExternalMapping, error)
}

// IntegrationService drives the OAuth connection lifecycle.
type IntegrationService interface {
	AuthorizationURL(ctx context.Context, accountID, returnURL string) (string, error)
	Connect(ctx context.Context, code, state, realmID string) (*domain.Integration, string, error)
	Revoke(ctx context.Context, accountID string) error
	Status(ctx context.Context, accountID string) (*domain.IntegrationStatus, error)
}

// Scheduler manages recurring provider syncs.
type Scheduler interface {
	Status() []domain.ScheduleStatus
	UpdateConfig(ctx context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error)
	Enable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error)
	Disable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error)
	TriggerNow(ctx context.Context, p domain.Provider) error
}

type Recommender interface {
	GenerateRecommendations(ctx context.Context) ([]domain.Recommendation, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, changes []domain.EntityChange) error
}

type HistoryReader interface {
	History(ctx context.Context, filter domain.SyncLogFilter) ([]*domain.SyncLogEntry, error)
}

// SignatureVerifier authenticates webhook bodies.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) error
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Sync         SyncService
	Integrations IntegrationService
	Schedules    Scheduler
	Recommender  Recommender
	Webhooks     WebhookProcessor
	History      HistoryReader
	Events       *pubsub.SyncEventPubSub
	Verifier     SignatureVerifier
	Metrics      ports.SyncMetrics
	Gatherer     prometheus.Gatherer

	AllowedOrigins   []string
	DefaultReturnURL string
	SwaggerFile      string
}

type server struct {
	Deps
	logger zerolog.Logger
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(d Deps, logger zerolog.Logger) http.Handler {
	if d.SwaggerFile == "" {
		d.SwaggerFile = "./docs/swagger.json"
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	s := &server{Deps: d, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", AccountHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if d.Events != nil {
			body["events"] = d.Events.Stats()
		}
		writeJSON(w, http.StatusOK, body)
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, d.SwaggerFile)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Get("/auth/quickbooks/callback", s.oauthCallback)
	r.With(accountMiddleware(logger)).Get("/auth/quickbooks", s.oauthStart)
	r.Post("/webhooks/quickbooks", s.webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(accountMiddleware(logger))

		r.Get("/integrations/quickbooks", s.integrationStatus)
		r.Delete("/integrations/quickbooks", s.revokeIntegration)

		r.Post("/sync/quickbooks", s.triggerSync)
		r.Post("/sync/quickbooks/customers/{id}/push", s.pushCustomer)
		r.Get("/sync/history", s.syncHistory)
		r.Get("/sync/events", s.syncEvents)

		r.Get("/schedules", s.listSchedules)
		r.Get("/schedules/recommendations", s.recommendations)
		r.Put("/schedules/{provider}", s.updateSchedule)
		r.Post("/schedules/{provider}/enable", s.enableSchedule)
		r.Post("/schedules/{provider}/disable", s.disableSchedule)
		r.Post("/schedules/{provider}/run", s.runSchedule)
	})

	return r
}
