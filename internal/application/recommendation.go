package application

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"

	"github.com/rs/zerolog"
)

const (
	recommendationWindow     = 7 * 24 * time.Hour
	recommendationSampleSize = 1000
	minRecommendedInterval   = 15
	defaultEstimatedDuration = 2 * time.Minute
)

// ScheduleConfigSource exposes the live schedule of a provider.
type ScheduleConfigSource interface {
	Config(p domain.Provider) *domain.ScheduleConfig
}

// RecommendationEngine suggests schedule intervals from recent run history.
// Suggestions are advisory only.
type RecommendationEngine struct {
	audit     *AuditLog
	schedules ScheduleConfigSource
	providers []domain.Provider
	now       func() time.Time
	logger    zerolog.Logger
}

func NewRecommendationEngine(audit *AuditLog, schedules ScheduleConfigSource, logger zerolog.Logger) *RecommendationEngine {
	return &RecommendationEngine{
		audit:     audit,
		schedules: schedules,
		providers: []domain.Provider{domain.ProviderQuickBooks},
		now:       time.Now,
		logger:    logger,
	}
}

// GenerateRecommendations returns one recommendation per known provider.
func (r *RecommendationEngine) GenerateRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	out := make([]domain.Recommendation, 0, len(r.providers))
	for _, p := range r.providers {
		cfg := r.schedules.Config(p)
		if cfg == nil {
			cfg = domain.DefaultScheduleConfig(p)
		}
		runs, err := r.audit.History(ctx, domain.SyncLogFilter{
			Provider:   p,
			EntityType: domain.EntityFullSync,
			Since:      r.now().Add(-recommendationWindow),
			Limit:      recommendationSampleSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load run history: %w", err)
		}
		out = append(out, recommend(cfg, runs))
	}
	return out, nil
}

func recommend(cfg *domain.ScheduleConfig, runs []*domain.SyncLogEntry) domain.Recommendation {
	var manual, scheduled int
	var total int64
	for _, e := range runs {
		switch e.Trigger {
		case domain.TriggerManual:
			manual++
		case domain.TriggerScheduled:
			scheduled++
		}
		total += e.DurationMs
	}

	rec := domain.Recommendation{
		Provider:            cfg.Provider,
		RecommendedInterval: cfg.IntervalMinutes,
		Reason:              "Current schedule matches usage",
		Confidence:          0.5,
		EstimatedDuration:   defaultEstimatedDuration,
	}
	if len(runs) > 0 {
		rec.EstimatedDuration = time.Duration(total/int64(len(runs))) * time.Millisecond
	}
	if manual >= 3 && manual > 2*scheduled {
		interval := cfg.IntervalMinutes / 2
		if interval < minRecommendedInterval {
			interval = minRecommendedInterval
		}
		if interval > cfg.IntervalMinutes {
			interval = cfg.IntervalMinutes
		}
		rec.RecommendedInterval = interval
		rec.Reason = fmt.Sprintf("%d manual syncs against %d scheduled in the last 7 days", manual, scheduled)
		rec.Confidence = 0.8
	}
	return rec
}
