package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ProviderSyncer runs one sync cycle for every account connected to a provider.
type ProviderSyncer interface {
	SyncProvider(ctx context.Context, provider domain.Provider, trigger domain.SyncTrigger, retryAttempts int) error
}

// ScheduleController owns one recurring timer per enabled provider. At most one
// cycle per provider runs at a time; a timer fire during a running cycle is
// skipped. Configuration is persisted so restarts keep the schedule.
type ScheduleController struct {
	repo      ports.ScheduleConfigRepository
	syncer    ProviderSyncer
	hours     domain.BusinessHours
	providers []domain.Provider
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	configs map[domain.Provider]*domain.ScheduleConfig
	entries map[domain.Provider]cron.EntryID
	running map[domain.Provider]bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduleController(
	repo ports.ScheduleConfigRepository,
	syncer ProviderSyncer,
	hours domain.BusinessHours,
	logger zerolog.Logger,
) *ScheduleController {
	return &ScheduleController{
		repo:      repo,
		syncer:    syncer,
		hours:     hours,
		providers: []domain.Provider{domain.ProviderQuickBooks},
		now:       time.Now,
		logger:    logger,
		configs:   make(map[domain.Provider]*domain.ScheduleConfig),
		entries:   make(map[domain.Provider]cron.EntryID),
		running:   make(map[domain.Provider]bool),
	}
}

// Start loads stored configs, seeding defaults for providers without one, and
// starts the timers of enabled providers.
func (c *ScheduleController) Start(ctx context.Context) error {
	configs := make(map[domain.Provider]*domain.ScheduleConfig, len(c.providers))
	for _, p := range c.providers {
		cfg, err := c.repo.GetScheduleConfig(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to load schedule config: %w", err)
		}
		if cfg == nil {
			cfg = domain.DefaultScheduleConfig(p)
			if err := c.repo.SaveScheduleConfig(ctx, cfg); err != nil {
				return fmt.Errorf("failed to seed schedule config: %w", err)
			}
			c.logger.Info().Str("provider", string(p)).Msg("Seeded default schedule config")
		}
		configs[p] = cfg
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("schedule controller already started")
	}
	loc := c.hours.Location
	if loc == nil {
		loc = time.Local
	}
	c.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger: c.logger})),
		cron.WithLogger(cronLogger{logger: c.logger}),
	)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.configs = configs
	var toSave []*domain.ScheduleConfig
	for _, p := range c.providers {
		if cfg := c.configs[p]; cfg.Enabled {
			c.scheduleLocked(p, cfg)
			toSave = append(toSave, c.snapshotLocked(p))
		}
	}
	c.started = true
	c.cron.Start()
	c.mu.Unlock()

	for _, cfg := range toSave {
		c.save(ctx, cfg)
	}
	c.logger.Info().Int("providers", len(c.providers)).Msg("Schedule controller started")
	return nil
}

// Stop halts all timers and waits for running cycles to finish or ctx to end.
func (c *ScheduleController) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	for p, id := range c.entries {
		c.cron.Remove(id)
		delete(c.entries, p)
	}
	done := c.cron.Stop()
	cancel := c.cancel
	c.mu.Unlock()

	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	cancel()
	c.logger.Info().Msg("Schedule controller stopped")
}

// scheduleLocked (re)creates the provider timer. c.mu must be held.
func (c *ScheduleController) scheduleLocked(p domain.Provider, cfg *domain.ScheduleConfig) {
	if id, ok := c.entries[p]; ok {
		c.cron.Remove(id)
		delete(c.entries, p)
	}
	if !cfg.Enabled || cfg.IntervalMinutes <= 0 {
		cfg.NextRun = nil
		return
	}
	ctx := c.ctx
	c.entries[p] = c.cron.Schedule(cron.Every(cfg.Interval()), cron.FuncJob(func() {
		c.fire(ctx, p)
	}))
	next := c.now().Add(cfg.Interval())
	cfg.NextRun = &next
}

func (c *ScheduleController) snapshotLocked(p domain.Provider) *domain.ScheduleConfig {
	cfg, ok := c.configs[p]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func (c *ScheduleController) save(ctx context.Context, cfg *domain.ScheduleConfig) {
	if cfg == nil {
		return
	}
	if err := c.repo.SaveScheduleConfig(ctx, cfg); err != nil {
		c.logger.Error().Err(err).Str("provider", string(cfg.Provider)).Msg("Failed to persist schedule config")
	}
}

// fire is the timer callback. Outside business hours a gated schedule only
// advances NextRun; nothing is synced and nothing is logged to the audit trail.
func (c *ScheduleController) fire(ctx context.Context, p domain.Provider) {
	if err := c.runCycle(ctx, p, true, domain.TriggerScheduled); err != nil && !errors.Is(err, errCycleSkipped) {
		c.logger.Error().Err(err).Str("provider", string(p)).Msg("Scheduled sync failed")
	}
}

var errCycleSkipped = errors.New("sync cycle skipped")

func (c *ScheduleController) runCycle(ctx context.Context, p domain.Provider, gated bool, trigger domain.SyncTrigger) error {
	c.mu.Lock()
	cfg, ok := c.configs[p]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidConfig, p)
	}
	if gated && !cfg.Enabled {
		c.mu.Unlock()
		return errCycleSkipped
	}

	now := c.now()
	next := now.Add(cfg.Interval())
	if gated && cfg.BusinessHoursOnly && !c.hours.Contains(now) {
		cfg.NextRun = &next
		snap := c.snapshotLocked(p)
		c.mu.Unlock()
		c.save(ctx, snap)
		c.logger.Debug().Str("provider", string(p)).Time("nextRun", next).Msg("Outside business hours, skipping scheduled sync")
		return errCycleSkipped
	}
	if c.running[p] {
		if !gated {
			c.mu.Unlock()
			return domain.ErrSyncInProgress
		}
		cfg.NextRun = &next
		snap := c.snapshotLocked(p)
		c.mu.Unlock()
		c.save(ctx, snap)
		c.logger.Info().Str("provider", string(p)).Time("nextRun", next).Msg("Sync cycle still running, skipping")
		return errCycleSkipped
	}

	c.running[p] = true
	cfg.LastRun = &now
	if gated {
		cfg.NextRun = &next
	}
	retries := cfg.RetryAttempts
	snap := c.snapshotLocked(p)
	c.mu.Unlock()
	c.save(ctx, snap)

	defer func() {
		c.mu.Lock()
		c.running[p] = false
		c.mu.Unlock()
	}()

	c.logger.Info().Str("provider", string(p)).Str("trigger", string(trigger)).Msg("Running sync cycle")
	return c.syncer.SyncProvider(ctx, p, trigger, retries)
}

// TriggerNow runs one cycle immediately, ignoring the business-hours gate.
func (c *ScheduleController) TriggerNow(ctx context.Context, p domain.Provider) error {
	return c.runCycle(ctx, p, false, domain.TriggerManual)
}

// UpdateConfig validates and stores cfg, restarting the provider timer when the
// controller is running.
func (c *ScheduleController) UpdateConfig(ctx context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error) {
	if !cfg.Provider.Valid() {
		return nil, fmt.Errorf("%w: unsupported provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
	if cfg.IntervalMinutes < 1 {
		return nil, fmt.Errorf("%w: interval must be at least 1 minute", domain.ErrInvalidConfig)
	}
	if cfg.RetryAttempts < 0 || cfg.RetryAttempts > 10 {
		return nil, fmt.Errorf("%w: retry attempts must be between 0 and 10", domain.ErrInvalidConfig)
	}
	switch cfg.Priority {
	case "":
		cfg.Priority = domain.PriorityNormal
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh:
	default:
		return nil, fmt.Errorf("%w: invalid priority %q", domain.ErrInvalidConfig, cfg.Priority)
	}

	c.mu.Lock()
	if existing, ok := c.configs[cfg.Provider]; ok {
		cfg.LastRun = existing.LastRun
	}
	stored := cfg
	stored.UpdatedAt = c.now()
	c.configs[cfg.Provider] = &stored
	if c.started {
		c.scheduleLocked(cfg.Provider, &stored)
	} else if !stored.Enabled {
		stored.NextRun = nil
	}
	snap := c.snapshotLocked(cfg.Provider)
	c.mu.Unlock()

	if err := c.repo.SaveScheduleConfig(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save schedule config: %w", err)
	}
	c.logger.Info().
		Str("provider", string(cfg.Provider)).
		Bool("enabled", cfg.Enabled).
		Int("intervalMinutes", cfg.IntervalMinutes).
		Msg("Schedule config updated")
	return snap, nil
}

// Enable turns the provider schedule on.
func (c *ScheduleController) Enable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error) {
	return c.setEnabled(ctx, p, true)
}

// Disable turns the provider schedule off. A running cycle finishes normally.
func (c *ScheduleController) Disable(ctx context.Context, p domain.Provider) (*domain.ScheduleConfig, error) {
	return c.setEnabled(ctx, p, false)
}

func (c *ScheduleController) setEnabled(ctx context.Context, p domain.Provider, enabled bool) (*domain.ScheduleConfig, error) {
	cfg := c.Config(p)
	if cfg == nil {
		cfg = domain.DefaultScheduleConfig(p)
	}
	cfg.Enabled = enabled
	return c.UpdateConfig(ctx, *cfg)
}

// Config returns a copy of the provider config, or nil when unknown.
func (c *ScheduleController) Config(p domain.Provider) *domain.ScheduleConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(p)
}

// Status reports every provider's config and lifecycle state.
func (c *ScheduleController) Status() []domain.ScheduleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ScheduleStatus, 0, len(c.providers))
	for _, p := range c.providers {
		cfg := c.snapshotLocked(p)
		if cfg == nil {
			continue
		}
		state := domain.ScheduleScheduled
		switch {
		case c.running[p]:
			state = domain.ScheduleRunning
		case !cfg.Enabled:
			state = domain.ScheduleDisabled
		}
		out = append(out, domain.ScheduleStatus{Config: cfg, State: state})
	}
	return out
}
