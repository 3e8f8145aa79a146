package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/repository"

	"github.com/rs/zerolog"
)

type fakeSyncer struct {
	mu      sync.Mutex
	calls   []domain.SyncTrigger
	retries []int
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSyncer) SyncProvider(ctx context.Context, p domain.Provider, trigger domain.SyncTrigger, retryAttempts int) error {
	f.mu.Lock()
	f.calls = append(f.calls, trigger)
	f.retries = append(f.retries, retryAttempts)
	started, release := f.started, f.release
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}
	return f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var utcHours = domain.BusinessHours{StartHour: 7, EndHour: 19, Location: time.UTC}

func newTestController(t *testing.T, now time.Time) (*ScheduleController, *repository.MemoryStore, *fakeSyncer) {
	t.Helper()
	store := repository.NewMemoryStore()
	syncer := &fakeSyncer{}
	c := NewScheduleController(store, syncer, utcHours, zerolog.Nop())
	c.now = func() time.Time { return now }
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c, store, syncer
}

// Wednesday 10:00 UTC and Saturday 10:00 UTC
var (
	weekdayMorning = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	saturday       = time.Date(2024, 5, 18, 10, 0, 0, 0, time.UTC)
)

func TestScheduleControllerSeedsDefaults(t *testing.T) {
	c, store, _ := newTestController(t, weekdayMorning)

	stored, _ := store.GetScheduleConfig(context.Background(), domain.ProviderQuickBooks)
	if stored == nil || !stored.Enabled || stored.IntervalMinutes != 60 {
		t.Fatalf("stored=%+v want seeded defaults", stored)
	}
	status := c.Status()
	if len(status) != 1 || status[0].State != domain.ScheduleScheduled {
		t.Fatalf("status=%+v", status)
	}
	want := weekdayMorning.Add(time.Hour)
	if next := status[0].Config.NextRun; next == nil || !next.Equal(want) {
		t.Fatalf("next run=%v want=%v", next, want)
	}
}

func TestScheduleControllerBusinessHoursGate(t *testing.T) {
	c, store, syncer := newTestController(t, saturday)

	c.fire(context.Background(), domain.ProviderQuickBooks)
	if n := syncer.callCount(); n != 0 {
		t.Fatalf("gated fire ran %d syncs", n)
	}
	stored, _ := store.GetScheduleConfig(context.Background(), domain.ProviderQuickBooks)
	want := saturday.Add(time.Hour)
	if stored.NextRun == nil || !stored.NextRun.Equal(want) {
		t.Fatalf("next run=%v want=%v", stored.NextRun, want)
	}
	if stored.LastRun != nil {
		t.Fatalf("gated fire set last run")
	}

	// manual runs ignore the gate
	if err := c.TriggerNow(context.Background(), domain.ProviderQuickBooks); err != nil {
		t.Fatalf("trigger now: %v", err)
	}
	if syncer.calls[0] != domain.TriggerManual || syncer.retries[0] != 2 {
		t.Fatalf("call=%v retries=%v", syncer.calls, syncer.retries)
	}
}

func TestScheduleControllerSkipsOverlappingRun(t *testing.T) {
	c, _, syncer := newTestController(t, weekdayMorning)
	syncer.started = make(chan struct{})
	syncer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- c.TriggerNow(context.Background(), domain.ProviderQuickBooks) }()
	<-syncer.started

	if s := c.Status(); s[0].State != domain.ScheduleRunning {
		t.Fatalf("state=%s want=running", s[0].State)
	}
	c.fire(context.Background(), domain.ProviderQuickBooks)
	if err := c.TriggerNow(context.Background(), domain.ProviderQuickBooks); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("err=%v want ErrSyncInProgress", err)
	}

	close(syncer.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if n := syncer.callCount(); n != 1 {
		t.Fatalf("runs=%d want=1", n)
	}
	if s := c.Status(); s[0].State != domain.ScheduleScheduled {
		t.Fatalf("state=%s want=scheduled", s[0].State)
	}
}

func TestScheduleControllerSkippedFireAdvancesNextRun(t *testing.T) {
	c, store, syncer := newTestController(t, weekdayMorning)
	syncer.started = make(chan struct{})
	syncer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- c.TriggerNow(context.Background(), domain.ProviderQuickBooks) }()
	<-syncer.started

	later := weekdayMorning.Add(90 * time.Minute)
	c.now = func() time.Time { return later }
	c.fire(context.Background(), domain.ProviderQuickBooks)

	want := later.Add(time.Hour)
	stored, _ := store.GetScheduleConfig(context.Background(), domain.ProviderQuickBooks)
	if stored.NextRun == nil || !stored.NextRun.Equal(want) {
		t.Fatalf("stored next run=%v want=%v", stored.NextRun, want)
	}
	if next := c.Config(domain.ProviderQuickBooks).NextRun; next == nil || !next.Equal(want) {
		t.Fatalf("next run=%v want=%v", next, want)
	}

	close(syncer.release)
	if err := <-done; err != nil {
		t.Fatalf("manual run: %v", err)
	}
	if n := syncer.callCount(); n != 1 {
		t.Fatalf("runs=%d want=1", n)
	}
}

func TestScheduleControllerFailedRunStaysEnabled(t *testing.T) {
	c, _, syncer := newTestController(t, weekdayMorning)
	syncer.err = errors.New("provider down")

	c.fire(context.Background(), domain.ProviderQuickBooks)
	if n := syncer.callCount(); n != 1 {
		t.Fatalf("runs=%d want=1", n)
	}
	cfg := c.Config(domain.ProviderQuickBooks)
	if !cfg.Enabled || cfg.LastRun == nil {
		t.Fatalf("config=%+v", cfg)
	}
}

func TestScheduleControllerUpdateConfig(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestController(t, weekdayMorning)

	cfg := *c.Config(domain.ProviderQuickBooks)
	cfg.IntervalMinutes = 30
	cfg.BusinessHoursOnly = false
	updated, err := c.UpdateConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := weekdayMorning.Add(30 * time.Minute)
	if updated.NextRun == nil || !updated.NextRun.Equal(want) {
		t.Fatalf("next run=%v want=%v", updated.NextRun, want)
	}
	if len(c.cron.Entries()) != 1 {
		t.Fatalf("cron entries=%d want=1", len(c.cron.Entries()))
	}
	stored, _ := store.GetScheduleConfig(ctx, domain.ProviderQuickBooks)
	if stored.IntervalMinutes != 30 || stored.BusinessHoursOnly {
		t.Fatalf("stored=%+v", stored)
	}

	if _, err := c.Disable(ctx, domain.ProviderQuickBooks); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if s := c.Status(); s[0].State != domain.ScheduleDisabled || s[0].Config.NextRun != nil {
		t.Fatalf("status=%+v", s[0])
	}
	if len(c.cron.Entries()) != 0 {
		t.Fatalf("cron entries=%d want=0", len(c.cron.Entries()))
	}

	if _, err := c.Enable(ctx, domain.ProviderQuickBooks); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if s := c.Status(); s[0].State != domain.ScheduleScheduled || s[0].Config.IntervalMinutes != 30 {
		t.Fatalf("status=%+v", s[0])
	}

	bad := cfg
	bad.IntervalMinutes = 0
	if _, err := c.UpdateConfig(ctx, bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestScheduleControllerDisabledFireIsNoop(t *testing.T) {
	ctx := context.Background()
	c, _, syncer := newTestController(t, weekdayMorning)
	if _, err := c.Disable(ctx, domain.ProviderQuickBooks); err != nil {
		t.Fatalf("disable: %v", err)
	}
	c.fire(ctx, domain.ProviderQuickBooks)
	if n := syncer.callCount(); n != 0 {
		t.Fatalf("runs=%d want=0", n)
	}
}

func TestScheduleControllerKeepsStoredConfig(t *testing.T) {
	store := repository.NewMemoryStore()
	stored := domain.DefaultScheduleConfig(domain.ProviderQuickBooks)
	stored.IntervalMinutes = 90
	stored.Enabled = false
	if err := store.SaveScheduleConfig(context.Background(), stored); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := NewScheduleController(store, &fakeSyncer{}, utcHours, zerolog.Nop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop(context.Background())

	cfg := c.Config(domain.ProviderQuickBooks)
	if cfg.IntervalMinutes != 90 || cfg.Enabled {
		t.Fatalf("config=%+v want stored values", cfg)
	}
}
