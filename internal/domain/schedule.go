package domain

import "time"

type SchedulePriority string

const (
	PriorityLow    SchedulePriority = "low"
	PriorityNormal SchedulePriority = "normal"
	PriorityHigh   SchedulePriority = "high"
)

// Rank orders priorities, higher first.
func (p SchedulePriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	}
	return 0
}

// ScheduleConfig is the recurring sync configuration of one provider.
type ScheduleConfig struct {
	Provider          Provider         `json:"provider"`
	Enabled           bool             `json:"enabled"`
	IntervalMinutes   int              `json:"interval_minutes"`
	BusinessHoursOnly bool             `json:"business_hours_only"`
	RetryAttempts     int              `json:"retry_attempts"`
	Priority          SchedulePriority `json:"priority"`
	LastRun           *time.Time       `json:"last_run,omitempty"`
	NextRun           *time.Time       `json:"next_run,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Interval returns the configured interval as a duration.
func (c *ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// DefaultScheduleConfig is used when no stored configuration exists.
func DefaultScheduleConfig(p Provider) *ScheduleConfig {
	return &ScheduleConfig{
		Provider:          p,
		Enabled:           true,
		IntervalMinutes:   60,
		BusinessHoursOnly: true,
		RetryAttempts:     2,
		Priority:          PriorityHigh,
	}
}

// ScheduleState is the lifecycle state of a provider schedule.
type ScheduleState string

const (
	ScheduleDisabled  ScheduleState = "disabled"
	ScheduleScheduled ScheduleState = "scheduled"
	ScheduleRunning   ScheduleState = "running"
)

// ScheduleStatus pairs a config with its live state.
type ScheduleStatus struct {
	Config *ScheduleConfig `json:"config"`
	State  ScheduleState   `json:"state"`
}

// BusinessHours is the weekday window in which gated schedules may run.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultBusinessHours is Monday to Friday, 07:00 to 19:00 local time.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{StartHour: 7, EndHour: 19, Location: time.Local}
}

// Contains reports whether t falls inside the window. The end hour is exclusive.
func (b BusinessHours) Contains(t time.Time) bool {
	if b.Location != nil {
		t = t.In(b.Location)
	}
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= b.StartHour && h < b.EndHour
}
