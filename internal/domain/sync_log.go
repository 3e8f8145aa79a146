package domain

import "time"

type SyncOperation string

const (
	OperationPush    SyncOperation = "push"
	OperationPull    SyncOperation = "pull"
	OperationWebhook SyncOperation = "webhook"
)

type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusError   SyncStatus = "error"
	StatusPending SyncStatus = "pending"
)

type SyncDirection string

const (
	DirectionInbound       SyncDirection = "inbound"
	DirectionOutbound      SyncDirection = "outbound"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// SyncTrigger records what started a sync.
type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "manual"
	TriggerScheduled SyncTrigger = "scheduled"
	TriggerWebhook   SyncTrigger = "webhook"
)

// SyncLogEntry is one immutable audit record of a sync attempt.
type SyncLogEntry struct {
	ID           string        `json:"id"`
	RunID        string        `json:"run_id,omitempty"`
	AccountID    string        `json:"account_id"`
	Provider     Provider      `json:"provider"`
	Operation    SyncOperation `json:"operation"`
	EntityType   EntityType    `json:"entity_type"`
	EntityID     string        `json:"entity_id,omitempty"`
	ExternalID   string        `json:"external_id,omitempty"`
	Status       SyncStatus    `json:"status"`
	Direction    SyncDirection `json:"direction"`
	Trigger      SyncTrigger   `json:"trigger,omitempty"`
	Message      string        `json:"message,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	DurationMs   int64         `json:"duration_ms,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// IsRun reports whether the entry summarizes a whole full-sync run.
func (e *SyncLogEntry) IsRun() bool {
	return e.EntityType == EntityFullSync
}

// SyncLogFilter narrows a history query. Zero values mean "any".
type SyncLogFilter struct {
	AccountID  string
	Provider   Provider
	EntityType EntityType
	Status     SyncStatus
	Since      time.Time
	Limit      int
}

// SyncResult summarizes one FullSync call.
type SyncResult struct {
	RunID      string                      `json:"run_id"`
	AccountID  string                      `json:"account_id"`
	Provider   Provider                    `json:"provider"`
	Trigger    SyncTrigger                 `json:"trigger"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Phases     map[EntityType]*PhaseResult `json:"phases"`
}

// PhaseResult counts per-entity outcomes of one phase.
type PhaseResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Failed returns the total number of failed entities across all phases.
func (r *SyncResult) Failed() int {
	n := 0
	for _, p := range r.Phases {
		n += p.Failed
	}
	return n
}
