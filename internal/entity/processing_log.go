package entity

import (
	"encoding/json"
	"time"
)

// LogStep names a pipeline transition recorded for a lead.
type LogStep string

const (
	StepReceived     LogStep = "received"
	StepValidated    LogStep = "validated"
	StepDeduplicated LogStep = "deduplicated"
	StepNormalized   LogStep = "normalized"
	StepEnqueued     LogStep = "enqueued"
	StepError        LogStep = "error"
)

// LogStatus qualifies a processing log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogWarning LogStatus = "warning"
	LogError   LogStatus = "error"
)

// ProcessingLogEntry is an append-only record of one pipeline step for a lead.
// Entries are never updated or deleted; their creation order is the
// authoritative step order.
type ProcessingLogEntry struct {
	ID        int64           `json:"id"`
	LeadID    int64           `json:"lead_id"`
	Step      LogStep         `json:"step"`
	Status    LogStatus       `json:"status"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DuplicateCheck is the audit record of a single dedup lookup, written once
// per lead regardless of outcome.
type DuplicateCheck struct {
	ID               int64     `json:"id"`
	LeadID           int64     `json:"lead_id"`
	Phone            string    `json:"phone"`
	FoundDuplicateID *int64    `json:"found_duplicate_id,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}
