package entity

import "time"

// SyncStatus tracks a sync queue entry through the CRM push lifecycle.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncProcessing SyncStatus = "processing"
	SyncDone       SyncStatus = "done"
	SyncFailed     SyncStatus = "failed"
)

// SyncQueueEntry marks a lead awaiting downstream CRM sync. There is at most
// one entry per lead; re-enqueueing resets the existing row to pending.
type SyncQueueEntry struct {
	ID            int64      `json:"id"`
	LeadID        int64      `json:"lead_id"`
	Status        SyncStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
