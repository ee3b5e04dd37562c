package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callpulse/lead-intake/internal/entity"
)

// SyncQueueRepository tracks leads awaiting downstream CRM sync.
type SyncQueueRepository interface {
	Enqueue(ctx context.Context, leadID int64) error
	ClaimNext(ctx context.Context) (*entity.SyncQueueEntry, error)
	MarkDone(ctx context.Context, entryID int64) error
	MarkFailed(ctx context.Context, entryID int64, nextAttemptAt time.Time, terminal bool) error
}

// PGXSyncQueueRepository implements SyncQueueRepository using pgx.
type PGXSyncQueueRepository struct {
	pool pgxPool
}

// NewPGXSyncQueueRepository wires a pgx backed sync queue repository.
func NewPGXSyncQueueRepository(pool *pgxpool.Pool) *PGXSyncQueueRepository {
	return &PGXSyncQueueRepository{pool: pool}
}

// Enqueue upserts the queue entry for a lead. Re-enqueueing an existing
// lead resets it to pending and makes it due immediately; it never creates
// a second row for the same lead.
func (r *PGXSyncQueueRepository) Enqueue(ctx context.Context, leadID int64) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO crm_sync_queue (lead_id, status, next_attempt_at)
        VALUES ($1, 'pending', NOW())
        ON CONFLICT (lead_id) DO UPDATE SET
            status = 'pending',
            next_attempt_at = NOW(),
            updated_at = NOW()
    `, leadID)
	if err != nil {
		return fmt.Errorf("enqueue lead %d for sync: %w", leadID, err)
	}
	return nil
}

// ClaimNext moves the oldest due pending entry to processing and returns it,
// or nil when nothing is due. SKIP LOCKED keeps concurrent workers off the
// same row.
func (r *PGXSyncQueueRepository) ClaimNext(ctx context.Context) (*entity.SyncQueueEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
        SELECT id, lead_id, status, attempts, next_attempt_at, created_at, updated_at
        FROM crm_sync_queue
        WHERE status = 'pending' AND next_attempt_at <= NOW()
        ORDER BY next_attempt_at
        LIMIT 1
        FOR UPDATE SKIP LOCKED
    `)

	var entry entity.SyncQueueEntry
	if err := row.Scan(&entry.ID, &entry.LeadID, &entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim sync queue entry: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE crm_sync_queue
        SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
        WHERE id = $1
    `, entry.ID); err != nil {
		return nil, fmt.Errorf("mark entry %d processing: %w", entry.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	entry.Status = entity.SyncProcessing
	entry.Attempts++
	return &entry, nil
}

// MarkDone finishes a claimed entry.
func (r *PGXSyncQueueRepository) MarkDone(ctx context.Context, entryID int64) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE crm_sync_queue SET status = 'done', updated_at = NOW() WHERE id = $1
    `, entryID)
	if err != nil {
		return fmt.Errorf("mark sync entry %d done: %w", entryID, err)
	}
	return nil
}

// MarkFailed reschedules a claimed entry for a later attempt, or parks it as
// terminally failed.
func (r *PGXSyncQueueRepository) MarkFailed(ctx context.Context, entryID int64, nextAttemptAt time.Time, terminal bool) error {
	status := "pending"
	if terminal {
		status = "failed"
	}
	_, err := r.pool.Exec(ctx, `
        UPDATE crm_sync_queue SET status = $2, next_attempt_at = $3, updated_at = NOW() WHERE id = $1
    `, entryID, status, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark sync entry %d failed: %w", entryID, err)
	}
	return nil
}
