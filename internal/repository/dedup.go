package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDedupWindow is the trailing period within which two submissions
// with the same canonical phone count as duplicates.
const DefaultDedupWindow = 24 * time.Hour

// DedupRepository looks up duplicate leads by canonical phone.
type DedupRepository interface {
	CheckDuplicate(ctx context.Context, phone string, excludeLeadID int64) (*int64, error)
}

// PGXDedupRepository implements DedupRepository using pgx.
type PGXDedupRepository struct {
	pool   pgxPool
	window time.Duration
	now    func() time.Time
}

// NewPGXDedupRepository wires a dedup repository with the given trailing
// window; window <= 0 falls back to DefaultDedupWindow.
func NewPGXDedupRepository(pool *pgxpool.Pool, window time.Duration) *PGXDedupRepository {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &PGXDedupRepository{pool: pool, window: window, now: time.Now}
}

// CheckDuplicate returns the id of the most recent lead with an equal
// canonical phone created within the window, excluding the current lead, or
// nil when there is none. An audit row is written in either case.
//
// The lookup and the caller's follow-up update are not covered by a lock;
// two near-simultaneous deliveries of one phone can both observe "no
// duplicate". That is the accepted best-effort behaviour, and the audit
// table is what makes it reconcilable after the fact.
func (r *PGXDedupRepository) CheckDuplicate(ctx context.Context, phone string, excludeLeadID int64) (*int64, error) {
	cutoff := r.now().Add(-r.window)

	row := r.pool.QueryRow(ctx, `
        SELECT id FROM leads
        WHERE phone = $1 AND id <> $2 AND created_at >= $3
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, phone, excludeLeadID, cutoff)

	var found *int64
	var id int64
	switch err := row.Scan(&id); {
	case err == nil:
		found = &id
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("query duplicate for %s: %w", phone, err)
	}

	var foundArg any
	if found != nil {
		foundArg = *found
	}
	if _, err := r.pool.Exec(ctx, `
        INSERT INTO duplicate_checks (lead_id, phone, found_duplicate_id)
        VALUES ($1, $2, $3)
    `, excludeLeadID, phone, foundArg); err != nil {
		return nil, fmt.Errorf("record duplicate check for lead %d: %w", excludeLeadID, err)
	}

	return found, nil
}
