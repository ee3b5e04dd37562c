package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callpulse/lead-intake/internal/dto"
	"github.com/callpulse/lead-intake/internal/entity"
)

// ErrLeadNotFound is returned when no lead matches the lookup criteria.
var ErrLeadNotFound = errors.New("lead not found")

// leadColumns whitelists the columns UpdateLead may touch.
var leadColumns = map[string]struct{}{
	"phone":             {},
	"phone_raw":         {},
	"name":              {},
	"email":             {},
	"fields":            {},
	"status":            {},
	"validation_status": {},
	"is_duplicate":      {},
	"duplicate_of_id":   {},
}

// LeadsRepository describes persistence operations for leads and their
// processing log. Every operation is safe to repeat for the same lead id;
// idempotency of the pipeline is the orchestrator's concern.
type LeadsRepository interface {
	SaveRawLead(ctx context.Context, source entity.LeadSource, rawPayload []byte, phoneRaw string) (int64, error)
	UpdateLead(ctx context.Context, id int64, fields map[string]any) error
	AppendLog(ctx context.Context, leadID int64, step entity.LogStep, status entity.LogStatus, message string, details map[string]any) error
	FindByID(ctx context.Context, id int64) (*entity.Lead, error)
	List(ctx context.Context, filter dto.LeadFilter) ([]entity.Lead, error)
	ListLog(ctx context.Context, leadID int64) ([]entity.ProcessingLogEntry, error)
	ListDuplicateChecks(ctx context.Context, leadID int64) ([]entity.DuplicateCheck, error)
}

// PGXLeadsRepository implements LeadsRepository using pgx.
type PGXLeadsRepository struct {
	pool pgxPool
}

// NewPGXLeadsRepository wires a pgx backed leads repository.
func NewPGXLeadsRepository(pool *pgxpool.Pool) *PGXLeadsRepository {
	return &PGXLeadsRepository{pool: pool}
}

// SaveRawLead inserts a lead with only pre-validation fields populated and
// returns the generated id.
func (r *PGXLeadsRepository) SaveRawLead(ctx context.Context, source entity.LeadSource, rawPayload []byte, phoneRaw string) (int64, error) {
	if len(rawPayload) == 0 {
		rawPayload = []byte("{}")
	}

	var phoneRawArg any
	if phoneRaw != "" {
		phoneRawArg = phoneRaw
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO leads (source, raw_payload, phone_raw, status, validation_status)
        VALUES ($1, $2, $3, 'new', 'pending')
        RETURNING id
    `, string(source), rawPayload, phoneRawArg)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert raw lead: %w", err)
	}
	return id, nil
}

// UpdateLead patches the supplied columns and stamps updated_at. An empty
// field map is a no-op.
func (r *PGXLeadsRepository) UpdateLead(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	idx := 1

	// Sorted keys keep the generated SQL stable for logs and tests.
	for _, column := range sortedKeys(fields) {
		if _, ok := leadColumns[column]; !ok {
			return fmt.Errorf("update lead: column %q is not updatable", column)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, fields[column])
		idx++
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), idx)

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// AppendLog writes one immutable processing log entry.
func (r *PGXLeadsRepository) AppendLog(ctx context.Context, leadID int64, step entity.LogStep, status entity.LogStatus, message string, details map[string]any) error {
	var detailsArg any
	if len(details) > 0 {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode log details: %w", err)
		}
		detailsArg = encoded
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO lead_processing_log (lead_id, step, status, message, details)
        VALUES ($1, $2, $3, $4, $5)
    `, leadID, string(step), string(status), message, detailsArg)
	if err != nil {
		return fmt.Errorf("append processing log for lead %d: %w", leadID, err)
	}
	return nil
}

const leadSelectColumns = `
        id, source, raw_payload, phone_raw, phone, name, email, fields,
        status, validation_status, is_duplicate, duplicate_of_id,
        created_at, updated_at
`

// FindByID retrieves a single lead.
func (r *PGXLeadsRepository) FindByID(ctx context.Context, id int64) (*entity.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadSelectColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("query lead by id: %w", err)
	}
	return lead, nil
}

// List retrieves leads matching the filter, newest first.
func (r *PGXLeadsRepository) List(ctx context.Context, filter dto.LeadFilter) ([]entity.Lead, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + leadSelectColumns + ` FROM leads`)

	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Source != "" {
		clauses = append(clauses, fmt.Sprintf("source = $%d", idx))
		args = append(args, filter.Source)
		idx++
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Phone != "" {
		clauses = append(clauses, fmt.Sprintf("phone = $%d", idx))
		args = append(args, filter.Phone)
		idx++
	}

	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC")

	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []entity.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead row: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

// ListLog returns a lead's processing history in creation order.
func (r *PGXLeadsRepository) ListLog(ctx context.Context, leadID int64) ([]entity.ProcessingLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, lead_id, step, status, message, details, created_at
        FROM lead_processing_log
        WHERE lead_id = $1
        ORDER BY created_at, id
    `, leadID)
	if err != nil {
		return nil, fmt.Errorf("list processing log: %w", err)
	}
	defer rows.Close()

	var entries []entity.ProcessingLogEntry
	for rows.Next() {
		var entry entity.ProcessingLogEntry
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.Step, &entry.Status, &entry.Message, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		if len(details) > 0 {
			entry.Details = json.RawMessage(details)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing log: %w", err)
	}
	return entries, nil
}

// ListDuplicateChecks returns the dedup audit trail for a lead.
func (r *PGXLeadsRepository) ListDuplicateChecks(ctx context.Context, leadID int64) ([]entity.DuplicateCheck, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, lead_id, phone, found_duplicate_id, checked_at
        FROM duplicate_checks
        WHERE lead_id = $1
        ORDER BY checked_at, id
    `, leadID)
	if err != nil {
		return nil, fmt.Errorf("list duplicate checks: %w", err)
	}
	defer rows.Close()

	var checks []entity.DuplicateCheck
	for rows.Next() {
		var check entity.DuplicateCheck
		var found *int64
		if err := rows.Scan(&check.ID, &check.LeadID, &check.Phone, &found, &check.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan duplicate check row: %w", err)
		}
		check.FoundDuplicateID = found
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate checks: %w", err)
	}
	return checks, nil
}

func scanLead(row pgx.Row) (*entity.Lead, error) {
	var (
		lead       entity.Lead
		rawPayload []byte
		fields     []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Source,
		&rawPayload,
		&lead.PhoneRaw,
		&lead.Phone,
		&lead.Name,
		&lead.Email,
		&fields,
		&lead.Status,
		&lead.ValidationStatus,
		&lead.IsDuplicate,
		&lead.DuplicateOfID,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(rawPayload) > 0 {
		lead.RawPayload = json.RawMessage(rawPayload)
	} else {
		lead.RawPayload = json.RawMessage("{}")
	}
	if len(fields) > 0 {
		lead.Fields = json.RawMessage(fields)
	}
	return &lead, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
