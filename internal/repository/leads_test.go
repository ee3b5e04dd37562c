package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callpulse/lead-intake/internal/entity"
)

type execCall struct {
	sql  string
	args []any
}

type stubRow struct {
	scanFn func(dest ...any) error
}

func (r *stubRow) Scan(dest ...any) error { return r.scanFn(dest...) }

type stubPool struct {
	execCalls  []execCall
	execTag    pgconn.CommandTag
	execErr    error
	queryRowFn func(sql string, args []any) pgx.Row
	tx         *stubTx
	beginErr   error
}

func (p *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execCalls = append(p.execCalls, execCall{sql: sql, args: args})
	return p.execTag, p.execErr
}

func (p *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query not stubbed")
}

func (p *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.queryRowFn(sql, args)
}

func (p *stubPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

type stubTx struct {
	execCalls  []execCall
	execErr    error
	queryRowFn func(sql string, args []any) pgx.Row
	committed  bool
	rolledBack bool
}

func (t *stubTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errors.New("nested tx") }
func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *stubTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execCalls = append(t.execCalls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), t.execErr
}
func (t *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query not stubbed")
}
func (t *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.queryRowFn(sql, args)
}
func (t *stubTx) Conn() *pgx.Conn { return nil }

func TestSaveRawLead(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	pool := &stubPool{
		queryRowFn: func(sql string, args []any) pgx.Row {
			gotSQL = sql
			gotArgs = args
			return &stubRow{scanFn: func(dest ...any) error {
				*dest[0].(*int64) = 7
				return nil
			}}
		},
	}
	repo := &PGXLeadsRepository{pool: pool}

	id, err := repo.SaveRawLead(context.Background(), "creatium", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}
	if !strings.Contains(gotSQL, "INSERT INTO leads") {
		t.Fatalf("unexpected sql: %s", gotSQL)
	}
	if string(gotArgs[1].([]byte)) != "{}" {
		t.Fatalf("empty payload must be stored as {}, got %q", gotArgs[1])
	}
	if gotArgs[2] != nil {
		t.Fatalf("empty raw phone must be stored as NULL, got %v", gotArgs[2])
	}
}

func TestUpdateLeadBuildsSortedSetClause(t *testing.T) {
	pool := &stubPool{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := &PGXLeadsRepository{pool: pool}

	err := repo.UpdateLead(context.Background(), 42, map[string]any{
		"status": "duplicate",
		"phone":  "+79991234567",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execCalls) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(pool.execCalls))
	}
	call := pool.execCalls[0]
	want := "UPDATE leads SET phone = $1, status = $2, updated_at = NOW() WHERE id = $3"
	if call.sql != want {
		t.Fatalf("unexpected sql:\n got: %s\nwant: %s", call.sql, want)
	}
	if call.args[0] != "+79991234567" || call.args[1] != "duplicate" || call.args[2] != int64(42) {
		t.Fatalf("unexpected args: %v", call.args)
	}
}

func TestUpdateLeadEmptyIsNoOp(t *testing.T) {
	pool := &stubPool{}
	repo := &PGXLeadsRepository{pool: pool}

	if err := repo.UpdateLead(context.Background(), 1, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execCalls) != 0 {
		t.Fatalf("empty update must not hit the database")
	}
}

func TestUpdateLeadRejectsUnknownColumn(t *testing.T) {
	pool := &stubPool{}
	repo := &PGXLeadsRepository{pool: pool}

	err := repo.UpdateLead(context.Background(), 1, map[string]any{"raw_payload": "{}"})
	if err == nil || !strings.Contains(err.Error(), "not updatable") {
		t.Fatalf("expected whitelist error, got %v", err)
	}
	if len(pool.execCalls) != 0 {
		t.Fatalf("rejected update must not hit the database")
	}
}

func TestUpdateLeadNotFound(t *testing.T) {
	pool := &stubPool{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := &PGXLeadsRepository{pool: pool}

	err := repo.UpdateLead(context.Background(), 999, map[string]any{"status": "sent"})
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestAppendLogEncodesDetails(t *testing.T) {
	pool := &stubPool{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := &PGXLeadsRepository{pool: pool}

	err := repo.AppendLog(context.Background(), 5, "validated", "success", "phone validated", map[string]any{"normalized": "+79991234567"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := pool.execCalls[0]
	if call.args[0] != int64(5) || call.args[1] != "validated" || call.args[2] != "success" {
		t.Fatalf("unexpected args: %v", call.args)
	}
	details, ok := call.args[4].([]byte)
	if !ok || !strings.Contains(string(details), `"normalized":"+79991234567"`) {
		t.Fatalf("unexpected details arg: %v", call.args[4])
	}

	if err := repo.AppendLog(context.Background(), 5, "received", "success", "lead stored", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.execCalls[1].args[4] != nil {
		t.Fatalf("empty details must be stored as NULL, got %v", pool.execCalls[1].args[4])
	}
}

func TestScanLead(t *testing.T) {
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	phoneRaw := "89991234567"
	phone := "+79991234567"
	row := &stubRow{scanFn: func(dest ...any) error {
		*dest[0].(*int64) = 3
		*dest[1].(*entity.LeadSource) = entity.SourceCreatium
		*dest[2].(*[]byte) = []byte(`{"phone":"89991234567"}`)
		*dest[3].(**string) = &phoneRaw
		*dest[4].(**string) = &phone
		*dest[7].(*[]byte) = []byte(`{"utm_source":"yandex"}`)
		*dest[8].(*entity.LeadStatus) = entity.LeadStatusNew
		*dest[9].(*entity.ValidationStatus) = entity.ValidationValid
		*dest[10].(*bool) = false
		*dest[12].(*time.Time) = created
		*dest[13].(*time.Time) = created
		return nil
	}}

	lead, err := scanLead(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.ID != 3 || lead.Source != "creatium" || lead.Status != "new" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
	if lead.Phone == nil || *lead.Phone != "+79991234567" {
		t.Fatalf("expected phone set, got %+v", lead.Phone)
	}
	if string(lead.Fields) != `{"utm_source":"yandex"}` {
		t.Fatalf("unexpected fields: %s", lead.Fields)
	}
	if lead.Name != nil || lead.DuplicateOfID != nil {
		t.Fatalf("expected unset optional columns to stay nil")
	}
}
