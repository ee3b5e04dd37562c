package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callpulse/lead-intake/internal/adapter"
	"github.com/callpulse/lead-intake/internal/dto"
	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/repository"
)

type loggedStep struct {
	step    entity.LogStep
	status  entity.LogStatus
	message string
	details map[string]any
}

type fakeLeadsRepo struct {
	nextID    int64
	saveErr   error
	updateErr error
	updates   []map[string]any
	logs      []loggedStep
}

func (f *fakeLeadsRepo) SaveRawLead(ctx context.Context, source entity.LeadSource, rawPayload []byte, phoneRaw string) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeLeadsRepo) UpdateLead(ctx context.Context, id int64, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeLeadsRepo) AppendLog(ctx context.Context, leadID int64, step entity.LogStep, status entity.LogStatus, message string, details map[string]any) error {
	f.logs = append(f.logs, loggedStep{step: step, status: status, message: message, details: details})
	return nil
}

func (f *fakeLeadsRepo) FindByID(ctx context.Context, id int64) (*entity.Lead, error) {
	return nil, repository.ErrLeadNotFound
}

func (f *fakeLeadsRepo) List(ctx context.Context, filter dto.LeadFilter) ([]entity.Lead, error) {
	return nil, nil
}

func (f *fakeLeadsRepo) ListLog(ctx context.Context, leadID int64) ([]entity.ProcessingLogEntry, error) {
	return nil, nil
}

func (f *fakeLeadsRepo) ListDuplicateChecks(ctx context.Context, leadID int64) ([]entity.DuplicateCheck, error) {
	return nil, nil
}

type fakeDedupRepo struct {
	found  *int64
	err    error
	phones []string
}

func (f *fakeDedupRepo) CheckDuplicate(ctx context.Context, phoneNumber string, excludeLeadID int64) (*int64, error) {
	f.phones = append(f.phones, phoneNumber)
	if f.err != nil {
		return nil, f.err
	}
	return f.found, nil
}

type fakeQueueRepo struct {
	enqueued []int64
	err      error
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, leadID int64) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, leadID)
	return nil
}

func (f *fakeQueueRepo) ClaimNext(ctx context.Context) (*entity.SyncQueueEntry, error) {
	return nil, nil
}
func (f *fakeQueueRepo) MarkDone(ctx context.Context, entryID int64) error { return nil }
func (f *fakeQueueRepo) MarkFailed(ctx context.Context, entryID int64, nextAttemptAt time.Time, terminal bool) error {
	return nil
}

func stepsOf(logs []loggedStep) []entity.LogStep {
	steps := make([]entity.LogStep, 0, len(logs))
	for _, entry := range logs {
		steps = append(steps, entry.step)
	}
	return steps
}

func testFields(name string) adapter.FieldMap {
	fields := adapter.FieldMap{}
	for _, key := range adapter.CanonicalFields {
		fields[key] = nil
	}
	if name != "" {
		fields[adapter.FieldName] = &name
	}
	return fields
}

func TestProcess_FullPipeline(t *testing.T) {
	leads := &fakeLeadsRepo{}
	dedup := &fakeDedupRepo{}
	queue := &fakeQueueRepo{}
	svc := NewReceiverService(leads, dedup, queue, time.Second)

	id, err := svc.Process(context.Background(), entity.SourceCreatium, "89991234567", testFields("Иван"), []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected lead id 1, got %d", id)
	}

	want := []entity.LogStep{
		entity.StepReceived,
		entity.StepValidated,
		entity.StepDeduplicated,
		entity.StepNormalized,
		entity.StepEnqueued,
	}
	got := stepsOf(leads.logs)
	if len(got) != len(want) {
		t.Fatalf("expected %d log entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected step order %v, got %v", want, got)
		}
		if leads.logs[i].status != entity.LogSuccess {
			t.Fatalf("expected success status at %s, got %s", want[i], leads.logs[i].status)
		}
	}

	if len(dedup.phones) != 1 || dedup.phones[0] != "+79991234567" {
		t.Fatalf("expected dedup with canonical phone, got %v", dedup.phones)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != 1 {
		t.Fatalf("expected lead enqueued once, got %v", queue.enqueued)
	}

	if len(leads.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(leads.updates))
	}
	update := leads.updates[0]
	if update["phone"] != "+79991234567" {
		t.Fatalf("expected canonical phone in update, got %v", update["phone"])
	}
	if update["status"] != string(entity.LeadStatusNew) || update["validation_status"] != string(entity.ValidationValid) {
		t.Fatalf("unexpected status fields: %+v", update)
	}
	if update["name"] != "Иван" {
		t.Fatalf("expected name in update, got %v", update["name"])
	}
}

func TestProcess_DuplicateShortCircuit(t *testing.T) {
	original := int64(7)
	leads := &fakeLeadsRepo{}
	dedup := &fakeDedupRepo{found: &original}
	queue := &fakeQueueRepo{}
	svc := NewReceiverService(leads, dedup, queue, time.Second)

	id, err := svc.Process(context.Background(), entity.SourceGCK, "9991234567", testFields(""), nil)
	if err != nil {
		t.Fatalf("duplicate is not an error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected new lead id, got %d", id)
	}

	want := []entity.LogStep{entity.StepReceived, entity.StepValidated, entity.StepDeduplicated}
	got := stepsOf(leads.logs)
	if len(got) != len(want) {
		t.Fatalf("expected pipeline to stop at dedup, got %v", got)
	}
	last := leads.logs[len(leads.logs)-1]
	if last.status != entity.LogWarning {
		t.Fatalf("expected warning status on duplicate, got %s", last.status)
	}

	if len(queue.enqueued) != 0 {
		t.Fatalf("duplicate must not be enqueued")
	}
	if len(leads.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(leads.updates))
	}
	update := leads.updates[0]
	if update["status"] != string(entity.LeadStatusDuplicate) || update["is_duplicate"] != true {
		t.Fatalf("unexpected duplicate update: %+v", update)
	}
	if update["duplicate_of_id"] != original {
		t.Fatalf("expected duplicate_of_id %d, got %v", original, update["duplicate_of_id"])
	}
	if update["phone"] != "+79991234567" {
		t.Fatalf("expected canonical phone stored on duplicate, got %v", update["phone"])
	}
}

func TestProcess_PhoneNotFound(t *testing.T) {
	leads := &fakeLeadsRepo{}
	svc := NewReceiverService(leads, &fakeDedupRepo{}, &fakeQueueRepo{}, time.Second)

	id, err := svc.Process(context.Background(), entity.SourceCreatium, "", testFields(""), nil)
	if !errors.Is(err, ErrPhoneNotFound) {
		t.Fatalf("expected ErrPhoneNotFound, got %v", err)
	}
	if id != 1 {
		t.Fatalf("expected lead id even on rejection, got %d", id)
	}

	got := stepsOf(leads.logs)
	if len(got) != 2 || got[0] != entity.StepReceived || got[1] != entity.StepValidated {
		t.Fatalf("expected received then validated entries, got %v", got)
	}
	if leads.logs[1].status != entity.LogError {
		t.Fatalf("expected validated/error, got %s", leads.logs[1].status)
	}
}

func TestProcess_InvalidPhone(t *testing.T) {
	leads := &fakeLeadsRepo{}
	svc := NewReceiverService(leads, &fakeDedupRepo{}, &fakeQueueRepo{}, time.Second)

	_, err := svc.Process(context.Background(), entity.SourceMarquiz, "12345", testFields(""), nil)
	var invalid *PhoneInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected PhoneInvalidError, got %v", err)
	}

	got := stepsOf(leads.logs)
	if len(got) != 2 || got[1] != entity.StepValidated {
		t.Fatalf("expected log to stop at validated, got %v", got)
	}
	if leads.logs[1].status != entity.LogError {
		t.Fatalf("expected validated/error entry")
	}

	if len(leads.updates) != 1 || leads.updates[0]["validation_status"] != string(entity.ValidationInvalid) {
		t.Fatalf("expected validation_status=invalid update, got %+v", leads.updates)
	}
}

func TestProcess_SaveRawFailureIsFatal(t *testing.T) {
	leads := &fakeLeadsRepo{saveErr: errors.New("connection refused")}
	svc := NewReceiverService(leads, &fakeDedupRepo{}, &fakeQueueRepo{}, time.Second)

	id, err := svc.Process(context.Background(), entity.SourceCreatium, "89991234567", testFields(""), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if id != 0 {
		t.Fatalf("expected no lead id, got %d", id)
	}
	if len(leads.logs) != 0 {
		t.Fatalf("no log entries possible before a lead exists, got %v", leads.logs)
	}
}

func TestProcess_StorageFailureLogsErrorEntry(t *testing.T) {
	leads := &fakeLeadsRepo{}
	dedup := &fakeDedupRepo{err: errors.New("timeout")}
	svc := NewReceiverService(leads, dedup, &fakeQueueRepo{}, time.Second)

	id, err := svc.Process(context.Background(), entity.SourceGCK, "89991234567", testFields(""), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if id != 1 {
		t.Fatalf("expected lead id for post-creation failure, got %d", id)
	}

	last := leads.logs[len(leads.logs)-1]
	if last.step != entity.StepError || last.status != entity.LogError {
		t.Fatalf("expected trailing error entry, got %+v", last)
	}
}

func TestProcess_EnqueueFailure(t *testing.T) {
	leads := &fakeLeadsRepo{}
	queue := &fakeQueueRepo{err: errors.New("queue unavailable")}
	svc := NewReceiverService(leads, &fakeDedupRepo{}, queue, time.Second)

	_, err := svc.Process(context.Background(), entity.SourceCreatium, "89991234567", testFields(""), nil)
	if err == nil {
		t.Fatalf("expected error")
	}

	got := stepsOf(leads.logs)
	last := got[len(got)-1]
	if last != entity.StepError {
		t.Fatalf("expected error entry after enqueue failure, got %v", got)
	}
	for _, step := range got {
		if step == entity.StepEnqueued {
			t.Fatalf("enqueued must not be logged on failure: %v", got)
		}
	}
}
