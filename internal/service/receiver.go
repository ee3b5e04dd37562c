package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/callpulse/lead-intake/internal/adapter"
	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/metrics"
	"github.com/callpulse/lead-intake/internal/phone"
	"github.com/callpulse/lead-intake/internal/repository"
)

// ErrPhoneNotFound indicates the adapter extracted no phone from the payload.
var ErrPhoneNotFound = errors.New("phone not found in data")

// PhoneInvalidError carries the validator's rejection reason to the caller.
type PhoneInvalidError struct {
	Reason string
}

func (e *PhoneInvalidError) Error() string {
	return "invalid phone: " + e.Reason
}

const defaultStorageTimeout = 5 * time.Second

// ReceiverService drives the intake pipeline for one webhook delivery:
// persist raw -> validate phone -> dedup -> normalize -> enqueue, writing a
// processing log entry at every transition.
type ReceiverService struct {
	leads          repository.LeadsRepository
	dedup          repository.DedupRepository
	queue          repository.SyncQueueRepository
	storageTimeout time.Duration
}

// NewReceiverService constructs the pipeline orchestrator. storageTimeout
// bounds every individual storage call; <= 0 selects the default.
func NewReceiverService(leads repository.LeadsRepository, dedup repository.DedupRepository, queue repository.SyncQueueRepository, storageTimeout time.Duration) *ReceiverService {
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	return &ReceiverService{leads: leads, dedup: dedup, queue: queue, storageTimeout: storageTimeout}
}

// Process runs the full pipeline and returns the persisted lead id. The id
// is returned for every outcome that produced a lead row, including
// duplicates and validation rejections; the error tells the HTTP layer how
// to respond.
func (s *ReceiverService) Process(ctx context.Context, source entity.LeadSource, phoneRaw string, fields adapter.FieldMap, rawPayload []byte) (int64, error) {
	// Receive. A failure here is fatal and cannot be logged against a
	// lead, because no lead exists yet.
	leadID, err := s.saveRaw(ctx, source, rawPayload, phoneRaw)
	if err != nil {
		return 0, fmt.Errorf("persist raw lead: %w", err)
	}
	metrics.LeadsReceived.WithLabelValues(string(source)).Inc()

	s.appendLog(ctx, leadID, entity.StepReceived, entity.LogSuccess, "webhook payload received", map[string]any{
		"source": string(source),
	})

	id, err := s.run(ctx, leadID, source, phoneRaw, fields)
	if err != nil {
		var invalid *PhoneInvalidError
		if !errors.Is(err, ErrPhoneNotFound) && !errors.As(err, &invalid) {
			// Unexpected failure mid-pipeline: leave an error entry
			// before surfacing it.
			metrics.PipelineFailures.WithLabelValues(string(source)).Inc()
			s.appendLog(ctx, leadID, entity.StepError, entity.LogError, err.Error(), nil)
		}
		return leadID, err
	}
	return id, nil
}

func (s *ReceiverService) run(ctx context.Context, leadID int64, source entity.LeadSource, phoneRaw string, fields adapter.FieldMap) (int64, error) {
	// Validate.
	if phoneRaw == "" {
		metrics.LeadsRejected.WithLabelValues(string(source), "missing").Inc()
		s.appendLog(ctx, leadID, entity.StepValidated, entity.LogError, ErrPhoneNotFound.Error(), nil)
		return leadID, ErrPhoneNotFound
	}

	normalized, err := phone.Normalize(phoneRaw)
	if err != nil {
		var invalid *phone.InvalidError
		if errors.As(err, &invalid) {
			metrics.LeadsRejected.WithLabelValues(string(source), "invalid").Inc()
			s.appendLog(ctx, leadID, entity.StepValidated, entity.LogError, invalid.Reason, map[string]any{
				"phone_raw": phoneRaw,
			})
			if updErr := s.updateLead(ctx, leadID, map[string]any{"validation_status": string(entity.ValidationInvalid)}); updErr != nil {
				return leadID, updErr
			}
			return leadID, &PhoneInvalidError{Reason: invalid.Reason}
		}
		return leadID, fmt.Errorf("validate phone: %w", err)
	}

	annotation := phone.Annotate(normalized)
	s.appendLog(ctx, leadID, entity.StepValidated, entity.LogSuccess, "phone validated", map[string]any{
		"normalized": normalized,
		"region":     annotation.Region,
		"e164_valid": annotation.E164Valid,
	})

	// Dedup.
	duplicateOf, err := s.checkDuplicate(ctx, normalized, leadID)
	if err != nil {
		return leadID, fmt.Errorf("duplicate check: %w", err)
	}

	if duplicateOf != nil {
		if err := s.updateLead(ctx, leadID, map[string]any{
			"phone":             normalized,
			"status":            string(entity.LeadStatusDuplicate),
			"validation_status": string(entity.ValidationValid),
			"is_duplicate":      true,
			"duplicate_of_id":   *duplicateOf,
		}); err != nil {
			return leadID, err
		}
		metrics.LeadsDuplicate.WithLabelValues(string(source)).Inc()
		s.appendLog(ctx, leadID, entity.StepDeduplicated, entity.LogWarning, "duplicate within window", map[string]any{
			"duplicate_of_id": *duplicateOf,
		})
		// Pipeline ends here: no normalization, no enqueue.
		return leadID, nil
	}

	s.appendLog(ctx, leadID, entity.StepDeduplicated, entity.LogSuccess, "no duplicate found", nil)

	// Normalize.
	update, err := buildNormalizedUpdate(normalized, fields)
	if err != nil {
		return leadID, err
	}
	if err := s.updateLead(ctx, leadID, update); err != nil {
		return leadID, err
	}
	s.appendLog(ctx, leadID, entity.StepNormalized, entity.LogSuccess, "lead normalized", nil)

	// Enqueue.
	if err := s.enqueue(ctx, leadID); err != nil {
		return leadID, fmt.Errorf("enqueue for sync: %w", err)
	}
	s.appendLog(ctx, leadID, entity.StepEnqueued, entity.LogSuccess, "queued for crm sync", nil)

	return leadID, nil
}

// buildNormalizedUpdate merges the adapter's canonical field map with the
// validation outcome: name and email land in their own columns, the rest of
// the attribution bag is serialized into the fields column.
func buildNormalizedUpdate(normalizedPhone string, fields adapter.FieldMap) (map[string]any, error) {
	update := map[string]any{
		"phone":             normalizedPhone,
		"status":            string(entity.LeadStatusNew),
		"validation_status": string(entity.ValidationValid),
	}

	bag := make(map[string]*string, len(fields))
	for key, value := range fields {
		switch key {
		case adapter.FieldName:
			update["name"] = stringOrNil(value)
		case adapter.FieldEmail:
			update["email"] = stringOrNil(value)
		default:
			bag[key] = value
		}
	}

	encoded, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("encode attribution fields: %w", err)
	}
	update["fields"] = encoded

	return update, nil
}

func stringOrNil(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

func (s *ReceiverService) saveRaw(ctx context.Context, source entity.LeadSource, rawPayload []byte, phoneRaw string) (int64, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	return s.leads.SaveRawLead(ctx, source, rawPayload, phoneRaw)
}

func (s *ReceiverService) updateLead(ctx context.Context, leadID int64, fields map[string]any) error {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	return s.leads.UpdateLead(ctx, leadID, fields)
}

func (s *ReceiverService) checkDuplicate(ctx context.Context, normalized string, leadID int64) (*int64, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	return s.dedup.CheckDuplicate(ctx, normalized, leadID)
}

func (s *ReceiverService) enqueue(ctx context.Context, leadID int64) error {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	return s.queue.Enqueue(ctx, leadID)
}

// appendLog writes a processing log entry. Log failures are reported but do
// not abort the pipeline: the lead state itself is authoritative.
func (s *ReceiverService) appendLog(ctx context.Context, leadID int64, step entity.LogStep, status entity.LogStatus, message string, details map[string]any) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.leads.AppendLog(ctx, leadID, step, status, message, details); err != nil {
		log.Printf("lead_id=%d step=%s append log failed: %v", leadID, step, err)
	}
}

func (s *ReceiverService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storageTimeout)
}
