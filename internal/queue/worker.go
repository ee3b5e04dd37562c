package queue

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/callpulse/lead-intake/internal/entity"
	"github.com/callpulse/lead-intake/internal/metrics"
	"github.com/callpulse/lead-intake/internal/repository"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 8
	baseBackoff         = 30 * time.Second
	maxBackoff          = 30 * time.Minute
)

// Worker drains the crm_sync_queue table and publishes claimed leads to the
// broker. Multiple workers can run against the same database; row claiming
// uses SKIP LOCKED so they never pick the same entry.
type Worker struct {
	queue        repository.SyncQueueRepository
	leads        repository.LeadsRepository
	publisher    Publisher
	pollInterval time.Duration
	maxAttempts  int
	now          func() time.Time
}

// NewWorker wires a sync worker. Zero pollInterval and maxAttempts fall back
// to defaults.
func NewWorker(queue repository.SyncQueueRepository, leads repository.LeadsRepository, publisher Publisher, pollInterval time.Duration, maxAttempts int) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Worker{
		queue:        queue,
		leads:        leads,
		publisher:    publisher,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		now:          time.Now,
	}
}

// Run polls until the context is cancelled. Each tick drains every due entry
// before sleeping again.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.Printf("sync worker started, polling every %s", w.pollInterval)
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			log.Printf("sync worker stopping: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		entry, err := w.queue.ClaimNext(ctx)
		if err != nil {
			log.Printf("sync worker: claim failed: %v", err)
			return
		}
		if entry == nil {
			return
		}
		w.process(ctx, entry)
	}
}

func (w *Worker) process(ctx context.Context, entry *entity.SyncQueueEntry) {
	lead, err := w.leads.FindByID(ctx, entry.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			// The lead row is gone; retrying can never succeed.
			w.fail(ctx, entry, true, "lead missing")
			return
		}
		w.fail(ctx, entry, false, err.Error())
		return
	}

	if err := w.publisher.Publish(ctx, buildMessage(lead)); err != nil {
		w.fail(ctx, entry, entry.Attempts >= w.maxAttempts, err.Error())
		return
	}

	if err := w.queue.MarkDone(ctx, entry.ID); err != nil {
		log.Printf("sync worker: mark entry %d done: %v", entry.ID, err)
		return
	}
	if err := w.leads.UpdateLead(ctx, entry.LeadID, map[string]any{"status": string(entity.LeadStatusSent)}); err != nil {
		log.Printf("sync worker: mark lead %d sent: %v", entry.LeadID, err)
	}
	metrics.SyncPublished.WithLabelValues("published").Inc()
}

// fail reschedules the entry with doubling backoff, or parks it as terminally
// failed once attempts are exhausted.
func (w *Worker) fail(ctx context.Context, entry *entity.SyncQueueEntry, terminal bool, reason string) {
	next := w.now().Add(backoffFor(entry.Attempts))
	if err := w.queue.MarkFailed(ctx, entry.ID, next, terminal); err != nil {
		log.Printf("sync worker: mark entry %d failed: %v", entry.ID, err)
		return
	}
	if terminal {
		if err := w.leads.UpdateLead(ctx, entry.LeadID, map[string]any{"status": string(entity.LeadStatusFailed)}); err != nil {
			log.Printf("sync worker: mark lead %d failed: %v", entry.LeadID, err)
		}
		metrics.SyncPublished.WithLabelValues("failed").Inc()
		log.Printf("sync worker: entry %d (lead %d) failed terminally after %d attempts: %s", entry.ID, entry.LeadID, entry.Attempts, reason)
		return
	}
	metrics.SyncPublished.WithLabelValues("retried").Inc()
	log.Printf("sync worker: entry %d (lead %d) attempt %d failed, retry at %s: %s", entry.ID, entry.LeadID, entry.Attempts, next.Format(time.RFC3339), reason)
}

// backoffFor doubles the delay per attempt, capped at maxBackoff.
func backoffFor(attempts int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func buildMessage(lead *entity.Lead) LeadSyncMessage {
	msg := LeadSyncMessage{
		LeadID:    lead.ID,
		Source:    lead.Source,
		Fields:    lead.Fields,
		CreatedAt: lead.CreatedAt.Format(time.RFC3339),
	}
	if lead.Phone != nil {
		msg.Phone = *lead.Phone
	}
	if lead.Name != nil {
		msg.Name = *lead.Name
	}
	if lead.Email != nil {
		msg.Email = *lead.Email
	}
	return msg
}
