package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/google/uuid"
)

// Publisher sends serialized envelopes onto the sync queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Store is the durable side of the batch runtime.
type Store interface {
	Create(ctx context.Context, b *domain.Batch) error
	AddJobs(ctx context.Context, id string, n int) error
}

// Dispatcher creates named batches and puts their jobs on the sync queue.
type Dispatcher struct {
	batches Store
	queue   Publisher
	logger  *slog.Logger
}

// NewDispatcher creates a new batch Dispatcher.
func NewDispatcher(batches Store, queue Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{batches: batches, queue: queue, logger: logger}
}

// Dispatch records a new named batch and publishes every command as a job.
// Returns the batch id.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, legalEntityID int64, opts domain.BatchOptions, commands []domain.Command) (string, error) {
	if len(commands) == 0 {
		return "", domain.ErrEmptyBatch
	}

	b := &domain.Batch{
		ID:            uuid.New().String(),
		Name:          name,
		LegalEntityID: legalEntityID,
		TotalJobs:     len(commands),
		PendingJobs:   len(commands),
		FailedJobIDs:  domain.StringList{},
		Options:       opts,
		CreatedAt:     time.Now(),
	}

	if err := d.batches.Create(ctx, b); err != nil {
		return "", fmt.Errorf("failed to record batch %s: %w", name, err)
	}

	for _, cmd := range commands {
		env := &domain.Envelope{
			BatchID: b.ID,
			JobID:   uuid.New().String(),
			Command: cmd,
		}
		if err := d.Publish(ctx, env); err != nil {
			return "", err
		}
	}

	d.logger.Info("Batch dispatched",
		slog.String("batch_id", b.ID),
		slog.String("name", name),
		slog.Int64("legal_entity_id", legalEntityID),
		slog.Int("jobs", len(commands)),
	)

	return b.ID, nil
}

// Append grows a live batch by one job and publishes it.
func (d *Dispatcher) Append(ctx context.Context, batchID string, cmd domain.Command) error {
	if err := d.batches.AddJobs(ctx, batchID, 1); err != nil {
		return err
	}

	env := &domain.Envelope{
		BatchID: batchID,
		JobID:   uuid.New().String(),
		Command: cmd,
	}

	return d.Publish(ctx, env)
}

// Publish serializes one envelope onto the sync queue. Chain continuations
// reuse this with the same job id.
func (d *Dispatcher) Publish(ctx context.Context, env *domain.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := d.queue.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", env.JobID, err)
	}

	return nil
}
