package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/jmoiron/sqlx"
)

const batchColumns = `batch_id, name, legal_entity_id, total_jobs, pending_jobs, failed_jobs,
	failed_job_ids, options, created_at, cancelled_at, finished_at`

// Batches persists the durable job-batch records that back the queue runtime.
type Batches struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewBatches creates a new Batches store.
func NewBatches(db *sqlx.DB, logger *slog.Logger) *Batches {
	return &Batches{db: db, logger: logger}
}

// Create inserts a new batch row.
func (s *Batches) Create(ctx context.Context, b *domain.Batch) error {
	query := `
		INSERT INTO sync_batches (batch_id, name, legal_entity_id, total_jobs, pending_jobs, failed_jobs, failed_job_ids, options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.LegalEntityID, b.TotalJobs, b.PendingJobs, b.FailedJobs, b.FailedJobIDs, b.Options,
	); err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	s.logger.Info("Batch created",
		slog.String("batch_id", b.ID),
		slog.String("name", b.Name),
		slog.Int64("legal_entity_id", b.LegalEntityID),
		slog.Int("total_jobs", b.TotalJobs),
	)

	return nil
}

// Get fetches a batch by id.
func (s *Batches) Get(ctx context.Context, id string) (*domain.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM sync_batches WHERE batch_id = $1", batchColumns)

	var b domain.Batch
	if err := s.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}

	return &b, nil
}

// AddJobs grows a live batch by n jobs (pagination appends the detail chain
// to the batch it runs in).
func (s *Batches) AddJobs(ctx context.Context, id string, n int) error {
	query := `
		UPDATE sync_batches
		SET total_jobs = total_jobs + $2,
		    pending_jobs = pending_jobs + $2
		WHERE batch_id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, n)
	if err != nil {
		return fmt.Errorf("failed to add jobs to batch %s: %w", id, err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return domain.ErrBatchNotFound
	}

	return nil
}

// AddCategory records an extra entity category on a live batch's options, so
// completion callbacks flip every category the batch ended up covering.
func (s *Batches) AddCategory(ctx context.Context, id string, kind domain.EntityKind) error {
	query := `
		UPDATE sync_batches
		SET options = jsonb_set(options, '{categories}', COALESCE(options->'categories', '[]'::jsonb) || to_jsonb($2::text))
		WHERE batch_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, id, string(kind)); err != nil {
		return fmt.Errorf("failed to add category to batch %s: %w", id, err)
	}

	return nil
}

// MarkJobProcessed decrements the pending counter and returns the updated
// batch so the caller can detect completion.
func (s *Batches) MarkJobProcessed(ctx context.Context, id string) (*domain.Batch, error) {
	query := fmt.Sprintf(`
		UPDATE sync_batches
		SET pending_jobs = pending_jobs - 1
		WHERE batch_id = $1
		RETURNING %s
	`, batchColumns)

	var b domain.Batch
	if err := s.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to mark job processed on batch %s: %w", id, err)
	}

	return &b, nil
}

// RecordFailure moves one pending job into the failed bucket, appends the
// ledger row id to failed_job_ids and stamps cancelled_at. Returns the
// updated batch.
func (s *Batches) RecordFailure(ctx context.Context, id, ledgerID string) (*domain.Batch, error) {
	query := fmt.Sprintf(`
		UPDATE sync_batches
		SET pending_jobs = pending_jobs - 1,
		    failed_jobs = failed_jobs + 1,
		    failed_job_ids = failed_job_ids || to_jsonb($2::text),
		    cancelled_at = NOW()
		WHERE batch_id = $1
		RETURNING %s
	`, batchColumns)

	var b domain.Batch
	if err := s.db.GetContext(ctx, &b, query, id, ledgerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to record failure on batch %s: %w", id, err)
	}

	s.logger.Warn("Batch job failure recorded",
		slog.String("batch_id", id),
		slog.String("ledger_id", ledgerID),
		slog.Int("failed_jobs", b.FailedJobs),
	)

	return &b, nil
}

// Finish stamps finished_at on a fully processed batch.
func (s *Batches) Finish(ctx context.Context, id string) error {
	query := `UPDATE sync_batches SET finished_at = NOW() WHERE batch_id = $1`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to finish batch %s: %w", id, err)
	}

	return nil
}

// WithFailures returns this legal entity's batches that recorded failed jobs,
// oldest interruption first. Recovery processes the earliest one.
func (s *Batches) WithFailures(ctx context.Context, legalEntityID int64) ([]domain.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sync_batches
		WHERE legal_entity_id = $1 AND failed_jobs > 0
		ORDER BY cancelled_at ASC NULLS LAST, created_at ASC
	`, batchColumns)

	var batches []domain.Batch
	if err := s.db.SelectContext(ctx, &batches, query, legalEntityID); err != nil {
		return nil, fmt.Errorf("failed to list failed batches: %w", err)
	}

	return batches, nil
}

// Delete removes a batch row. A deleted batch is invisible to recovery.
func (s *Batches) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sync_batches WHERE batch_id = $1`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", id, err)
	}

	s.logger.Info("Batch deleted", slog.String("batch_id", id))

	return nil
}

// BatchFilter narrows and paginates batch listings.
type BatchFilter struct {
	LegalEntityID int64
	Name          string
	PageSize      int
	Cursor        *BatchCursor
}

// BatchCursor is a keyset-pagination position over (created_at, batch_id).
type BatchCursor struct {
	CreatedAt time.Time
	BatchID   string
}

// List returns batches newest first with keyset pagination. Callers request
// PageSize+1 rows implicitly: one extra row signals another page exists.
func (s *Batches) List(ctx context.Context, filter BatchFilter) ([]domain.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM sync_batches WHERE 1=1", batchColumns)
	args := []interface{}{}
	argIdx := 1

	if filter.LegalEntityID != 0 {
		query += fmt.Sprintf(" AND legal_entity_id = $%d", argIdx)
		args = append(args, filter.LegalEntityID)
		argIdx++
	}

	if filter.Name != "" {
		query += fmt.Sprintf(" AND name = $%d", argIdx)
		args = append(args, filter.Name)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, batch_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.BatchID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, batch_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var batches []domain.Batch
	if err := s.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	return batches, nil
}
