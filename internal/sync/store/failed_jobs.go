package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/jmoiron/sqlx"
)

// FailedJobs is the failed-job ledger: serialized commands of jobs that
// failed, kept until recovery takes them back out.
type FailedJobs struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewFailedJobs creates a new FailedJobs ledger.
func NewFailedJobs(db *sqlx.DB, logger *slog.Logger) *FailedJobs {
	return &FailedJobs{db: db, logger: logger}
}

// Insert writes one ledger row.
func (s *FailedJobs) Insert(ctx context.Context, job *domain.FailedJob) error {
	query := `
		INSERT INTO failed_sync_jobs (id, batch_id, payload, reason, failed_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, job.ID, job.BatchID, job.Payload, job.Reason); err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}

	s.logger.Warn("Failed job recorded in ledger",
		slog.String("ledger_id", job.ID),
		slog.String("batch_id", job.BatchID),
		slog.String("reason", job.Reason),
	)

	return nil
}

// Take removes a ledger row and returns it. Delete-and-return in one
// statement keeps re-delivery at most once: a row can never be picked up
// twice, even by concurrent resume attempts.
func (s *FailedJobs) Take(ctx context.Context, id string) (*domain.FailedJob, error) {
	query := `
		DELETE FROM failed_sync_jobs
		WHERE id = $1
		RETURNING id, batch_id, payload, reason, failed_at
	`

	var job domain.FailedJob
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLedgerRowNotFound
		}
		return nil, fmt.Errorf("failed to take ledger row %s: %w", id, err)
	}

	return &job, nil
}
