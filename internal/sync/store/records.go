package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/jmoiron/sqlx"
)

// Records persists locally mirrored registry entities.
type Records struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewRecords creates a new Records store.
func NewRecords(db *sqlx.DB, logger *slog.Logger) *Records {
	return &Records{db: db, logger: logger}
}

// UpsertSummaries stores one page of registry list results. New rows land as
// PARTIAL so the detail-fetch chain visits them; rows already COMPLETED keep
// their status and only get the fresh summary, their detail is not fetched
// again. Returns the number of rows written.
func (s *Records) UpsertSummaries(ctx context.Context, legalEntityID int64, kind domain.EntityKind, summaries []domain.Summary) (int, error) {
	if len(summaries) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO registry_records (kind, legal_entity_id, registry_id, summary, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (legal_entity_id, kind, registry_id)
		DO UPDATE SET summary = EXCLUDED.summary,
		              sync_status = CASE WHEN registry_records.sync_status = $6
		                                 THEN registry_records.sync_status
		                                 ELSE EXCLUDED.sync_status END,
		              updated_at = NOW()
	`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, summary := range summaries {
		if _, err := tx.ExecContext(ctx, query,
			kind, legalEntityID, summary.RegistryID, summary.Payload, domain.StatusPartial, domain.StatusCompleted,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert %s summary %s: %w", kind, summary.RegistryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit summaries: %w", err)
	}

	s.logger.Info("Registry summaries stored",
		slog.String("kind", string(kind)),
		slog.Int64("legal_entity_id", legalEntityID),
		slog.Int("count", len(summaries)),
	)

	return len(summaries), nil
}

// ListPartial returns all rows of the given kind belonging to the legal
// entity that still await their detail fetch, in stable load order.
func (s *Records) ListPartial(ctx context.Context, legalEntityID int64, kind domain.EntityKind) ([]domain.Record, error) {
	query := `
		SELECT id, kind, legal_entity_id, registry_id, summary, detail, sync_status, synced_at, created_at, updated_at
		FROM registry_records
		WHERE legal_entity_id = $1 AND kind = $2 AND sync_status = $3
		ORDER BY id ASC
	`

	var records []domain.Record
	if err := s.db.SelectContext(ctx, &records, query, legalEntityID, kind, domain.StatusPartial); err != nil {
		return nil, fmt.Errorf("failed to list partial %s records: %w", kind, err)
	}

	return records, nil
}

// Get fetches one record by local id. Detail jobs re-read the row at
// execution time instead of trusting the captured copy.
func (s *Records) Get(ctx context.Context, id int64) (*domain.Record, error) {
	query := `
		SELECT id, kind, legal_entity_id, registry_id, summary, detail, sync_status, synced_at, created_at, updated_at
		FROM registry_records
		WHERE id = $1
	`

	var record domain.Record
	if err := s.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}

	return &record, nil
}

// SaveDetail upserts the detail payload into the row and marks it COMPLETED.
func (s *Records) SaveDetail(ctx context.Context, id int64, detail json.RawMessage) error {
	query := `
		UPDATE registry_records
		SET detail = $2,
		    sync_status = $3,
		    synced_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, detail, domain.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to save detail for record %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
