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

// LegalEntities reads and mutates per-category sync statuses of legal
// entities. Statuses are mutated only by the orchestrator and the worker's
// batch callbacks.
type LegalEntities struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewLegalEntities creates a new LegalEntities store.
func NewLegalEntities(db *sqlx.DB, logger *slog.Logger) *LegalEntities {
	return &LegalEntities{db: db, logger: logger}
}

// statusColumn maps an entity kind to its status column. The column name is
// interpolated into SQL, so it must come from this closed switch.
func statusColumn(kind domain.EntityKind) (string, error) {
	switch kind {
	case domain.KindDeclaration:
		return "declaration_sync_status", nil
	case domain.KindDeclarationRequest:
		return "declaration_request_sync_status", nil
	case domain.KindEmployee:
		return "employee_sync_status", nil
	case domain.KindEmployeeRequest:
		return "employee_request_sync_status", nil
	case domain.KindConfidantPerson:
		return "confidant_person_sync_status", nil
	case domain.KindContractRequest:
		return "contract_request_sync_status", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, kind)
}

// Get fetches a legal entity by local id.
func (s *LegalEntities) Get(ctx context.Context, id int64) (*domain.LegalEntity, error) {
	query := `
		SELECT id, registry_id, name, created_at, updated_at
		FROM legal_entities
		WHERE id = $1
	`

	var le domain.LegalEntity
	if err := s.db.GetContext(ctx, &le, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLegalEntityNotFound
		}
		return nil, fmt.Errorf("failed to get legal entity %d: %w", id, err)
	}

	return &le, nil
}

// CategoryStatus returns the sync status of one entity category.
func (s *LegalEntities) CategoryStatus(ctx context.Context, id int64, kind domain.EntityKind) (domain.SyncStatus, error) {
	column, err := statusColumn(kind)
	if err != nil {
		return domain.StatusNone, err
	}

	query := fmt.Sprintf("SELECT %s FROM legal_entities WHERE id = $1", column)

	var status domain.SyncStatus
	if err := s.db.GetContext(ctx, &status, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StatusNone, domain.ErrLegalEntityNotFound
		}
		return domain.StatusNone, fmt.Errorf("failed to get %s status: %w", kind, err)
	}

	return status, nil
}

// SetCategoryStatus updates the sync status of one entity category.
func (s *LegalEntities) SetCategoryStatus(ctx context.Context, id int64, kind domain.EntityKind, status domain.SyncStatus) error {
	column, err := statusColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE legal_entities SET %s = $2, updated_at = NOW() WHERE id = $1", column)

	result, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set %s status: %w", kind, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrLegalEntityNotFound
	}

	s.logger.Info("Category sync status updated",
		slog.Int64("legal_entity_id", id),
		slog.String("category", string(kind)),
		slog.String("status", string(status)),
	)

	return nil
}

// Statuses returns the sync status of every category for one legal entity.
func (s *LegalEntities) Statuses(ctx context.Context, id int64) (map[domain.EntityKind]domain.SyncStatus, error) {
	query := `
		SELECT declaration_sync_status, declaration_request_sync_status,
		       employee_sync_status, employee_request_sync_status,
		       confidant_person_sync_status, contract_request_sync_status
		FROM legal_entities
		WHERE id = $1
	`

	var row struct {
		Declaration        domain.SyncStatus `db:"declaration_sync_status"`
		DeclarationRequest domain.SyncStatus `db:"declaration_request_sync_status"`
		Employee           domain.SyncStatus `db:"employee_sync_status"`
		EmployeeRequest    domain.SyncStatus `db:"employee_request_sync_status"`
		ConfidantPerson    domain.SyncStatus `db:"confidant_person_sync_status"`
		ContractRequest    domain.SyncStatus `db:"contract_request_sync_status"`
	}
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLegalEntityNotFound
		}
		return nil, fmt.Errorf("failed to get sync statuses: %w", err)
	}

	return map[domain.EntityKind]domain.SyncStatus{
		domain.KindDeclaration:        row.Declaration,
		domain.KindDeclarationRequest: row.DeclarationRequest,
		domain.KindEmployee:           row.Employee,
		domain.KindEmployeeRequest:    row.EmployeeRequest,
		domain.KindConfidantPerson:    row.ConfidantPerson,
		domain.KindContractRequest:    row.ContractRequest,
	}, nil
}
