package store

import (
	"context"
	"fmt"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/jmoiron/sqlx"
)

// Notifications stores terminal-outcome messages for operators. The UI reads
// and marks them; this service only writes.
type Notifications struct {
	db *sqlx.DB
}

// NewNotifications creates a new Notifications store.
func NewNotifications(db *sqlx.DB) *Notifications {
	return &Notifications{db: db}
}

// Insert writes one notification row.
func (s *Notifications) Insert(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO sync_notifications (user_id, legal_entity_id, level, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, n.UserID, n.LegalEntityID, n.Level, n.Message); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}
