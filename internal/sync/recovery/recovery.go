package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
)

// BatchStore finds and removes failed batch records.
type BatchStore interface {
	WithFailures(ctx context.Context, legalEntityID int64) ([]domain.Batch, error)
	Delete(ctx context.Context, id string) error
}

// Ledger takes rows out of the failed-job ledger.
type Ledger interface {
	Take(ctx context.Context, id string) (*domain.FailedJob, error)
}

// Dispatcher records and enqueues the recovered batch.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, legalEntityID int64, opts domain.BatchOptions, commands []domain.Command) (string, error)
}

// StatusStore flips category statuses back to PROCESSING on resume.
type StatusStore interface {
	SetCategoryStatus(ctx context.Context, id int64, kind domain.EntityKind, status domain.SyncStatus) error
}

// Sealer re-seals the freshly supplied token for the new batch.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Recoverer re-dispatches jobs previously recorded as failed. Per resume
// call it processes the oldest interrupted batch with a recognized name.
type Recoverer struct {
	batches       BatchStore
	ledger        Ledger
	dispatcher    Dispatcher
	legalEntities StatusStore
	sealer        Sealer
	logger        *slog.Logger
}

// Config wires a Recoverer.
type Config struct {
	Batches       BatchStore
	Ledger        Ledger
	Dispatcher    Dispatcher
	LegalEntities StatusStore
	Sealer        Sealer
	Logger        *slog.Logger
}

// New creates a new Recoverer.
func New(cfg *Config) *Recoverer {
	return &Recoverer{
		batches:       cfg.Batches,
		ledger:        cfg.Ledger,
		dispatcher:    cfg.Dispatcher,
		legalEntities: cfg.LegalEntities,
		sealer:        cfg.Sealer,
		logger:        cfg.Logger,
	}
}

// Resume finds the oldest failed batch of this legal entity, pulls its
// still-pending commands out of the ledger and dispatches them as a new batch
// under the same name, then deletes the superseded batch record. Once the
// ledger rows and the old batch row are gone a second resume call cannot find
// the same work again.
func (r *Recoverer) Resume(ctx context.Context, le *domain.LegalEntity, user domain.User, token string) (string, error) {
	batches, err := r.batches.WithFailures(ctx, le.ID)
	if err != nil {
		return "", fmt.Errorf("failed to look up failed batches: %w", err)
	}

	var failed *domain.Batch
	for i := range batches {
		if domain.IsKnownBatchName(batches[i].Name) {
			failed = &batches[i]
			break
		}
	}
	if failed == nil {
		return "", domain.ErrNothingToResume
	}

	pending := r.collect(ctx, failed)
	if len(pending) == 0 {
		r.logger.Warn("Failed batch yielded no recoverable jobs",
			slog.String("batch_id", failed.ID),
			slog.String("name", failed.Name),
		)
		return "", domain.ErrNothingToResume
	}

	sealed, err := r.sealer.Seal(token)
	if err != nil {
		return "", fmt.Errorf("failed to seal registry token: %w", err)
	}

	opts := domain.BatchOptions{
		SealedToken: sealed,
		UserID:      user.ID,
		Categories:  failed.Options.Categories,
	}

	for _, category := range opts.Categories {
		if err := r.legalEntities.SetCategoryStatus(ctx, le.ID, category, domain.StatusProcessing); err != nil {
			return "", err
		}
	}

	newID, err := r.dispatcher.Dispatch(ctx, failed.Name, le.ID, opts, pending)
	if err != nil {
		return "", err
	}

	// Delete the superseded record so the next resume cannot match it again.
	if err := r.batches.Delete(ctx, failed.ID); err != nil {
		return "", err
	}

	r.logger.Info("Failed batch resumed",
		slog.String("old_batch_id", failed.ID),
		slog.String("new_batch_id", newID),
		slog.String("name", failed.Name),
		slog.Int("jobs", len(pending)),
	)

	return newID, nil
}

// collect extracts every command listed in the batch's failed-job ids from
// the ledger. Each row is deleted as it is taken; rows that are gone or do
// not decode are skipped, keeping extraction best-effort.
func (r *Recoverer) collect(ctx context.Context, b *domain.Batch) []domain.Command {
	commands := make([]domain.Command, 0, len(b.FailedJobIDs))
	for _, id := range b.FailedJobIDs {
		row, err := r.ledger.Take(ctx, id)
		if errors.Is(err, domain.ErrLedgerRowNotFound) {
			r.logger.Warn("Ledger row already taken",
				slog.String("ledger_id", id),
				slog.String("batch_id", b.ID),
			)
			continue
		}
		if err != nil {
			r.logger.Error("Failed to take ledger row",
				slog.String("ledger_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		var cmd domain.Command
		if err := json.Unmarshal(row.Payload, &cmd); err != nil {
			r.logger.Error("Ledger row payload does not decode",
				slog.String("ledger_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		commands = append(commands, cmd)
	}
	return commands
}
