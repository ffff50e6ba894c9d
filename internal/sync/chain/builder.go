package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
)

// RecordSource selects the rows a detail chain must visit.
type RecordSource interface {
	ListPartial(ctx context.Context, legalEntityID int64, kind domain.EntityKind) ([]domain.Record, error)
}

// Builder turns the set of partially-synced records of one legal entity into
// an ordered detail-fetch chain. Construction is a pure read: building the
// same chain twice before any job runs yields two equal chains.
type Builder struct {
	records RecordSource
	logger  *slog.Logger
}

// NewBuilder creates a new chain Builder.
func NewBuilder(records RecordSource, logger *slog.Logger) *Builder {
	return &Builder{records: records, logger: logger}
}

// Build returns one detail task per PARTIAL row of the given kind, in query
// order, followed by the terminal tasks. An empty selection returns terminal
// unchanged (nil if none was given) — never an empty wrapper.
func (b *Builder) Build(ctx context.Context, legalEntityID int64, kind domain.EntityKind, terminal []domain.DetailTask) ([]domain.DetailTask, error) {
	records, err := b.records.ListPartial(ctx, legalEntityID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to select partial %s records: %w", kind, err)
	}

	tasks := make([]domain.DetailTask, 0, len(records)+len(terminal))
	for _, record := range records {
		if record.RegistryID == nil || *record.RegistryID == "" {
			// A row without a registry id has nothing to fetch detail for.
			b.logger.Warn("Partial record has no registry id, skipping",
				slog.Int64("record_id", record.ID),
				slog.String("kind", string(kind)),
			)
			continue
		}
		tasks = append(tasks, domain.DetailTask{
			Kind:       kind,
			RecordID:   record.ID,
			RegistryID: *record.RegistryID,
		})
	}

	if len(tasks) == 0 {
		return terminal, nil
	}

	b.logger.Debug("Detail chain built",
		slog.String("kind", string(kind)),
		slog.Int64("legal_entity_id", legalEntityID),
		slog.Int("links", len(tasks)),
		slog.Int("terminal_links", len(terminal)),
	)

	return append(tasks, terminal...), nil
}

// BuildForSync builds the detail chain for kind plus any follow-up chain that
// must run after it. Declaration syncs chain declaration-request details as
// their terminal, so declaration details fully complete before any
// declaration-request detail runs. Returns the chain and the categories it
// covers.
func (b *Builder) BuildForSync(ctx context.Context, legalEntityID int64, kind domain.EntityKind) ([]domain.DetailTask, []domain.EntityKind, error) {
	categories := []domain.EntityKind{kind}

	var terminal []domain.DetailTask
	if kind == domain.KindDeclaration {
		followUp, err := b.Build(ctx, legalEntityID, domain.KindDeclarationRequest, nil)
		if err != nil {
			return nil, nil, err
		}
		if len(followUp) > 0 {
			terminal = followUp
			categories = append(categories, domain.KindDeclarationRequest)
		}
	}

	tasks, err := b.Build(ctx, legalEntityID, kind, terminal)
	if err != nil {
		return nil, nil, err
	}

	return tasks, categories, nil
}
