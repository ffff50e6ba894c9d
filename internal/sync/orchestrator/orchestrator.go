package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ehealth-tools/registry-sync/internal/registry"
	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
)

// Operator-facing flash messages. Every sync trigger ends in exactly one of
// these; failures are additionally reported via notifications.
const (
	MsgAlreadyRunning  = "Synchronization is already running for this category"
	MsgStarted         = "Synchronization started"
	MsgResumed         = "Previously failed synchronization resumed"
	MsgNothingToSync   = "Nothing to synchronize, category is up to date"
	MsgNothingToResume = "No recoverable synchronization found"
)

// Lister fetches registry list pages.
type Lister interface {
	List(ctx context.Context, token string, kind domain.EntityKind, legalEntityUUID, scopeEmployeeID string, page int) (*registry.Page, error)
}

// RecordStore persists registry list results.
type RecordStore interface {
	UpsertSummaries(ctx context.Context, legalEntityID int64, kind domain.EntityKind, summaries []domain.Summary) (int, error)
}

// StatusStore reads and mutates legal entities and their category statuses.
type StatusStore interface {
	Get(ctx context.Context, id int64) (*domain.LegalEntity, error)
	CategoryStatus(ctx context.Context, id int64, kind domain.EntityKind) (domain.SyncStatus, error)
	SetCategoryStatus(ctx context.Context, id int64, kind domain.EntityKind, status domain.SyncStatus) error
}

// ChainBuilder builds detail-fetch chains over freshly persisted rows.
type ChainBuilder interface {
	BuildForSync(ctx context.Context, legalEntityID int64, kind domain.EntityKind) ([]domain.DetailTask, []domain.EntityKind, error)
}

// Dispatcher records and enqueues named batches.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, legalEntityID int64, opts domain.BatchOptions, commands []domain.Command) (string, error)
}

// Resumer re-dispatches work recovered from the failed-job ledger.
type Resumer interface {
	Resume(ctx context.Context, le *domain.LegalEntity, user domain.User, token string) (string, error)
}

// Sealer protects the registry token before it is attached to batch options.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Orchestrator is the sync engine's entry point: it guards against double
// dispatch, routes paused/failed categories to recovery and drives fresh
// syncs against the registry.
type Orchestrator struct {
	registry      Lister
	records       RecordStore
	legalEntities StatusStore
	chains        ChainBuilder
	dispatcher    Dispatcher
	resumer       Resumer
	sealer        Sealer
	logger        *slog.Logger
}

// Config wires an Orchestrator.
type Config struct {
	Registry      Lister
	Records       RecordStore
	LegalEntities StatusStore
	Chains        ChainBuilder
	Dispatcher    Dispatcher
	Resumer       Resumer
	Sealer        Sealer
	Logger        *slog.Logger
}

// New creates a new Orchestrator.
func New(cfg *Config) *Orchestrator {
	return &Orchestrator{
		registry:      cfg.Registry,
		records:       cfg.Records,
		legalEntities: cfg.LegalEntities,
		chains:        cfg.Chains,
		dispatcher:    cfg.Dispatcher,
		resumer:       cfg.Resumer,
		sealer:        cfg.Sealer,
		logger:        cfg.Logger,
	}
}

// Result describes the outcome of a sync trigger.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	BatchID string `json:"batch_id,omitempty"`
}

// Trigger outcome statuses.
const (
	StatusStarted         = "started"
	StatusResumed         = "resumed"
	StatusCompleted       = "completed"
	StatusNothingToResume = "nothing_to_resume"
)

// Start triggers synchronization of one entity category for a legal entity.
//
// The category status drives the branch taken:
//
//	empty/COMPLETED  -> fresh sync cycle
//	PAUSED/FAILED    -> resume from the failure ledger
//	anything else    -> rejected, a sync is in flight
//
// The entry guard is a plain check-then-act: two simultaneous triggers can
// both pass it. Known limitation, matching the UI-driven usage pattern.
func (o *Orchestrator) Start(ctx context.Context, legalEntityID int64, kind domain.EntityKind, user domain.User, token string) (*Result, error) {
	le, err := o.legalEntities.Get(ctx, legalEntityID)
	if err != nil {
		return nil, err
	}

	status, err := o.legalEntities.CategoryStatus(ctx, le.ID, kind)
	if err != nil {
		return nil, err
	}

	if status.InProgress() {
		o.logger.Info("Sync trigger rejected, already running",
			slog.Int64("legal_entity_id", le.ID),
			slog.String("category", string(kind)),
			slog.String("status", string(status)),
		)
		return nil, domain.ErrSyncAlreadyRunning
	}

	if status.Resumable() {
		return o.resume(ctx, le, user, token)
	}

	return o.fresh(ctx, le, kind, user, token)
}

func (o *Orchestrator) resume(ctx context.Context, le *domain.LegalEntity, user domain.User, token string) (*Result, error) {
	batchID, err := o.resumer.Resume(ctx, le, user, token)
	if errors.Is(err, domain.ErrNothingToResume) {
		o.logger.Info("Resume requested but no recoverable batch found",
			slog.Int64("legal_entity_id", le.ID),
		)
		return &Result{Status: StatusNothingToResume, Message: MsgNothingToResume}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Result{Status: StatusResumed, Message: MsgResumed, BatchID: batchID}, nil
}

func (o *Orchestrator) fresh(ctx context.Context, le *domain.LegalEntity, kind domain.EntityKind, user domain.User, token string) (*Result, error) {
	scope := ""
	if kind.RoleScoped() {
		scope = user.RegistryID
	}

	// The first page is fetched and persisted synchronously so that it is
	// always available even if all subsequent async paging fails.
	page, err := o.registry.List(ctx, token, kind, le.RegistryID, scope, 1)
	if err != nil {
		return nil, err
	}

	stored, err := o.records.UpsertSummaries(ctx, le.ID, kind, toSummaries(page.Items))
	if err != nil {
		return nil, err
	}

	sealed, err := o.sealer.Seal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal registry token: %w", err)
	}

	if page.IsNotLast() {
		opts := domain.BatchOptions{
			SealedToken: sealed,
			UserID:      user.ID,
			Categories:  []domain.EntityKind{kind},
		}
		cmd := domain.Command{
			Type: domain.CommandFetchPage,
			FetchPage: &domain.FetchPageCommand{
				Kind:            kind,
				LegalEntityID:   le.ID,
				LegalEntityUUID: le.RegistryID,
				ScopeEmployeeID: scope,
				Page:            2,
			},
		}

		if err := o.legalEntities.SetCategoryStatus(ctx, le.ID, kind, domain.StatusProcessing); err != nil {
			return nil, err
		}

		batchID, err := o.dispatcher.Dispatch(ctx, kind.ListBatchName(), le.ID, opts, []domain.Command{cmd})
		if err != nil {
			return nil, err
		}

		return &Result{Status: StatusStarted, Message: MsgStarted, BatchID: batchID}, nil
	}

	if stored > 0 {
		tasks, categories, err := o.chains.BuildForSync(ctx, le.ID, kind)
		if err != nil {
			return nil, err
		}

		if len(tasks) > 0 {
			opts := domain.BatchOptions{
				SealedToken: sealed,
				UserID:      user.ID,
				Categories:  categories,
			}
			cmd := domain.Command{
				Type:        domain.CommandDetailChain,
				DetailChain: &domain.DetailChainCommand{Tasks: tasks},
			}

			for _, category := range categories {
				if err := o.legalEntities.SetCategoryStatus(ctx, le.ID, category, domain.StatusProcessing); err != nil {
					return nil, err
				}
			}

			batchID, err := o.dispatcher.Dispatch(ctx, kind.DetailBatchName(), le.ID, opts, []domain.Command{cmd})
			if err != nil {
				return nil, err
			}

			return &Result{Status: StatusStarted, Message: MsgStarted, BatchID: batchID}, nil
		}
	}

	// First page empty, or nothing needed detail fetching: the category is
	// complete without dispatching any batch.
	if err := o.legalEntities.SetCategoryStatus(ctx, le.ID, kind, domain.StatusCompleted); err != nil {
		return nil, err
	}

	return &Result{Status: StatusCompleted, Message: MsgNothingToSync}, nil
}

func toSummaries(items []registry.Item) []domain.Summary {
	summaries := make([]domain.Summary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, domain.Summary{RegistryID: item.ID, Payload: item.Payload})
	}
	return summaries
}
