package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/registry"
	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/google/uuid"
)

// RegistryClient is the slice of the registry API the executor needs.
type RegistryClient interface {
	List(ctx context.Context, token string, kind domain.EntityKind, legalEntityUUID, scopeEmployeeID string, page int) (*registry.Page, error)
	Detail(ctx context.Context, token string, kind domain.EntityKind, id string) (json.RawMessage, error)
}

// RecordStore persists registry data locally.
type RecordStore interface {
	UpsertSummaries(ctx context.Context, legalEntityID int64, kind domain.EntityKind, summaries []domain.Summary) (int, error)
	Get(ctx context.Context, id int64) (*domain.Record, error)
	SaveDetail(ctx context.Context, id int64, detail json.RawMessage) error
}

// StatusStore mutates legal-entity category statuses.
type StatusStore interface {
	SetCategoryStatus(ctx context.Context, id int64, kind domain.EntityKind, status domain.SyncStatus) error
}

// BatchStore is the durable batch bookkeeping the executor drives.
type BatchStore interface {
	Get(ctx context.Context, id string) (*domain.Batch, error)
	AddCategory(ctx context.Context, id string, kind domain.EntityKind) error
	MarkJobProcessed(ctx context.Context, id string) (*domain.Batch, error)
	RecordFailure(ctx context.Context, id, ledgerID string) (*domain.Batch, error)
	Finish(ctx context.Context, id string) error
}

// Ledger records failed jobs for later recovery.
type Ledger interface {
	Insert(ctx context.Context, job *domain.FailedJob) error
}

// Notifier delivers terminal-outcome messages to the initiating user.
type Notifier interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

// ChainBuilder builds the detail chain once pagination is exhausted.
type ChainBuilder interface {
	BuildForSync(ctx context.Context, legalEntityID int64, kind domain.EntityKind) ([]domain.DetailTask, []domain.EntityKind, error)
}

// Queue republishes continuations and appends jobs to live batches.
type Queue interface {
	Publish(ctx context.Context, env *domain.Envelope) error
	Append(ctx context.Context, batchID string, cmd domain.Command) error
}

// Opener decrypts the sealed registry token from batch options.
type Opener interface {
	Open(sealed string) (string, error)
}

// Executor runs one sync job at a time: a registry page fetch or one link of
// a detail chain. All batch bookkeeping, failure recording and terminal
// callbacks happen here.
type Executor struct {
	registry      RegistryClient
	records       RecordStore
	legalEntities StatusStore
	batches       BatchStore
	ledger        Ledger
	notifier      Notifier
	chains        ChainBuilder
	queue         Queue
	opener        Opener
	logger        *slog.Logger
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	Registry      RegistryClient
	Records       RecordStore
	LegalEntities StatusStore
	Batches       BatchStore
	Ledger        Ledger
	Notifier      Notifier
	Chains        ChainBuilder
	Queue         Queue
	Opener        Opener
	Logger        *slog.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg *ExecutorConfig) *Executor {
	return &Executor{
		registry:      cfg.Registry,
		records:       cfg.Records,
		legalEntities: cfg.LegalEntities,
		batches:       cfg.Batches,
		ledger:        cfg.Ledger,
		notifier:      cfg.Notifier,
		chains:        cfg.Chains,
		queue:         cfg.Queue,
		opener:        cfg.Opener,
		logger:        cfg.Logger,
	}
}

// Execute runs one envelope. A nil return means the message can be acked:
// either the job succeeded or its failure was durably recorded. A
// RetryableError asks the consumer to requeue.
func (e *Executor) Execute(ctx context.Context, env *domain.Envelope) error {
	b, err := e.batches.Get(ctx, env.BatchID)
	if errors.Is(err, domain.ErrBatchNotFound) {
		// The batch was deleted (superseded by resume or abandoned by an
		// operator). Its jobs are dropped.
		e.logger.Warn("Dropping job of unknown batch",
			slog.String("batch_id", env.BatchID),
			slog.String("job_id", env.JobID),
		)
		return nil
	}
	if err != nil {
		return domain.NewRetryableError(err)
	}

	token, err := e.opener.Open(b.Options.SealedToken)
	if err != nil {
		return e.failJob(ctx, b, env, fmt.Errorf("failed to open sealed token: %w", err))
	}

	switch env.Type {
	case domain.CommandFetchPage:
		return e.fetchPage(ctx, b, env, token)
	case domain.CommandDetailChain:
		return e.runChainStep(ctx, b, env, token)
	default:
		e.logger.Error("Unknown command type, dropping job",
			slog.String("type", string(env.Type)),
			slog.String("job_id", env.JobID),
		)
		return nil
	}
}

// fetchPage pulls one registry list page and persists it. More pages publish
// a continuation; the last page builds and appends the detail chain.
func (e *Executor) fetchPage(ctx context.Context, b *domain.Batch, env *domain.Envelope, token string) error {
	cmd := env.FetchPage

	page, err := e.registry.List(ctx, token, cmd.Kind, cmd.LegalEntityUUID, cmd.ScopeEmployeeID, cmd.Page)
	if err != nil {
		return e.failJob(ctx, b, env, err)
	}

	summaries := make([]domain.Summary, 0, len(page.Items))
	for _, item := range page.Items {
		summaries = append(summaries, domain.Summary{RegistryID: item.ID, Payload: item.Payload})
	}

	if _, err := e.records.UpsertSummaries(ctx, cmd.LegalEntityID, cmd.Kind, summaries); err != nil {
		return e.failJob(ctx, b, env, err)
	}

	if page.IsNotLast() {
		next := *cmd
		next.Page++
		return e.queue.Publish(ctx, &domain.Envelope{
			BatchID: env.BatchID,
			JobID:   env.JobID,
			Command: domain.Command{Type: domain.CommandFetchPage, FetchPage: &next},
		})
	}

	// Pagination exhausted: chain the detail fetches over everything that
	// ended up PARTIAL.
	tasks, categories, err := e.chains.BuildForSync(ctx, cmd.LegalEntityID, cmd.Kind)
	if err != nil {
		return e.failJob(ctx, b, env, err)
	}

	if len(tasks) > 0 {
		for _, category := range categories {
			if b.Options.HasCategory(category) {
				continue
			}
			if err := e.batches.AddCategory(ctx, b.ID, category); err != nil {
				return e.failJob(ctx, b, env, err)
			}
			if err := e.legalEntities.SetCategoryStatus(ctx, b.LegalEntityID, category, domain.StatusProcessing); err != nil {
				return e.failJob(ctx, b, env, err)
			}
		}

		chainCmd := domain.Command{
			Type:        domain.CommandDetailChain,
			DetailChain: &domain.DetailChainCommand{Tasks: tasks},
		}
		if err := e.queue.Append(ctx, b.ID, chainCmd); err != nil {
			return e.failJob(ctx, b, env, err)
		}
	}

	return e.completeJob(ctx, b.ID)
}

// runChainStep executes the chain task at the cursor, then hands control to
// the next link by republishing with the cursor advanced.
func (e *Executor) runChainStep(ctx context.Context, b *domain.Batch, env *domain.Envelope, token string) error {
	cmd := env.DetailChain

	task, ok := cmd.Current()
	if !ok {
		return e.completeJob(ctx, b.ID)
	}

	// Re-read the row at execution time; the captured copy may be stale.
	record, err := e.records.Get(ctx, task.RecordID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		e.logger.Warn("Chain link points at a vanished record, skipping",
			slog.Int64("record_id", task.RecordID),
			slog.String("kind", string(task.Kind)),
		)
		return e.advance(ctx, b, env)
	}
	if err != nil {
		return domain.NewRetryableError(err)
	}

	detail, err := e.registry.Detail(ctx, token, task.Kind, task.RegistryID)
	if err != nil {
		return e.failJob(ctx, b, env, err)
	}

	if err := e.records.SaveDetail(ctx, record.ID, detail); err != nil {
		return e.failJob(ctx, b, env, err)
	}

	e.logger.Debug("Chain link completed",
		slog.String("batch_id", b.ID),
		slog.String("kind", string(task.Kind)),
		slog.Int64("record_id", record.ID),
		slog.Int("index", cmd.Index),
		slog.Int("chain_length", len(cmd.Tasks)),
	)

	return e.advance(ctx, b, env)
}

func (e *Executor) advance(ctx context.Context, b *domain.Batch, env *domain.Envelope) error {
	next := *env.DetailChain
	next.Index++
	if next.Index >= len(next.Tasks) {
		return e.completeJob(ctx, b.ID)
	}

	return e.queue.Publish(ctx, &domain.Envelope{
		BatchID: env.BatchID,
		JobID:   env.JobID,
		Command: domain.Command{Type: domain.CommandDetailChain, DetailChain: &next},
	})
}

// completeJob marks one job done and, when it was the last pending one and
// nothing failed, runs the batch's completion callback.
func (e *Executor) completeJob(ctx context.Context, batchID string) error {
	b, err := e.batches.MarkJobProcessed(ctx, batchID)
	if err != nil {
		return domain.NewRetryableError(err)
	}

	if b.PendingJobs <= 0 && b.FailedJobs == 0 {
		return e.finalize(ctx, b)
	}

	return nil
}

// finalize is the batch completion callback: flip every covered category to
// COMPLETED and notify the initiating user.
func (e *Executor) finalize(ctx context.Context, b *domain.Batch) error {
	if err := e.batches.Finish(ctx, b.ID); err != nil {
		return domain.NewRetryableError(err)
	}

	for _, category := range b.Options.Categories {
		if err := e.legalEntities.SetCategoryStatus(ctx, b.LegalEntityID, category, domain.StatusCompleted); err != nil {
			e.logger.Error("Failed to mark category completed",
				slog.String("batch_id", b.ID),
				slog.String("category", string(category)),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := e.notifier.Insert(ctx, &domain.Notification{
		UserID:        b.Options.UserID,
		LegalEntityID: b.LegalEntityID,
		Level:         domain.NotifySuccess,
		Message:       fmt.Sprintf("%s finished: %d job(s) completed", b.Name, b.TotalJobs),
	}); err != nil {
		e.logger.Error("Failed to insert completion notification",
			slog.String("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Info("Batch completed",
		slog.String("batch_id", b.ID),
		slog.String("name", b.Name),
		slog.Int("total_jobs", b.TotalJobs),
	)

	return nil
}

// failJob records a job failure durably: the unexecuted remainder of the
// command goes into the ledger, the batch counters are updated, the covered
// categories flip to FAILED and the user is notified. Work completed by
// earlier links stays persisted. Returns nil so the message is acked —
// retry is manual, via resume.
func (e *Executor) failJob(ctx context.Context, b *domain.Batch, env *domain.Envelope, cause error) error {
	remainder := env.Command
	if remainder.Type == domain.CommandDetailChain && env.DetailChain != nil {
		remainder.DetailChain = &domain.DetailChainCommand{Tasks: env.DetailChain.Remaining()}
	}

	payload, err := json.Marshal(remainder)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to serialize failed command: %w", err))
	}

	row := &domain.FailedJob{
		ID:       uuid.New().String(),
		BatchID:  b.ID,
		Payload:  payload,
		Reason:   cause.Error(),
		FailedAt: time.Now(),
	}
	if err := e.ledger.Insert(ctx, row); err != nil {
		// The failure must not be lost; let the queue redeliver the job.
		return domain.NewRetryableError(err)
	}

	if _, err := e.batches.RecordFailure(ctx, b.ID, row.ID); err != nil {
		e.logger.Error("Failed to record failure on batch",
			slog.String("batch_id", b.ID),
			slog.String("ledger_id", row.ID),
			slog.String("error", err.Error()),
		)
	}

	for _, category := range b.Options.Categories {
		if err := e.legalEntities.SetCategoryStatus(ctx, b.LegalEntityID, category, domain.StatusFailed); err != nil {
			e.logger.Error("Failed to mark category failed",
				slog.String("category", string(category)),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := e.notifier.Insert(ctx, &domain.Notification{
		UserID:        b.Options.UserID,
		LegalEntityID: b.LegalEntityID,
		Level:         domain.NotifyError,
		Message:       failureMessage(cause),
	}); err != nil {
		e.logger.Error("Failed to insert failure notification",
			slog.String("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Error("Sync job failed",
		slog.String("batch_id", b.ID),
		slog.String("job_id", env.JobID),
		slog.String("name", b.Name),
		slog.String("error", cause.Error()),
	)

	return nil
}

// failureMessage maps an error onto the operator-facing message for it.
// Stack traces and raw errors never reach the user.
func failureMessage(err error) string {
	var respErr *registry.ResponseError
	switch {
	case errors.Is(err, registry.ErrConnection):
		return "No connection to the registry, synchronization was interrupted"
	case errors.As(err, &respErr) && respErr.Validation():
		return "Registry rejected the request: " + respErr.Message
	case errors.As(err, &respErr):
		return "Registry error, synchronization was interrupted"
	default:
		return "Synchronization failed, please contact the administrator"
	}
}
