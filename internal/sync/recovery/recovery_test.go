package recovery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchStore struct {
	batches []domain.Batch
	deleted []string
}

func (f *fakeBatchStore) WithFailures(ctx context.Context, legalEntityID int64) ([]domain.Batch, error) {
	return f.batches, nil
}

func (f *fakeBatchStore) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLedger struct {
	rows  map[string]*domain.FailedJob
	taken []string
}

func (f *fakeLedger) Take(ctx context.Context, id string) (*domain.FailedJob, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrLedgerRowNotFound
	}
	delete(f.rows, id)
	f.taken = append(f.taken, id)
	return row, nil
}

type fakeDispatcher struct {
	name     string
	opts     domain.BatchOptions
	commands []domain.Command
	calls    int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, name string, legalEntityID int64, opts domain.BatchOptions, commands []domain.Command) (string, error) {
	f.calls++
	f.name = name
	f.opts = opts
	f.commands = commands
	return "batch-new", nil
}

type fakeStatusStore struct {
	statuses map[domain.EntityKind]domain.SyncStatus
}

func (f *fakeStatusStore) SetCategoryStatus(ctx context.Context, id int64, kind domain.EntityKind, status domain.SyncStatus) error {
	if f.statuses == nil {
		f.statuses = map[domain.EntityKind]domain.SyncStatus{}
	}
	f.statuses[kind] = status
	return nil
}

type fakeSealer struct{}

func (fakeSealer) Seal(plaintext string) (string, error) { return "sealed:" + plaintext, nil }

func ledgerRow(id, batchID string, cmd domain.Command) *domain.FailedJob {
	payload, _ := json.Marshal(cmd)
	return &domain.FailedJob{
		ID:       id,
		BatchID:  batchID,
		Payload:  payload,
		Reason:   "registry unreachable",
		FailedAt: time.Now(),
	}
}

func failedBatch(id, name string, categories []domain.EntityKind, ledgerIDs ...string) domain.Batch {
	return domain.Batch{
		ID:            id,
		Name:          name,
		LegalEntityID: 1,
		TotalJobs:     len(ledgerIDs),
		FailedJobs:    len(ledgerIDs),
		FailedJobIDs:  domain.StringList(ledgerIDs),
		Options: domain.BatchOptions{
			SealedToken: "sealed:stale-token",
			UserID:      "u-1",
			Categories:  categories,
		},
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func newRecoverer(batches *fakeBatchStore, ledger *fakeLedger, dispatcher *fakeDispatcher, statuses *fakeStatusStore) *Recoverer {
	return New(&Config{
		Batches:       batches,
		Ledger:        ledger,
		Dispatcher:    dispatcher,
		LegalEntities: statuses,
		Sealer:        fakeSealer{},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRecoverer_Resume(t *testing.T) {
	chainCmd := domain.Command{
		Type: domain.CommandDetailChain,
		DetailChain: &domain.DetailChainCommand{Tasks: []domain.DetailTask{
			{Kind: domain.KindDeclaration, RecordID: 5, RegistryID: "d-5"},
		}},
	}
	pageCmd := domain.Command{
		Type:      domain.CommandFetchPage,
		FetchPage: &domain.FetchPageCommand{Kind: domain.KindDeclaration, LegalEntityID: 1, LegalEntityUUID: "le-uuid", Page: 3},
	}

	batches := &fakeBatchStore{batches: []domain.Batch{
		failedBatch("batch-old", "DeclarationsSync", []domain.EntityKind{domain.KindDeclaration}, "row-1", "row-2"),
	}}
	ledger := &fakeLedger{rows: map[string]*domain.FailedJob{
		"row-1": ledgerRow("row-1", "batch-old", pageCmd),
		"row-2": ledgerRow("row-2", "batch-old", chainCmd),
	}}
	dispatcher := &fakeDispatcher{}
	statuses := &fakeStatusStore{}

	le := &domain.LegalEntity{ID: 1, RegistryID: "le-uuid"}
	newID, err := newRecoverer(batches, ledger, dispatcher, statuses).Resume(
		context.Background(), le, domain.User{ID: "u-2"}, "fresh-token")
	require.NoError(t, err)
	assert.Equal(t, "batch-new", newID)

	// Both ledger rows were taken and re-dispatched under the original name.
	assert.ElementsMatch(t, []string{"row-1", "row-2"}, ledger.taken)
	assert.Empty(t, ledger.rows)
	assert.Equal(t, "DeclarationsSync", dispatcher.name)
	require.Len(t, dispatcher.commands, 2)
	assert.Equal(t, domain.CommandFetchPage, dispatcher.commands[0].Type)
	assert.Equal(t, 3, dispatcher.commands[0].FetchPage.Page)
	assert.Equal(t, domain.CommandDetailChain, dispatcher.commands[1].Type)

	// The new batch carries a freshly sealed token, the new user and the old
	// categories.
	assert.Equal(t, "sealed:fresh-token", dispatcher.opts.SealedToken)
	assert.Equal(t, "u-2", dispatcher.opts.UserID)
	assert.Equal(t, []domain.EntityKind{domain.KindDeclaration}, dispatcher.opts.Categories)

	assert.Equal(t, domain.StatusProcessing, statuses.statuses[domain.KindDeclaration])

	// The superseded batch is gone.
	assert.Equal(t, []string{"batch-old"}, batches.deleted)
}

func TestRecoverer_Resume_SecondResumeFindsNothing(t *testing.T) {
	cmd := domain.Command{
		Type:      domain.CommandFetchPage,
		FetchPage: &domain.FetchPageCommand{Kind: domain.KindEmployee, LegalEntityID: 1, Page: 2},
	}

	batches := &fakeBatchStore{batches: []domain.Batch{
		failedBatch("batch-old", "EmployeesSync", []domain.EntityKind{domain.KindEmployee}, "row-1"),
	}}
	ledger := &fakeLedger{rows: map[string]*domain.FailedJob{
		"row-1": ledgerRow("row-1", "batch-old", cmd),
	}}
	dispatcher := &fakeDispatcher{}
	statuses := &fakeStatusStore{}
	r := newRecoverer(batches, ledger, dispatcher, statuses)

	le := &domain.LegalEntity{ID: 1}
	_, err := r.Resume(context.Background(), le, domain.User{}, "token")
	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.calls)

	// The ledger rows are consumed; a second resume over the same stale batch
	// record re-dispatches nothing.
	_, err = r.Resume(context.Background(), le, domain.User{}, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNothingToResume)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestRecoverer_Resume_NoFailedBatches(t *testing.T) {
	r := newRecoverer(&fakeBatchStore{}, &fakeLedger{}, &fakeDispatcher{}, &fakeStatusStore{})

	_, err := r.Resume(context.Background(), &domain.LegalEntity{ID: 1}, domain.User{}, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNothingToResume)
}

func TestRecoverer_Resume_IgnoresForeignBatchNames(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	batches := &fakeBatchStore{batches: []domain.Batch{
		failedBatch("batch-other", "SomeOtherWorkload", nil, "row-9"),
	}}

	r := newRecoverer(batches, &fakeLedger{}, dispatcher, &fakeStatusStore{})

	_, err := r.Resume(context.Background(), &domain.LegalEntity{ID: 1}, domain.User{}, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNothingToResume)
	assert.Zero(t, dispatcher.calls)
	assert.Empty(t, batches.deleted)
}

func TestRecoverer_Resume_SkipsUndecodableRows(t *testing.T) {
	good := domain.Command{
		Type:      domain.CommandFetchPage,
		FetchPage: &domain.FetchPageCommand{Kind: domain.KindEmployee, LegalEntityID: 1, Page: 4},
	}

	batches := &fakeBatchStore{batches: []domain.Batch{
		failedBatch("batch-old", "EmployeesSync", []domain.EntityKind{domain.KindEmployee}, "row-bad", "row-good"),
	}}
	ledger := &fakeLedger{rows: map[string]*domain.FailedJob{
		"row-bad":  {ID: "row-bad", BatchID: "batch-old", Payload: json.RawMessage(`{broken`)},
		"row-good": ledgerRow("row-good", "batch-old", good),
	}}
	dispatcher := &fakeDispatcher{}

	_, err := newRecoverer(batches, ledger, dispatcher, &fakeStatusStore{}).Resume(
		context.Background(), &domain.LegalEntity{ID: 1}, domain.User{}, "token")
	require.NoError(t, err)

	require.Len(t, dispatcher.commands, 1)
	assert.Equal(t, 4, dispatcher.commands[0].FetchPage.Page)
}
