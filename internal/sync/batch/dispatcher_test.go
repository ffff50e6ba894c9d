package batch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	created *domain.Batch
	addedTo string
	addedN  int
}

func (f *fakeStore) Create(ctx context.Context, b *domain.Batch) error {
	f.created = b
	return nil
}

func (f *fakeStore) AddJobs(ctx context.Context, id string, n int) error {
	f.addedTo = id
	f.addedN += n
	return nil
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func decodeEnvelopes(t *testing.T, bodies [][]byte) []domain.Envelope {
	t.Helper()
	envs := make([]domain.Envelope, 0, len(bodies))
	for _, body := range bodies {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(body, &env))
		envs = append(envs, env)
	}
	return envs
}

func newTestDispatcher(store *fakeStore, queue *fakePublisher) *Dispatcher {
	return NewDispatcher(store, queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcher_Dispatch(t *testing.T) {
	store := &fakeStore{}
	queue := &fakePublisher{}

	commands := []domain.Command{
		{Type: domain.CommandFetchPage, FetchPage: &domain.FetchPageCommand{Kind: domain.KindEmployee, Page: 2}},
		{Type: domain.CommandFetchPage, FetchPage: &domain.FetchPageCommand{Kind: domain.KindEmployee, Page: 3}},
	}
	opts := domain.BatchOptions{SealedToken: "sealed", UserID: "u-1", Categories: []domain.EntityKind{domain.KindEmployee}}

	id, err := newTestDispatcher(store, queue).Dispatch(context.Background(), "EmployeesSync", 1, opts, commands)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NotNil(t, store.created)
	assert.Equal(t, id, store.created.ID)
	assert.Equal(t, "EmployeesSync", store.created.Name)
	assert.Equal(t, int64(1), store.created.LegalEntityID)
	assert.Equal(t, 2, store.created.TotalJobs)
	assert.Equal(t, 2, store.created.PendingJobs)
	assert.Zero(t, store.created.FailedJobs)
	assert.Equal(t, opts, store.created.Options)

	// One envelope per command, each with its own job id, all on this batch.
	envs := decodeEnvelopes(t, queue.bodies)
	require.Len(t, envs, 2)
	assert.Equal(t, id, envs[0].BatchID)
	assert.Equal(t, id, envs[1].BatchID)
	assert.NotEqual(t, envs[0].JobID, envs[1].JobID)
	assert.Equal(t, 2, envs[0].FetchPage.Page)
	assert.Equal(t, 3, envs[1].FetchPage.Page)
}

func TestDispatcher_Dispatch_EmptyBatch(t *testing.T) {
	store := &fakeStore{}
	queue := &fakePublisher{}

	_, err := newTestDispatcher(store, queue).Dispatch(context.Background(), "EmployeesSync", 1, domain.BatchOptions{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	// Nothing was recorded or published.
	assert.Nil(t, store.created)
	assert.Empty(t, queue.bodies)
}

func TestDispatcher_Append(t *testing.T) {
	store := &fakeStore{}
	queue := &fakePublisher{}

	cmd := domain.Command{
		Type:        domain.CommandDetailChain,
		DetailChain: &domain.DetailChainCommand{Tasks: []domain.DetailTask{{Kind: domain.KindEmployee, RecordID: 1, RegistryID: "e-1"}}},
	}

	err := newTestDispatcher(store, queue).Append(context.Background(), "batch-1", cmd)
	require.NoError(t, err)

	assert.Equal(t, "batch-1", store.addedTo)
	assert.Equal(t, 1, store.addedN)

	envs := decodeEnvelopes(t, queue.bodies)
	require.Len(t, envs, 1)
	assert.Equal(t, "batch-1", envs[0].BatchID)
	assert.NotEmpty(t, envs[0].JobID)
	assert.Equal(t, domain.CommandDetailChain, envs[0].Type)
}
