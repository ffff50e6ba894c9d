package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChain() *DetailChainCommand {
	return &DetailChainCommand{
		Tasks: []DetailTask{
			{Kind: KindDeclaration, RecordID: 1, RegistryID: "a"},
			{Kind: KindDeclaration, RecordID: 2, RegistryID: "b"},
			{Kind: KindDeclarationRequest, RecordID: 3, RegistryID: "c"},
		},
	}
}

func TestDetailChainCommand_Current(t *testing.T) {
	chain := testChain()

	task, ok := chain.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), task.RecordID)

	chain.Index = 2
	task, ok = chain.Current()
	require.True(t, ok)
	assert.Equal(t, int64(3), task.RecordID)

	chain.Index = 3
	_, ok = chain.Current()
	assert.False(t, ok)

	chain.Index = -1
	_, ok = chain.Current()
	assert.False(t, ok)
}

func TestDetailChainCommand_Remaining(t *testing.T) {
	chain := testChain()

	// Cursor at the start: the whole chain remains.
	assert.Len(t, chain.Remaining(), 3)

	// Mid-chain: current task is part of the remainder.
	chain.Index = 1
	remaining := chain.Remaining()
	require.Len(t, remaining, 2)
	assert.Equal(t, int64(2), remaining[0].RecordID)
	assert.Equal(t, int64(3), remaining[1].RecordID)

	// Exhausted chain has no remainder.
	chain.Index = 3
	assert.Nil(t, chain.Remaining())
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := &Envelope{
		BatchID: "batch-1",
		JobID:   "job-1",
		Command: Command{
			Type: CommandFetchPage,
			FetchPage: &FetchPageCommand{
				Kind:            KindEmployee,
				LegalEntityID:   42,
				LegalEntityUUID: "uuid-42",
				Page:            2,
			},
		},
	}

	body, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, env.BatchID, decoded.BatchID)
	assert.Equal(t, env.JobID, decoded.JobID)
	assert.Equal(t, CommandFetchPage, decoded.Type)
	require.NotNil(t, decoded.FetchPage)
	assert.Equal(t, 2, decoded.FetchPage.Page)
	assert.Nil(t, decoded.DetailChain)
}
