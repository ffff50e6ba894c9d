package domain

// CommandType discriminates the serialized job payloads carried on the queue.
type CommandType string

const (
	// CommandFetchPage fetches one page of a registry listing and persists it.
	CommandFetchPage CommandType = "fetch_page"
	// CommandDetailChain walks an ordered list of detail-fetch tasks.
	CommandDetailChain CommandType = "detail_chain"
)

// Command is a serializable unit of batch work. Exactly one of the payload
// fields is set, matching Type.
type Command struct {
	Type        CommandType         `json:"type"`
	FetchPage   *FetchPageCommand   `json:"fetch_page,omitempty"`
	DetailChain *DetailChainCommand `json:"detail_chain,omitempty"`
}

// Envelope is the wire form of a command on the sync queue. JobID stays
// stable across republished continuations of the same logical job.
type Envelope struct {
	BatchID string `json:"batch_id"`
	JobID   string `json:"job_id"`
	Command
}

// FetchPageCommand asks the worker to fetch one registry list page for a
// legal entity and persist the returned summaries.
type FetchPageCommand struct {
	Kind            EntityKind `json:"kind"`
	LegalEntityID   int64      `json:"legal_entity_id"`
	LegalEntityUUID string     `json:"legal_entity_uuid"`
	ScopeEmployeeID string     `json:"scope_employee_id,omitempty"`
	Page            int        `json:"page"`
}

// DetailTask is one link of a detail-fetch chain: fetch the full detail of a
// single locally-known record and upsert it.
type DetailTask struct {
	Kind       EntityKind `json:"kind"`
	RecordID   int64      `json:"record_id"`
	RegistryID string     `json:"registry_id"`
}

// DetailChainCommand carries a whole chain as an ordered task list plus a
// cursor. The worker executes the task at Index and republishes the command
// with Index+1, so execution order is exactly the list order and the chain is
// trivially serializable.
type DetailChainCommand struct {
	Tasks []DetailTask `json:"tasks"`
	Index int          `json:"index"`
}

// Current returns the task at the cursor, if any.
func (c *DetailChainCommand) Current() (DetailTask, bool) {
	if c.Index < 0 || c.Index >= len(c.Tasks) {
		return DetailTask{}, false
	}
	return c.Tasks[c.Index], true
}

// Remaining returns the unexecuted tail of the chain, current task included.
// This is what gets written to the failure ledger so that resume restores the
// whole tail, not just the link that failed.
func (c *DetailChainCommand) Remaining() []DetailTask {
	if c.Index < 0 || c.Index >= len(c.Tasks) {
		return nil
	}
	return c.Tasks[c.Index:]
}
