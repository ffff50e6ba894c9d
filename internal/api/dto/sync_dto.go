package dto

// TriggerSyncResponse reports the outcome of a sync trigger.
type TriggerSyncResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	BatchID string `json:"batch_id,omitempty"`
}

// SyncStatusResponse maps every entity category to its sync status.
type SyncStatusResponse struct {
	LegalEntityID int64             `json:"legal_entity_id"`
	Statuses      map[string]string `json:"statuses"`
}

type ListBatchesRequest struct {
	LegalEntityID int64  `form:"legal_entity_id"`
	Name          string `form:"name"`
	PageSize      int    `form:"page_size"`
	Cursor        string `form:"cursor"`
}

type ListBatchesResponse struct {
	Batches    []BatchDTO `json:"batches"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type BatchDTO struct {
	BatchID       string   `json:"batch_id"`
	Name          string   `json:"name"`
	LegalEntityID int64    `json:"legal_entity_id"`
	TotalJobs     int      `json:"total_jobs"`
	PendingJobs   int      `json:"pending_jobs"`
	FailedJobs    int      `json:"failed_jobs"`
	Categories    []string `json:"categories"`
	CreatedAt     string   `json:"created_at"`
	CancelledAt   string   `json:"cancelled_at,omitempty"`
	FinishedAt    string   `json:"finished_at,omitempty"`
}
