package domain

// SyncStatus tracks how far a legal entity's category (or a single record) has
// progressed through synchronization with the registry.
type SyncStatus string

const (
	// StatusNone means the category has never been synced.
	StatusNone SyncStatus = ""
	// StatusPartial means summary data is present but detail has not been fetched yet.
	StatusPartial SyncStatus = "PARTIAL"
	// StatusProcessing means a sync batch is currently in flight.
	StatusProcessing SyncStatus = "PROCESSING"
	// StatusCompleted means the last sync cycle finished successfully.
	StatusCompleted SyncStatus = "COMPLETED"
	// StatusPaused means a sync was interrupted and may be resumed.
	StatusPaused SyncStatus = "PAUSED"
	// StatusFailed means at least one job of the last batch failed.
	StatusFailed SyncStatus = "FAILED"
)

// InProgress reports whether a sync is currently running for this status.
// A new sync must not be started while one is in progress.
func (s SyncStatus) InProgress() bool {
	switch s {
	case StatusNone, StatusCompleted, StatusPaused, StatusFailed:
		return false
	}
	return true
}

// Resumable reports whether a previous sync left recoverable work behind.
func (s SyncStatus) Resumable() bool {
	return s == StatusPaused || s == StatusFailed
}
