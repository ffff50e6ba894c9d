package domain

import "errors"

var (
	// ErrSyncAlreadyRunning is returned by the entry guard when a sync for the
	// same legal entity and category is already in flight.
	ErrSyncAlreadyRunning = errors.New("sync already running for this category")

	// ErrUnknownCategory is returned when a request names an entity category
	// that does not exist.
	ErrUnknownCategory = errors.New("unknown entity category")

	// ErrNothingToResume is returned when no recoverable batch with pending
	// failed jobs exists for the legal entity.
	ErrNothingToResume = errors.New("nothing to resume")

	// ErrLegalEntityNotFound is returned when the legal entity row is missing.
	ErrLegalEntityNotFound = errors.New("legal entity not found")

	// ErrBatchNotFound is returned when a batch row cannot be found.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrRecordNotFound is returned when a syncable record row is missing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrLedgerRowNotFound is returned when a failed-job ledger row has already
	// been taken or never existed.
	ErrLedgerRowNotFound = errors.New("failed job ledger row not found")

	// ErrEmptyBatch is returned when a batch dispatch is attempted with no jobs.
	ErrEmptyBatch = errors.New("refusing to dispatch an empty batch")
)

// RetryableError wraps transient errors that should trigger a requeue
// instead of being recorded in the failure ledger.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
