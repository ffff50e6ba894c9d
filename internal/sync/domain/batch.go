package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Batch is the durable record of one logical group of sync jobs. The queue
// side of the runtime only ever sees envelopes referencing the batch id; all
// aggregate bookkeeping lives here.
type Batch struct {
	ID            string       `db:"batch_id"`
	Name          string       `db:"name"`
	LegalEntityID int64        `db:"legal_entity_id"`
	TotalJobs     int          `db:"total_jobs"`
	PendingJobs   int          `db:"pending_jobs"`
	FailedJobs    int          `db:"failed_jobs"`
	FailedJobIDs  StringList   `db:"failed_job_ids"`
	Options       BatchOptions `db:"options"`
	CreatedAt     time.Time    `db:"created_at"`
	CancelledAt   *time.Time   `db:"cancelled_at"`
	FinishedAt    *time.Time   `db:"finished_at"`
}

// BatchOptions is shared state threaded through every job of a batch. The
// registry token is sealed before it is written here; jobs open it at
// execution time and never persist the plaintext.
type BatchOptions struct {
	SealedToken string       `json:"sealed_token"`
	UserID      string       `json:"user_id"`
	Categories  []EntityKind `json:"categories"`
}

// HasCategory reports whether kind is already tracked by these options.
func (o BatchOptions) HasCategory(kind EntityKind) bool {
	for _, c := range o.Categories {
		if c == kind {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for the jsonb options column.
func (o BatchOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for the jsonb options column.
func (o *BatchOptions) Scan(src interface{}) error {
	return scanJSON(src, o)
}

// StringList maps a jsonb array of strings.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}

// FailedJob is one row of the failed-job ledger: the serialized command of a
// job that failed, kept until resume/recovery re-dispatches it.
type FailedJob struct {
	ID       string          `db:"id"`
	BatchID  string          `db:"batch_id"`
	Payload  json.RawMessage `db:"payload"`
	Reason   string          `db:"reason"`
	FailedAt time.Time       `db:"failed_at"`
}
