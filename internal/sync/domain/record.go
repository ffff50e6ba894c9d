package domain

import (
	"encoding/json"
	"time"
)

// LegalEntity is the tenant organization owning all synced data.
type LegalEntity struct {
	ID         int64     `db:"id"`
	RegistryID string    `db:"registry_id"`
	Name       string    `db:"name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// User is the operator triggering a sync. RegistryID carries the user's own
// registry employee id, used to scope role-scoped listings.
type User struct {
	ID         string
	RegistryID string
}

// Record is a locally persisted row mirroring one registry entity. Summary
// holds the fields returned by the paginated list endpoint; Detail is filled
// in by the detail-fetch chain.
type Record struct {
	ID            int64           `db:"id"`
	Kind          EntityKind      `db:"kind"`
	LegalEntityID int64           `db:"legal_entity_id"`
	RegistryID    *string         `db:"registry_id"`
	Summary       json.RawMessage `db:"summary"`
	Detail        json.RawMessage `db:"detail"`
	SyncStatus    SyncStatus      `db:"sync_status"`
	SyncedAt      *time.Time      `db:"synced_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Summary is one entry of a registry list page, ready to be upserted.
type Summary struct {
	RegistryID string
	Payload    json.RawMessage
}

// Notification is a terminal-outcome message for the initiating user.
type Notification struct {
	ID            int64      `db:"id"`
	UserID        string     `db:"user_id"`
	LegalEntityID int64      `db:"legal_entity_id"`
	Level         string     `db:"level"`
	Message       string     `db:"message"`
	CreatedAt     time.Time  `db:"created_at"`
	ReadAt        *time.Time `db:"read_at"`
}

// Notification levels.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
)
