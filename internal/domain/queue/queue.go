package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the sync state of a queued transaction
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSyncing Status = "SYNCING"
	StatusSynced  Status = "SYNCED"
	StatusFailed  Status = "FAILED"
)

// QueuedTransaction stores one captured sale waiting to be replayed against
// the backend. SYNCED is terminal; a record never leaves it.
type QueuedTransaction struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	Status         Status          `json:"status"`
	RetryCount     int             `json:"retry_count"`
	Retriable      bool            `json:"retriable"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	SyncedAt       *time.Time      `json:"synced_at,omitempty"`
}

// CanTransition reports whether a status change is legal under the record
// state machine. The store enforces the same rules at the SQL level.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusSyncing
	case StatusSyncing:
		return to == StatusSynced || to == StatusFailed
	case StatusFailed:
		return to == StatusSyncing
	case StatusSynced:
		return false
	}
	return false
}

// Counts summarizes the queue by status for the stats API.
type Counts struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// Total returns the number of records across all statuses.
func (c Counts) Total() int {
	return c.Pending + c.Syncing + c.Synced + c.Failed
}
