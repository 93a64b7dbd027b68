package domain

import "time"

// SyncCursor is the persisted per-account sync state. The in-progress
// flag is not stored; it lives in the process lock table.
type SyncCursor struct {
	AccountID    string    `gorm:"primaryKey"`
	LastSyncedAt time.Time `gorm:"not null"`
	LastReport   string    `gorm:"type:text"`
	UpdatedAt    time.Time
}

// SyncReport summarizes one FetchBatch call.
type SyncReport struct {
	Fetched              int           `json:"fetched"`
	New                  int           `json:"new"`
	SkippedDuplicate     int           `json:"skipped_duplicate"`
	ClassifiedJobRelated int           `json:"classified_job_related"`
	ParseFailed          int           `json:"parse_failed"`
	Linked               int           `json:"linked"`
	Failures             []SyncFailure `json:"failures"`
	StartedAt            time.Time     `json:"started_at"`
	FinishedAt           time.Time     `json:"finished_at"`
	Aborted              bool          `json:"aborted"`
	Error                string        `json:"error,omitempty"`
}

// SyncFailure records a message that could not be parsed.
type SyncFailure struct {
	MessageID string `json:"message_id"`
	Reason    string `json:"reason"`
}

type SyncStatus struct {
	InProgress   bool        `json:"in_progress"`
	LastSyncedAt *time.Time  `json:"last_synced_at"`
	LastReport   *SyncReport `json:"last_report"`
	StoredEmails int64       `json:"stored_emails"`
}
