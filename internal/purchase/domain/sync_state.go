package domain

import "time"

// SyncState tracks the per-user incremental sync cursor. The cursor only
// advances after a delta fetch succeeds, so a failed fetch is retried on the
// next trigger instead of silently skipping messages.
type SyncState struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	UserID         string     `json:"user_id" gorm:"uniqueIndex;not null"`
	HistoryCursor  uint64     `json:"history_cursor"`
	LastFullSyncAt *time.Time `json:"last_full_sync_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
