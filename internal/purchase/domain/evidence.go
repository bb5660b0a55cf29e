package domain

import "time"

// Evidence statuses. Pending evidence moves to exactly one terminal status.
const (
	EvidenceStatusPending   = "pending"
	EvidenceStatusExtracted = "extracted"
	EvidenceStatusFailed    = "failed"
	EvidenceStatusDuplicate = "duplicate"
)

// RedactedSnippet replaces the stored snippet once a message reaches a
// terminal status, success or failure, so we retain as little mail content
// as possible.
const RedactedSnippet = "[redacted]"

// Evidence is the durable record of one inbound message that matched a
// merchant and was attempted for extraction. (Channel, SourceMessageID) is
// the idempotency key: re-processing the same raw message never creates a
// second Evidence.
type Evidence struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"index;not null"`
	Channel         string     `json:"channel" gorm:"uniqueIndex:idx_channel_source;not null"`
	SourceMessageID string     `json:"source_message_id" gorm:"uniqueIndex:idx_channel_source;not null"`
	Merchant        string     `json:"merchant"`
	Snippet         string     `json:"snippet"`
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at"`
	Status          string     `json:"status" gorm:"index"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
