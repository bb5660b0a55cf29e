package repository

import purchasedomain "receiptradar-backend/internal/purchase/domain"

// EvidenceRepository defines the interface for evidence persistence.
type EvidenceRepository interface {
	// Create stores a new evidence record (status pending).
	Create(ev *purchasedomain.Evidence) error
	// FindBySourceMessageID looks up evidence by its idempotency key.
	// Returns (nil, nil) when none exists.
	FindBySourceMessageID(channel, sourceMessageID string) (*purchasedomain.Evidence, error)
	// FindByID returns one evidence record, (nil, nil) when missing.
	FindByID(id string) (*purchasedomain.Evidence, error)
	// Update persists mutations to an existing record.
	Update(ev *purchasedomain.Evidence) error
	// ListByUser returns the newest evidence records for a user.
	ListByUser(userID string, limit int) ([]purchasedomain.Evidence, error)
}
