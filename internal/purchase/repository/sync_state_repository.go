package repository

import (
	"errors"
	"time"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncStateRepository defines the interface for per-user sync cursor state.
type SyncStateRepository interface {
	// GetOrCreate returns the user's sync state, creating an empty one on
	// first use.
	GetOrCreate(userID string) (*purchasedomain.SyncState, error)
	// UpdateCursor advances the incremental cursor. Callers only invoke
	// this after a successful delta fetch.
	UpdateCursor(userID string, cursor uint64) error
	// TouchFullSync records the completion time of a full sync.
	TouchFullSync(userID string) error
}

// syncStateRepository implements SyncStateRepository interface
type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a new instance of syncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) GetOrCreate(userID string) (*purchasedomain.SyncState, error) {
	var state purchasedomain.SyncState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = purchasedomain.SyncState{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if createErr := r.db.Create(&state).Error; createErr != nil {
			return nil, createErr
		}
		return &state, nil
	} else if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) UpdateCursor(userID string, cursor uint64) error {
	return r.db.Model(&purchasedomain.SyncState{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"history_cursor": cursor, "updated_at": time.Now()}).Error
}

func (r *syncStateRepository) TouchFullSync(userID string) error {
	now := time.Now()
	res := r.db.Model(&purchasedomain.SyncState{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"last_full_sync_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// A full sync can run before any incremental sync created state.
	state := purchasedomain.SyncState{
		ID:             uuid.New().String(),
		UserID:         userID,
		LastFullSyncAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.db.Create(&state).Error
}
