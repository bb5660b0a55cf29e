package repository

import (
	"errors"
	"time"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// evidenceRepository implements EvidenceRepository interface
type evidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository creates a new instance of evidenceRepository
func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) Create(ev *purchasedomain.Evidence) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = time.Now()
	return r.db.Create(ev).Error
}

func (r *evidenceRepository) FindBySourceMessageID(channel, sourceMessageID string) (*purchasedomain.Evidence, error) {
	var ev purchasedomain.Evidence
	err := r.db.Where("channel = ? AND source_message_id = ?", channel, sourceMessageID).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

func (r *evidenceRepository) FindByID(id string) (*purchasedomain.Evidence, error) {
	var ev purchasedomain.Evidence
	err := r.db.Where("id = ?", id).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

func (r *evidenceRepository) Update(ev *purchasedomain.Evidence) error {
	ev.UpdatedAt = time.Now()
	return r.db.Save(ev).Error
}

func (r *evidenceRepository) ListByUser(userID string, limit int) ([]purchasedomain.Evidence, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []purchasedomain.Evidence
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
