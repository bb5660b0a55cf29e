package repository

import (
	"errors"
	"time"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// preAlertRepository implements PreAlertRepository interface
type preAlertRepository struct {
	db *gorm.DB
}

// NewPreAlertRepository creates a new instance of preAlertRepository
func NewPreAlertRepository(db *gorm.DB) PreAlertRepository {
	return &preAlertRepository{db: db}
}

func (r *preAlertRepository) Upsert(p *purchasedomain.PackagePreAlert) (bool, error) {
	var existing purchasedomain.PackagePreAlert
	err := r.db.Where("user_id = ? AND tracking_number = ?", p.UserID, p.TrackingNumber).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = purchasedomain.PreAlertStatusCreated
		}
		p.CreatedAt = time.Now()
		p.UpdatedAt = time.Now()
		if createErr := r.db.Create(p).Error; createErr != nil {
			return false, createErr
		}
		return true, nil
	} else if err != nil {
		return false, err
	}

	// Known tracking number: no-op apart from re-linking and filling an
	// empty carrier.
	existing.DraftID = p.DraftID
	if existing.Carrier == "" && p.Carrier != "" {
		existing.Carrier = p.Carrier
	}
	existing.UpdatedAt = time.Now()
	if saveErr := r.db.Save(&existing).Error; saveErr != nil {
		return false, saveErr
	}
	*p = existing
	return false, nil
}

func (r *preAlertRepository) FindByTrackingNumber(userID, trackingNumber string) (*purchasedomain.PackagePreAlert, error) {
	var p purchasedomain.PackagePreAlert
	err := r.db.Where("user_id = ? AND tracking_number = ?", userID, trackingNumber).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *preAlertRepository) CountByDraft(draftID string) (int64, error) {
	var count int64
	err := r.db.Model(&purchasedomain.PackagePreAlert{}).Where("draft_id = ?", draftID).Count(&count).Error
	return count, err
}

func (r *preAlertRepository) ListByDraft(draftID string) ([]purchasedomain.PackagePreAlert, error) {
	var list []purchasedomain.PackagePreAlert
	err := r.db.Where("draft_id = ?", draftID).Order("created_at ASC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *preAlertRepository) ListByUser(userID string, limit int) ([]purchasedomain.PackagePreAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []purchasedomain.PackagePreAlert
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
