package repository

import (
	"errors"
	"time"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// draftRepository implements DraftRepository interface
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new instance of draftRepository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(draft *purchasedomain.PurchaseDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	draft.CreatedAt = time.Now()
	draft.UpdatedAt = time.Now()
	return r.db.Create(draft).Error
}

func (r *draftRepository) Update(draft *purchasedomain.PurchaseDraft) error {
	draft.UpdatedAt = time.Now()
	return r.db.Save(draft).Error
}

func (r *draftRepository) FindByID(id string) (*purchasedomain.PurchaseDraft, error) {
	var draft purchasedomain.PurchaseDraft
	err := r.db.Where("id = ?", id).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

// orderNumberPattern matches one member of the comma-joined set by wrapping
// both sides in commas, so "A1" never matches "A12".
func orderNumberPattern(orderNumber string) string {
	return "%," + orderNumber + ",%"
}

func (r *draftRepository) FindByOrderNumber(userID, orderNumber string) (*purchasedomain.PurchaseDraft, error) {
	var draft purchasedomain.PurchaseDraft
	err := r.db.
		Where("user_id = ? AND (',' || order_numbers || ',') LIKE ?", userID, orderNumberPattern(orderNumber)).
		First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) FindOthersByOrderNumber(userID, orderNumber, excludeID string) ([]purchasedomain.PurchaseDraft, error) {
	var drafts []purchasedomain.PurchaseDraft
	err := r.db.
		Where("user_id = ? AND id <> ? AND (',' || order_numbers || ',') LIKE ?", userID, excludeID, orderNumberPattern(orderNumber)).
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *draftRepository) AbsorbDraft(primary *purchasedomain.PurchaseDraft, duplicateID string) error {
	primary.UpdatedAt = time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		var dup purchasedomain.PurchaseDraft
		if err := tx.Where("id = ?", duplicateID).First(&dup).Error; err != nil {
			return err
		}

		if err := tx.Save(primary).Error; err != nil {
			return err
		}
		if err := tx.Model(&purchasedomain.PackagePreAlert{}).
			Where("draft_id = ?", duplicateID).
			Updates(map[string]interface{}{"draft_id": primary.ID, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if dup.EvidenceID != "" {
			if err := tx.Model(&purchasedomain.Evidence{}).
				Where("id = ?", dup.EvidenceID).
				Updates(map[string]interface{}{"status": purchasedomain.EvidenceStatusDuplicate, "updated_at": time.Now()}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&purchasedomain.PurchaseDraft{}, "id = ?", duplicateID).Error
	})
}

func (r *draftRepository) UpdateStatus(userID, draftID, status string) error {
	result := r.db.Model(&purchasedomain.PurchaseDraft{}).
		Where("id = ? AND user_id = ?", draftID, userID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("draft not found")
	}
	return nil
}

func (r *draftRepository) ListByUser(userID string, limit int) ([]purchasedomain.PurchaseDraft, error) {
	if limit <= 0 {
		limit = 50
	}
	var drafts []purchasedomain.PurchaseDraft
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}
