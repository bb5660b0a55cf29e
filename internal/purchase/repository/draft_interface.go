package repository

import purchasedomain "receiptradar-backend/internal/purchase/domain"

// DraftRepository defines the interface for purchase draft persistence.
type DraftRepository interface {
	Create(draft *purchasedomain.PurchaseDraft) error
	Update(draft *purchasedomain.PurchaseDraft) error
	// FindByID returns (nil, nil) when the draft does not exist.
	FindByID(id string) (*purchasedomain.PurchaseDraft, error)
	// FindByOrderNumber finds the user's draft whose order-number set
	// contains the given number. Returns (nil, nil) on no hit.
	FindByOrderNumber(userID, orderNumber string) (*purchasedomain.PurchaseDraft, error)
	// FindOthersByOrderNumber is FindByOrderNumber excluding one draft id,
	// returning all hits; used by the consolidation pass.
	FindOthersByOrderNumber(userID, orderNumber, excludeID string) ([]purchasedomain.PurchaseDraft, error)
	// AbsorbDraft atomically persists the already-merged primary, re-points
	// the duplicate's pre-alerts at the primary, marks the duplicate's
	// origin evidence as duplicate and deletes the duplicate draft. Either
	// everything commits or nothing does.
	AbsorbDraft(primary *purchasedomain.PurchaseDraft, duplicateID string) error
	// UpdateStatus sets the draft lifecycle status for a user's draft.
	UpdateStatus(userID, draftID, status string) error
	ListByUser(userID string, limit int) ([]purchasedomain.PurchaseDraft, error)
}
