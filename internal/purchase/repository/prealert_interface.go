package repository

import purchasedomain "receiptradar-backend/internal/purchase/domain"

// PreAlertRepository defines the interface for package pre-alert persistence.
type PreAlertRepository interface {
	// Upsert creates the pre-alert or, when (user, tracking number) already
	// exists, refreshes its draft link and fills a previously empty
	// carrier. Reports whether a new record was created.
	Upsert(p *purchasedomain.PackagePreAlert) (bool, error)
	// FindByTrackingNumber returns (nil, nil) when the user has no
	// pre-alert for the number.
	FindByTrackingNumber(userID, trackingNumber string) (*purchasedomain.PackagePreAlert, error)
	CountByDraft(draftID string) (int64, error)
	ListByDraft(draftID string) ([]purchasedomain.PackagePreAlert, error)
	ListByUser(userID string, limit int) ([]purchasedomain.PackagePreAlert, error)
}
