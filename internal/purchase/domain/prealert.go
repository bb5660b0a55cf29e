package domain

import "time"

// PackagePreAlert statuses.
const (
	PreAlertStatusCreated  = "created"
	PreAlertStatusNotified = "notified"
)

// PackagePreAlert associates one shipment tracking number with a purchase
// draft. (UserID, TrackingNumber) is unique: re-attaching a known tracking
// number upserts instead of creating a second record.
type PackagePreAlert struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"uniqueIndex:idx_user_tracking;not null"`
	DraftID        string    `json:"draft_id" gorm:"index;not null"`
	TrackingNumber string    `json:"tracking_number" gorm:"uniqueIndex:idx_user_tracking;not null"`
	Carrier        string    `json:"carrier"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
