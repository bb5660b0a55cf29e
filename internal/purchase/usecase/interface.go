package usecase

import (
	"context"

	purchasedomain "receiptradar-backend/internal/purchase/domain"
)

// SyncReport summarizes one sync run.
type SyncReport struct {
	Candidates int `json:"candidates"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
}

// PurchaseUsecase defines the interface for the receipt sync pipeline and
// its read surface.
type PurchaseUsecase interface {
	// FullSync scans the user's mailbox over the configured lookback window
	// and processes every candidate message. A non-empty query narrows the
	// broad listing to messages matching it. Per-candidate failures are
	// isolated; the run continues.
	FullSync(ctx context.Context, userID, query string) (*SyncReport, error)
	// IncrementalSync processes messages added since the stored cursor and
	// advances it to newCursor. The cursor moves only after the delta fetch
	// succeeds, so a failed run is retried from the same position.
	IncrementalSync(ctx context.Context, userID string, newCursor uint64) error

	ListDrafts(userID string, limit int) ([]purchasedomain.PurchaseDraft, error)
	ListEvidence(userID string, limit int) ([]purchasedomain.Evidence, error)
	ListPreAlerts(userID string, limit int) ([]purchasedomain.PackagePreAlert, error)
	// SetDraftStatus moves a draft through its lifecycle
	// (draft -> confirmed/rejected).
	SetDraftStatus(userID, draftID, status string) error
}
