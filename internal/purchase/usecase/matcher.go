package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	authrepo "receiptradar-backend/internal/auth/repository"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/internal/purchase/repository"
	"receiptradar-backend/pkg/fcm"
	"receiptradar-backend/pkg/merchants"

	"github.com/google/uuid"
)

// PushClient sends push notifications to device tokens. *fcm.Client
// satisfies it; tests substitute a fake.
type PushClient interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// DraftMatcher folds extraction results into purchase drafts: find the
// owning draft by order number or tracking number, create it when none
// exists, merge when one does, then consolidate drafts that turned out to
// describe the same purchase.
type DraftMatcher struct {
	draftRepo    repository.DraftRepository
	preAlertRepo repository.PreAlertRepository
	fcmRepo      authrepo.FCMTokenRepository
	pushClient   PushClient
}

func NewDraftMatcher(
	draftRepo repository.DraftRepository,
	preAlertRepo repository.PreAlertRepository,
	fcmRepo authrepo.FCMTokenRepository,
	pushClient PushClient,
) *DraftMatcher {
	return &DraftMatcher{
		draftRepo:    draftRepo,
		preAlertRepo: preAlertRepo,
		fcmRepo:      fcmRepo,
		pushClient:   pushClient,
	}
}

// Apply routes one extraction result into the draft store and returns the
// resulting draft. created reports whether a new draft was made rather than
// an existing one merged.
func (m *DraftMatcher) Apply(ctx context.Context, userID, evidenceID string, res *purchasedomain.ExtractionResult) (*purchasedomain.PurchaseDraft, bool, error) {
	draft, err := m.findExisting(userID, res)
	if err != nil {
		return nil, false, err
	}

	created := false
	if draft == nil {
		draft, err = m.createDraft(userID, evidenceID, res)
		if err != nil {
			return nil, false, err
		}
		created = true
	} else if err := m.mergeIntoDraft(draft, res); err != nil {
		return nil, false, err
	}

	newAlerts, err := m.attachPreAlerts(userID, draft.ID, res)
	if err != nil {
		return nil, false, err
	}

	if err := m.consolidate(userID, draft); err != nil {
		return nil, false, err
	}

	if len(newAlerts) > 0 {
		m.notifyPreAlerts(ctx, userID, draft, newAlerts)
	}
	return draft, created, nil
}

// findExisting looks up the draft this result belongs to: first by any of
// its order numbers, then by any of its tracking numbers through the
// pre-alert table.
func (m *DraftMatcher) findExisting(userID string, res *purchasedomain.ExtractionResult) (*purchasedomain.PurchaseDraft, error) {
	for _, number := range res.OrderNumberList() {
		draft, err := m.draftRepo.FindByOrderNumber(userID, number)
		if err != nil {
			return nil, err
		}
		if draft != nil {
			return draft, nil
		}
	}

	for _, hit := range res.Trackings {
		alert, err := m.preAlertRepo.FindByTrackingNumber(userID, hit.Number)
		if err != nil {
			return nil, err
		}
		if alert == nil {
			continue
		}
		draft, err := m.draftRepo.FindByID(alert.DraftID)
		if err != nil {
			return nil, err
		}
		if draft != nil {
			return draft, nil
		}
	}
	return nil, nil
}

func (m *DraftMatcher) createDraft(userID, evidenceID string, res *purchasedomain.ExtractionResult) (*purchasedomain.PurchaseDraft, error) {
	now := time.Now()
	draft := &purchasedomain.PurchaseDraft{
		ID:             uuid.New().String(),
		UserID:         userID,
		EvidenceID:     evidenceID,
		Merchant:       res.Merchant,
		StoreName:      res.StoreName,
		OrderNumbers:   purchasedomain.JoinOrderNumbers(res.OrderNumberList()),
		ItemsSummary:   res.ItemsSummary,
		ValueUsd:       res.ValueUsd,
		Currency:       res.Currency,
		OriginalValue:  res.OriginalValue,
		Confidence:     res.Confidence,
		InvoicePresent: res.InvoicePresent,
		Status:         purchasedomain.DraftStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if draft.StoreName == "" && draft.Merchant != "" {
		draft.StoreName = merchants.DisplayNameFor(draft.Merchant)
	}
	draft.RecomputeMissingFields(len(res.Trackings) > 0)

	if err := m.draftRepo.Create(draft); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

// mergeIntoDraft folds the result into an existing draft under the central
// precedence rules, then refreshes the missing-field list using the draft's
// full tracking state.
func (m *DraftMatcher) mergeIntoDraft(draft *purchasedomain.PurchaseDraft, res *purchasedomain.ExtractionResult) error {
	changed := purchasedomain.UpdateFromResult(res).ApplyTo(draft)

	hasTracking := len(res.Trackings) > 0
	if !hasTracking {
		count, err := m.preAlertRepo.CountByDraft(draft.ID)
		if err != nil {
			return err
		}
		hasTracking = count > 0
	}

	before := draft.MissingFields
	draft.RecomputeMissingFields(hasTracking)

	if changed || draft.MissingFields != before {
		draft.UpdatedAt = time.Now()
		if err := m.draftRepo.Update(draft); err != nil {
			return fmt.Errorf("failed to update draft: %w", err)
		}
	}
	return nil
}

// attachPreAlerts upserts one pre-alert per tracking number and returns the
// alerts that were newly created.
func (m *DraftMatcher) attachPreAlerts(userID, draftID string, res *purchasedomain.ExtractionResult) ([]purchasedomain.PackagePreAlert, error) {
	var created []purchasedomain.PackagePreAlert
	for _, hit := range res.Trackings {
		alert := &purchasedomain.PackagePreAlert{
			ID:             uuid.New().String(),
			UserID:         userID,
			DraftID:        draftID,
			TrackingNumber: hit.Number,
			Carrier:        hit.Carrier,
			Status:         purchasedomain.PreAlertStatusCreated,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		isNew, err := m.preAlertRepo.Upsert(alert)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert pre-alert: %w", err)
		}
		if isNew {
			created = append(created, *alert)
		}
	}
	return created, nil
}

// consolidate folds away other drafts sharing any of the primary's order
// numbers. Each absorption can widen the primary's order-number set, so the
// scan repeats until a pass finds no duplicates.
func (m *DraftMatcher) consolidate(userID string, primary *purchasedomain.PurchaseDraft) error {
	for {
		absorbed := false
		for _, number := range purchasedomain.ParseOrderNumbers(primary.OrderNumbers) {
			dups, err := m.draftRepo.FindOthersByOrderNumber(userID, number, primary.ID)
			if err != nil {
				return err
			}
			for i := range dups {
				dup := dups[i]
				purchasedomain.UpdateFromDraft(&dup).ApplyTo(primary)
				primary.UpdatedAt = time.Now()
				if err := m.draftRepo.AbsorbDraft(primary, dup.ID); err != nil {
					return fmt.Errorf("failed to absorb duplicate draft: %w", err)
				}
				log.Printf("[Matcher] Draft %s absorbed duplicate %s", primary.ID, dup.ID)
				absorbed = true
			}
		}
		if !absorbed {
			break
		}
	}

	count, err := m.preAlertRepo.CountByDraft(primary.ID)
	if err != nil {
		return err
	}
	before := primary.MissingFields
	primary.RecomputeMissingFields(count > 0)
	if primary.MissingFields != before {
		primary.UpdatedAt = time.Now()
		return m.draftRepo.Update(primary)
	}
	return nil
}

// notifyPreAlerts pushes a notification for newly created pre-alerts. Push
// failures are logged, never fatal to the pipeline.
func (m *DraftMatcher) notifyPreAlerts(ctx context.Context, userID string, draft *purchasedomain.PurchaseDraft, alerts []purchasedomain.PackagePreAlert) {
	if m.pushClient == nil || m.fcmRepo == nil {
		return
	}

	tokens, err := m.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Matcher] Failed to load FCM tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	store := draft.StoreName
	if store == "" {
		store = merchants.DisplayNameFor(draft.Merchant)
	}
	body := fmt.Sprintf("Tracking %s", alerts[0].TrackingNumber)
	if len(alerts) > 1 {
		body = fmt.Sprintf("%d packages on the way", len(alerts))
	}

	failed, err := m.pushClient.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: fmt.Sprintf("Package incoming from %s", store),
		Body:  body,
		Data: map[string]string{
			"type":     "pre_alert",
			"draft_id": draft.ID,
		},
	})
	if err != nil {
		log.Printf("[Matcher] Failed to push pre-alert notification: %v", err)
		return
	}
	for _, token := range failed {
		if delErr := m.fcmRepo.DeleteToken(token); delErr != nil {
			log.Printf("[Matcher] Failed to prune dead FCM token: %v", delErr)
		}
	}
}
