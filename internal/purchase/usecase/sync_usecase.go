package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "receiptradar-backend/internal/auth/domain"
	authrepo "receiptradar-backend/internal/auth/repository"
	"receiptradar-backend/internal/extraction"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/internal/purchase/repository"
	"receiptradar-backend/pkg/ai"
	"receiptradar-backend/pkg/config"
	"receiptradar-backend/pkg/merchants"
	"receiptradar-backend/pkg/tracking"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// insufficientCoreFields marks evidence whose extraction produced neither
	// an order number nor a tracking number.
	insufficientCoreFields = "insufficient_core_fields"

	// maxFocusChars bounds the text handed to the LLM extractor.
	maxFocusChars = 6000

	// snippetChars bounds the evidence snippet kept while processing.
	snippetChars = 200
)

// purchaseUsecase implements PurchaseUsecase interface
type purchaseUsecase struct {
	userRepo      authrepo.UserRepository
	evidenceRepo  repository.EvidenceRepository
	draftRepo     repository.DraftRepository
	preAlertRepo  repository.PreAlertRepository
	syncStateRepo repository.SyncStateRepository
	providers     map[string]purchasedomain.MessageProvider
	extractor     ai.ExtractorService
	matcher       *DraftMatcher
	config        *config.Config
}

// NewPurchaseUsecase creates a new instance of purchaseUsecase. providers
// maps channel names (gmail, imap) to their message sources.
func NewPurchaseUsecase(
	userRepo authrepo.UserRepository,
	evidenceRepo repository.EvidenceRepository,
	draftRepo repository.DraftRepository,
	preAlertRepo repository.PreAlertRepository,
	syncStateRepo repository.SyncStateRepository,
	providers map[string]purchasedomain.MessageProvider,
	extractor ai.ExtractorService,
	matcher *DraftMatcher,
	cfg *config.Config,
) PurchaseUsecase {
	return &purchaseUsecase{
		userRepo:      userRepo,
		evidenceRepo:  evidenceRepo,
		draftRepo:     draftRepo,
		preAlertRepo:  preAlertRepo,
		syncStateRepo: syncStateRepo,
		providers:     providers,
		extractor:     extractor,
		matcher:       matcher,
		config:        cfg,
	}
}

// route picks the channel, provider and credentials for a user's mailbox.
func (u *purchaseUsecase) route(user *authdomain.User) (string, purchasedomain.MessageProvider, purchasedomain.MailCredentials, error) {
	channel := purchasedomain.ChannelGmail
	if user.Provider == "imap" {
		channel = purchasedomain.ChannelIMAP
	}

	provider, ok := u.providers[channel]
	if !ok {
		return "", nil, purchasedomain.MailCredentials{}, fmt.Errorf("no provider configured for channel %s", channel)
	}

	creds := purchasedomain.MailCredentials{}
	if channel == purchasedomain.ChannelIMAP {
		creds.ServerAddr = user.IMAPServer
		creds.Username = user.IMAPUsername
		creds.Password = user.IMAPPassword
	} else {
		userID := user.ID
		creds.AccessToken = user.GoogleAccessToken
		creds.RefreshToken = user.GoogleRefreshToken
		creds.OnRefresh = func(token *oauth2.Token) error {
			return u.userRepo.UpdateGoogleTokens(userID, token.AccessToken, token.RefreshToken)
		}
	}
	return channel, provider, creds, nil
}

func (u *purchaseUsecase) FullSync(ctx context.Context, userID, query string) (*SyncReport, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	if !user.SyncEnabled {
		log.Printf("[Sync] Sync disabled for user %s, skipping full sync", userID)
		return &SyncReport{}, nil
	}

	channel, provider, creds, err := u.route(user)
	if err != nil {
		return nil, err
	}

	ids, err := u.listCandidates(ctx, provider, creds, query)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Candidates: len(ids)}
	for _, id := range ids {
		if err := u.processMessage(ctx, user, provider, creds, channel, id); err != nil {
			log.Printf("[Sync] Failed to process message %s for user %s: %v", id, userID, err)
			report.Failed++
			continue
		}
		report.Processed++
	}

	if err := u.syncStateRepo.TouchFullSync(userID); err != nil {
		log.Printf("[Sync] Failed to record full sync time for user %s: %v", userID, err)
	}
	log.Printf("[Sync] Full sync for user %s: %d candidates, %d processed, %d failed",
		userID, report.Candidates, report.Processed, report.Failed)
	return report, nil
}

// listCandidates unions the broad listing, each merchant's search query and
// a keyword backstop, deduplicated in first-seen order. An explicit caller
// query replaces the generic recency listing as the broad source. IMAP
// ignores queries, so repeated calls collapse to the same id set.
func (u *purchaseUsecase) listCandidates(ctx context.Context, provider purchasedomain.MessageProvider, creds purchasedomain.MailCredentials, explicitQuery string) ([]string, error) {
	recency := fmt.Sprintf("newer_than:%dd", u.config.SyncLookbackDays)

	broad := recency
	if explicitQuery != "" {
		broad = explicitQuery + " " + recency
	}
	queries := []string{broad}
	for _, m := range merchants.All() {
		if m.SearchQuery != "" {
			queries = append(queries, m.SearchQuery+" "+recency)
		}
	}
	queries = append(queries, "subject:(order OR receipt OR shipped OR tracking) "+recency)

	var ids []string
	seen := make(map[string]bool)
	for i, query := range queries {
		batch, err := provider.ListCandidateIDs(ctx, creds, query, u.config.SyncMaxListPages)
		if err != nil {
			// The first (broadest) listing failing means the mailbox is
			// unreachable; narrower queries failing is tolerable.
			if i == 0 {
				return nil, fmt.Errorf("failed to list messages: %w", err)
			}
			log.Printf("[Sync] Candidate query %q failed: %v", query, err)
			continue
		}
		for _, id := range batch {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (u *purchaseUsecase) IncrementalSync(ctx context.Context, userID string, newCursor uint64) error {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}
	if !user.SyncEnabled {
		log.Printf("[Sync] Sync disabled for user %s, skipping incremental sync", userID)
		return nil
	}

	channel, provider, creds, err := u.route(user)
	if err != nil {
		return err
	}

	state, err := u.syncStateRepo.GetOrCreate(userID)
	if err != nil {
		return err
	}

	// First sighting: record the cursor and start tracking deltas from here.
	if state.HistoryCursor == 0 {
		if newCursor > 0 {
			return u.syncStateRepo.UpdateCursor(userID, newCursor)
		}
		return nil
	}

	ids, err := provider.ListAddedSince(ctx, creds, state.HistoryCursor)
	if errors.Is(err, purchasedomain.ErrDeltaUnsupported) {
		ids, err = provider.ListCandidateIDs(ctx, creds, "", 1)
	}
	if err != nil {
		// Cursor stays put so the next run retries the same window.
		return fmt.Errorf("failed to fetch mailbox delta: %w", err)
	}

	for _, id := range ids {
		if procErr := u.processMessage(ctx, user, provider, creds, channel, id); procErr != nil {
			log.Printf("[Sync] Failed to process message %s for user %s: %v", id, userID, procErr)
		}
	}

	if newCursor > state.HistoryCursor {
		return u.syncStateRepo.UpdateCursor(userID, newCursor)
	}
	return nil
}

// processMessage runs one candidate through the pipeline: idempotency check,
// fetch, classification, evidence, extraction, matching, terminal status.
func (u *purchaseUsecase) processMessage(ctx context.Context, user *authdomain.User, provider purchasedomain.MessageProvider, creds purchasedomain.MailCredentials, channel, id string) error {
	existing, err := u.evidenceRepo.FindBySourceMessageID(channel, id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status != purchasedomain.EvidenceStatusPending {
		return nil
	}

	msg, err := provider.FetchMessage(ctx, creds, id)
	if err != nil {
		return fmt.Errorf("failed to fetch message: %w", err)
	}

	match := extraction.ClassifyMessage(msg)
	if !match.Matched {
		// Non-merchant mail leaves no trace.
		return nil
	}

	ev := existing
	if ev == nil {
		ev = &purchasedomain.Evidence{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			Channel:         channel,
			SourceMessageID: id,
			Merchant:        match.Merchant,
			Snippet:         evidenceSnippet(msg),
			ReceivedAt:      msg.ReceivedAt,
			Status:          purchasedomain.EvidenceStatusPending,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		if err := u.evidenceRepo.Create(ev); err != nil {
			return fmt.Errorf("failed to create evidence: %w", err)
		}
	}

	res, extractErr := u.extract(ctx, provider, creds, msg, match.Merchant)
	if extractErr != nil {
		return u.finalize(ev, purchasedomain.EvidenceStatusFailed, extractErr.Error())
	}
	if res == nil || !res.HasCoreFields() {
		return u.finalize(ev, purchasedomain.EvidenceStatusFailed, insufficientCoreFields)
	}

	if _, _, err := u.matcher.Apply(ctx, user.ID, ev.ID, res); err != nil {
		return u.finalize(ev, purchasedomain.EvidenceStatusFailed, err.Error())
	}
	return u.finalize(ev, purchasedomain.EvidenceStatusExtracted, "")
}

// extract runs the extraction ladder: deterministic template first, then the
// LLM over focused text, then the vision path over an image attachment when
// the text path fails.
func (u *purchaseUsecase) extract(ctx context.Context, provider purchasedomain.MessageProvider, creds purchasedomain.MailCredentials, msg *purchasedomain.InboundMessage, merchant string) (*purchasedomain.ExtractionResult, error) {
	text := msg.PlainBody
	if text == "" && msg.HTMLBody != "" {
		text = extraction.StripHTML(msg.HTMLBody)
	}

	if res, ok := extraction.ExtractDeterministic(merchant, msg.Subject, text); ok {
		return res, nil
	}

	detected := tracking.Detect(msg.Subject + "\n" + text)
	focused := extraction.FocusText(msg.Subject+"\n"+text, maxFocusChars)

	raw, err := u.extractor.ExtractPurchase(ctx, focused, msg.Channel, merchant)
	if err == nil {
		return extraction.Normalize(raw, detected), nil
	}
	log.Printf("[Sync] Text extraction failed for message %s: %v", msg.ID, err)

	// Vision path: some receipts arrive as an attached scan with no useful
	// body text.
	if att := firstImageAttachment(msg); att != nil {
		mimeType, data, fetchErr := provider.FetchAttachment(ctx, creds, msg.ID, att.ID)
		if fetchErr != nil {
			return nil, fmt.Errorf("text extraction failed and attachment fetch failed: %w", fetchErr)
		}
		raw, imgErr := u.extractor.ExtractPurchaseFromImage(ctx, mimeType, data, merchant)
		if imgErr != nil {
			return nil, fmt.Errorf("text and image extraction both failed: %w", imgErr)
		}
		return extraction.Normalize(raw, detected), nil
	}
	return nil, fmt.Errorf("extraction failed: %w", err)
}

// finalize moves evidence to a terminal status. The snippet is redacted
// unconditionally: once processing ends we keep no mail content.
func (u *purchaseUsecase) finalize(ev *purchasedomain.Evidence, status, errMsg string) error {
	now := time.Now()
	ev.Status = status
	ev.Error = errMsg
	ev.ProcessedAt = &now
	ev.Snippet = purchasedomain.RedactedSnippet
	ev.UpdatedAt = now
	return u.evidenceRepo.Update(ev)
}

func (u *purchaseUsecase) ListDrafts(userID string, limit int) ([]purchasedomain.PurchaseDraft, error) {
	return u.draftRepo.ListByUser(userID, limit)
}

func (u *purchaseUsecase) ListEvidence(userID string, limit int) ([]purchasedomain.Evidence, error) {
	return u.evidenceRepo.ListByUser(userID, limit)
}

func (u *purchaseUsecase) ListPreAlerts(userID string, limit int) ([]purchasedomain.PackagePreAlert, error) {
	return u.preAlertRepo.ListByUser(userID, limit)
}

func (u *purchaseUsecase) SetDraftStatus(userID, draftID, status string) error {
	switch status {
	case purchasedomain.DraftStatusConfirmed, purchasedomain.DraftStatusRejected, purchasedomain.DraftStatusDraft:
	default:
		return fmt.Errorf("invalid draft status %q", status)
	}
	return u.draftRepo.UpdateStatus(userID, draftID, status)
}

// evidenceSnippet picks the stored pending-state snippet: the provider
// snippet when present, otherwise a keyword-focused slice of the body.
func evidenceSnippet(msg *purchasedomain.InboundMessage) string {
	if s := strings.TrimSpace(msg.Snippet); s != "" {
		return extraction.Snippet(s, snippetChars)
	}
	body := msg.PlainBody
	if body == "" {
		body = extraction.StripHTML(msg.HTMLBody)
	}
	return extraction.Snippet(body, snippetChars)
}

func firstImageAttachment(msg *purchasedomain.InboundMessage) *purchasedomain.Attachment {
	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if att.ID == "" {
			continue
		}
		if strings.HasPrefix(att.MimeType, "image/") || att.MimeType == "application/pdf" {
			return att
		}
	}
	return nil
}
