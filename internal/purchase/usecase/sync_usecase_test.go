package usecase

import (
	"context"
	"testing"

	authdomain "receiptradar-backend/internal/auth/domain"
	authrepo "receiptradar-backend/internal/auth/repository"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/internal/purchase/repository"
	"receiptradar-backend/pkg/ai"
	"receiptradar-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type syncEnv struct {
	db            *gorm.DB
	userRepo      authrepo.UserRepository
	evidenceRepo  repository.EvidenceRepository
	draftRepo     repository.DraftRepository
	preAlertRepo  repository.PreAlertRepository
	syncStateRepo repository.SyncStateRepository
	provider      *fakeProvider
	extractor     *fakeExtractor
	usecase       PurchaseUsecase
	user          *authdomain.User
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
		&purchasedomain.Evidence{},
		&purchasedomain.PurchaseDraft{},
		&purchasedomain.PackagePreAlert{},
		&purchasedomain.SyncState{},
	))

	env := &syncEnv{
		db:            db,
		userRepo:      authrepo.NewUserRepository(db),
		evidenceRepo:  repository.NewEvidenceRepository(db),
		draftRepo:     repository.NewDraftRepository(db),
		preAlertRepo:  repository.NewPreAlertRepository(db),
		syncStateRepo: repository.NewSyncStateRepository(db),
		provider:      newFakeProvider(),
		extractor:     &fakeExtractor{},
	}

	env.user = &authdomain.User{
		Email:       "buyer@example.com",
		Provider:    "google",
		SyncEnabled: true,
	}
	require.NoError(t, env.userRepo.Create(env.user))

	fcmRepo := authrepo.NewFCMTokenRepository(db)
	matcher := NewDraftMatcher(env.draftRepo, env.preAlertRepo, fcmRepo, nil)
	cfg := &config.Config{SyncLookbackDays: 30, SyncMaxListPages: 1}

	providers := map[string]purchasedomain.MessageProvider{
		purchasedomain.ChannelGmail: env.provider,
		purchasedomain.ChannelIMAP:  env.provider,
	}
	env.usecase = NewPurchaseUsecase(
		env.userRepo, env.evidenceRepo, env.draftRepo, env.preAlertRepo, env.syncStateRepo,
		providers, env.extractor, matcher, cfg,
	)
	return env
}

func amazonShippedMessage(id string) *purchasedomain.InboundMessage {
	return &purchasedomain.InboundMessage{
		ID:          id,
		Channel:     purchasedomain.ChannelGmail,
		Subject:     "Your Amazon.com order has shipped",
		From:        "Amazon.com <ship-confirm@amazon.com>",
		AuthResults: "mx.google.com; dkim=pass header.d=amazon.com",
		Snippet:     "Your order has shipped",
		PlainBody: `Your order of "Anker USB-C Charger" has shipped.
Order #113-7654321-1234567
Order Total: $45.99
Tracking: 1Z999AA10123456784`,
	}
}

func etsyOrderMessage(id string) *purchasedomain.InboundMessage {
	return &purchasedomain.InboundMessage{
		ID:          id,
		Channel:     purchasedomain.ChannelGmail,
		Subject:     "Your Etsy purchase is confirmed",
		From:        "Etsy <transaction@etsy.com>",
		AuthResults: "mx.google.com; dkim=pass header.d=etsy.com",
		PlainBody:   "Thanks for your order! Order total: $23.00",
	}
}

func TestFullSyncDeterministicPath(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(amazonShippedMessage("m1"))
	env.extractor.err = assert.AnError // must not be consulted

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Zero(t, report.Failed)
	assert.Zero(t, env.extractor.textCalls, "deterministic result skips the LLM")

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, purchasedomain.EvidenceStatusExtracted, evs[0].Status)
	assert.Equal(t, purchasedomain.RedactedSnippet, evs[0].Snippet)
	assert.NotNil(t, evs[0].ProcessedAt)

	drafts, err := env.draftRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "113-7654321-1234567", drafts[0].OrderNumbers)
	assert.Equal(t, int64(4599), drafts[0].ValueUsd)

	alerts, err := env.preAlertRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	state, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, state.LastFullSyncAt, "first-ever full sync records its completion time")
}

func TestFullSyncExplicitQuery(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(amazonShippedMessage("m1"))

	_, err := env.usecase.FullSync(context.Background(), env.user.ID, "from:(boots.example)")
	require.NoError(t, err)

	require.NotEmpty(t, env.provider.listQueries)
	assert.Equal(t, "from:(boots.example) newer_than:30d", env.provider.listQueries[0],
		"explicit query replaces the generic recency listing")
}

func TestFullSyncIsIdempotent(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(amazonShippedMessage("m1"))

	_, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	fetchesAfterFirst := env.provider.fetchCalls

	_, err = env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, fetchesAfterFirst, env.provider.fetchCalls, "terminal evidence is skipped before fetch")

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	drafts, err := env.draftRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestFullSyncSkipsDisabledUser(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(amazonShippedMessage("m1"))
	env.user.SyncEnabled = false
	require.NoError(t, env.userRepo.Update(env.user))

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Zero(t, env.provider.listCalls, "disabled user causes no mailbox access")
}

func TestFullSyncLLMPath(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(etsyOrderMessage("m1"))
	value := 23.0
	conf := 0.8
	env.extractor.result = &ai.PurchaseExtraction{
		Merchant:    "etsy",
		StoreName:   "Etsy",
		OrderNumber: "ETSY-1001",
		ValueTotal:  &value,
		Currency:    "USD",
		Confidence:  &conf,
	}

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, env.extractor.textCalls)

	drafts, err := env.draftRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "ETSY-1001", drafts[0].OrderNumbers)
	assert.Equal(t, int64(2300), drafts[0].ValueUsd)
	assert.Equal(t, int64(2300), drafts[0].OriginalValue)
}

func TestFullSyncInsufficientCoreFields(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(etsyOrderMessage("m1"))
	conf := 0.4
	env.extractor.result = &ai.PurchaseExtraction{
		Merchant:   "etsy",
		Confidence: &conf,
		// No order number, no tracking numbers.
	}

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, purchasedomain.EvidenceStatusFailed, evs[0].Status)
	assert.Equal(t, "insufficient_core_fields", evs[0].Error)
	assert.Equal(t, purchasedomain.RedactedSnippet, evs[0].Snippet, "failed evidence is redacted too")

	drafts, err := env.draftRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestFullSyncIsolatesPerMessageFailures(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(amazonShippedMessage("m1"))
	env.provider.add(amazonShippedMessage("m2"))
	env.provider.failFetch["m1"] = true

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "m2", evs[0].SourceMessageID)
}

func TestFullSyncIgnoresNonMerchantMail(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.add(&purchasedomain.InboundMessage{
		ID:        "m1",
		Channel:   purchasedomain.ChannelGmail,
		Subject:   "Lunch on Friday?",
		From:      "friend@example.com",
		PlainBody: "Want to order pizza?",
	})

	report, err := env.usecase.FullSync(context.Background(), env.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, evs, "non-merchant mail leaves no trace")
}

func TestIncrementalSyncFirstSightingStoresCursor(t *testing.T) {
	env := newSyncEnv(t)
	env.provider.addedSince = []string{"m1"}
	env.provider.add(amazonShippedMessage("m1"))

	require.NoError(t, env.usecase.IncrementalSync(context.Background(), env.user.ID, 100))

	state, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), state.HistoryCursor)

	// First sighting only records the cursor; no messages are processed.
	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestIncrementalSyncProcessesDelta(t *testing.T) {
	env := newSyncEnv(t)
	_, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	require.NoError(t, env.syncStateRepo.UpdateCursor(env.user.ID, 50))

	env.provider.add(amazonShippedMessage("m1"))
	env.provider.addedSince = []string{"m1"}

	require.NoError(t, env.usecase.IncrementalSync(context.Background(), env.user.ID, 120))

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	state, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), state.HistoryCursor)
}

func TestIncrementalSyncKeepsCursorOnDeltaFailure(t *testing.T) {
	env := newSyncEnv(t)
	_, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	require.NoError(t, env.syncStateRepo.UpdateCursor(env.user.ID, 50))
	env.provider.deltaErr = assert.AnError

	err = env.usecase.IncrementalSync(context.Background(), env.user.ID, 120)
	require.Error(t, err)

	state, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), state.HistoryCursor, "failed delta fetch must not advance the cursor")
}

func TestIncrementalSyncFallsBackWhenDeltaUnsupported(t *testing.T) {
	env := newSyncEnv(t)
	env.user.Provider = "imap"
	env.user.IMAPServer = "imap.example.com:993"
	require.NoError(t, env.userRepo.Update(env.user))

	_, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	require.NoError(t, env.syncStateRepo.UpdateCursor(env.user.ID, 1))

	env.provider.deltaErr = purchasedomain.ErrDeltaUnsupported
	env.provider.add(amazonShippedMessage("m1"))

	require.NoError(t, env.usecase.IncrementalSync(context.Background(), env.user.ID, 0))

	evs, err := env.evidenceRepo.ListByUser(env.user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, evs, 1, "bounded recent listing replaces the delta")
}

func TestIncrementalSyncSkipsDisabledUser(t *testing.T) {
	env := newSyncEnv(t)
	env.user.SyncEnabled = false
	require.NoError(t, env.userRepo.Update(env.user))
	env.provider.addedSince = []string{"m1"}

	require.NoError(t, env.usecase.IncrementalSync(context.Background(), env.user.ID, 99))

	state, err := env.syncStateRepo.GetOrCreate(env.user.ID)
	require.NoError(t, err)
	assert.Zero(t, state.HistoryCursor, "disabled sync has zero side effects")
}

func TestSetDraftStatusValidation(t *testing.T) {
	env := newSyncEnv(t)
	d := &purchasedomain.PurchaseDraft{UserID: env.user.ID, Status: purchasedomain.DraftStatusDraft}
	require.NoError(t, env.draftRepo.Create(d))

	assert.Error(t, env.usecase.SetDraftStatus(env.user.ID, d.ID, "bogus"))
	require.NoError(t, env.usecase.SetDraftStatus(env.user.ID, d.ID, purchasedomain.DraftStatusConfirmed))

	reloaded, err := env.draftRepo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasedomain.DraftStatusConfirmed, reloaded.Status)
}
