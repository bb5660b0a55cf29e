package repository

import (
	"testing"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&purchasedomain.Evidence{},
		&purchasedomain.PurchaseDraft{},
		&purchasedomain.PackagePreAlert{},
		&purchasedomain.SyncState{},
	))
	return db
}

func TestDraftFindByOrderNumberMembership(t *testing.T) {
	db := testDB(t)
	repo := NewDraftRepository(db)

	require.NoError(t, repo.Create(&purchasedomain.PurchaseDraft{
		UserID:       "u1",
		OrderNumbers: "A1,B22",
		Status:       purchasedomain.DraftStatusDraft,
	}))

	found, err := repo.FindByOrderNumber("u1", "A1")
	require.NoError(t, err)
	require.NotNil(t, found)

	// "B2" is a prefix of member "B22" and must not match.
	miss, err := repo.FindByOrderNumber("u1", "B2")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// Other users never see the draft.
	miss, err = repo.FindByOrderNumber("u2", "A1")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestDraftFindOthersByOrderNumberExcludes(t *testing.T) {
	db := testDB(t)
	repo := NewDraftRepository(db)

	d1 := &purchasedomain.PurchaseDraft{UserID: "u1", OrderNumbers: "A1"}
	d2 := &purchasedomain.PurchaseDraft{UserID: "u1", OrderNumbers: "A1,C3"}
	require.NoError(t, repo.Create(d1))
	require.NoError(t, repo.Create(d2))

	others, err := repo.FindOthersByOrderNumber("u1", "A1", d1.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, d2.ID, others[0].ID)
}

func TestAbsorbDraft(t *testing.T) {
	db := testDB(t)
	draftRepo := NewDraftRepository(db)
	preAlertRepo := NewPreAlertRepository(db)
	evidenceRepo := NewEvidenceRepository(db)

	ev := &purchasedomain.Evidence{
		UserID:          "u1",
		Channel:         purchasedomain.ChannelGmail,
		SourceMessageID: "m1",
		Status:          purchasedomain.EvidenceStatusExtracted,
	}
	require.NoError(t, evidenceRepo.Create(ev))

	primary := &purchasedomain.PurchaseDraft{UserID: "u1", OrderNumbers: "A1,B2"}
	dup := &purchasedomain.PurchaseDraft{UserID: "u1", OrderNumbers: "B2", EvidenceID: ev.ID}
	require.NoError(t, draftRepo.Create(primary))
	require.NoError(t, draftRepo.Create(dup))

	_, err := preAlertRepo.Upsert(&purchasedomain.PackagePreAlert{
		UserID:         "u1",
		DraftID:        dup.ID,
		TrackingNumber: "1Z999AA10123456784",
	})
	require.NoError(t, err)

	require.NoError(t, draftRepo.AbsorbDraft(primary, dup.ID))

	// Duplicate draft is gone.
	gone, err := draftRepo.FindByID(dup.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Its pre-alert now points at the primary.
	alerts, err := preAlertRepo.ListByDraft(primary.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "1Z999AA10123456784", alerts[0].TrackingNumber)

	// Its origin evidence is marked duplicate.
	updated, err := evidenceRepo.FindByID(ev.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, purchasedomain.EvidenceStatusDuplicate, updated.Status)
}

func TestAbsorbDraftMissingDuplicateRollsBack(t *testing.T) {
	db := testDB(t)
	draftRepo := NewDraftRepository(db)

	primary := &purchasedomain.PurchaseDraft{UserID: "u1", OrderNumbers: "A1", ItemsSummary: ""}
	require.NoError(t, draftRepo.Create(primary))

	primary.ItemsSummary = "should not persist"
	err := draftRepo.AbsorbDraft(primary, "no-such-draft")
	require.Error(t, err)

	reloaded, err := draftRepo.FindByID(primary.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Empty(t, reloaded.ItemsSummary)
}

func TestDraftUpdateStatus(t *testing.T) {
	db := testDB(t)
	repo := NewDraftRepository(db)

	d := &purchasedomain.PurchaseDraft{UserID: "u1", Status: purchasedomain.DraftStatusDraft}
	require.NoError(t, repo.Create(d))

	require.NoError(t, repo.UpdateStatus("u1", d.ID, purchasedomain.DraftStatusConfirmed))
	reloaded, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasedomain.DraftStatusConfirmed, reloaded.Status)

	// Wrong owner is rejected.
	assert.Error(t, repo.UpdateStatus("u2", d.ID, purchasedomain.DraftStatusRejected))
}

func TestPreAlertUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewPreAlertRepository(db)

	first := &purchasedomain.PackagePreAlert{
		UserID:         "u1",
		DraftID:        "d1",
		TrackingNumber: "RB123456789CN",
	}
	created, err := repo.Upsert(first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, purchasedomain.PreAlertStatusCreated, first.Status)

	// Same (user, tracking number): re-link and fill carrier, no new row.
	second := &purchasedomain.PackagePreAlert{
		UserID:         "u1",
		DraftID:        "d2",
		TrackingNumber: "RB123456789CN",
		Carrier:        "china post",
	}
	created, err = repo.Upsert(second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "d2", second.DraftID)
	assert.Equal(t, "china post", second.Carrier)

	count, err := repo.CountByDraft("d2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A different user may hold the same tracking number.
	otherUser := &purchasedomain.PackagePreAlert{
		UserID:         "u2",
		DraftID:        "d3",
		TrackingNumber: "RB123456789CN",
	}
	created, err = repo.Upsert(otherUser)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestPreAlertUpsertKeepsExistingCarrier(t *testing.T) {
	db := testDB(t)
	repo := NewPreAlertRepository(db)

	_, err := repo.Upsert(&purchasedomain.PackagePreAlert{
		UserID: "u1", DraftID: "d1", TrackingNumber: "N1", Carrier: "ups",
	})
	require.NoError(t, err)

	again := &purchasedomain.PackagePreAlert{
		UserID: "u1", DraftID: "d1", TrackingNumber: "N1", Carrier: "dhl",
	}
	_, err = repo.Upsert(again)
	require.NoError(t, err)
	assert.Equal(t, "ups", again.Carrier, "existing carrier is never overwritten")
}

func TestEvidenceIdempotencyLookup(t *testing.T) {
	db := testDB(t)
	repo := NewEvidenceRepository(db)

	require.NoError(t, repo.Create(&purchasedomain.Evidence{
		UserID:          "u1",
		Channel:         purchasedomain.ChannelGmail,
		SourceMessageID: "m1",
		Status:          purchasedomain.EvidenceStatusPending,
	}))

	found, err := repo.FindBySourceMessageID(purchasedomain.ChannelGmail, "m1")
	require.NoError(t, err)
	require.NotNil(t, found)

	// Same message id on the other channel is a different message.
	miss, err := repo.FindBySourceMessageID(purchasedomain.ChannelIMAP, "m1")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSyncStateCursor(t *testing.T) {
	db := testDB(t)
	repo := NewSyncStateRepository(db)

	state, err := repo.GetOrCreate("u1")
	require.NoError(t, err)
	assert.Zero(t, state.HistoryCursor)

	require.NoError(t, repo.UpdateCursor("u1", 4242))
	state, err = repo.GetOrCreate("u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), state.HistoryCursor)

	require.NoError(t, repo.TouchFullSync("u1"))
	state, err = repo.GetOrCreate("u1")
	require.NoError(t, err)
	assert.NotNil(t, state.LastFullSyncAt)
}

func TestSyncStateTouchFullSyncWithoutPriorState(t *testing.T) {
	db := testDB(t)
	repo := NewSyncStateRepository(db)

	// No GetOrCreate first: a full sync may be the user's first sync ever.
	require.NoError(t, repo.TouchFullSync("u1"))

	state, err := repo.GetOrCreate("u1")
	require.NoError(t, err)
	require.NotNil(t, state.LastFullSyncAt)
	assert.Zero(t, state.HistoryCursor)

	// A second touch updates the existing row instead of duplicating it.
	require.NoError(t, repo.TouchFullSync("u1"))
	var count int64
	require.NoError(t, db.Model(&purchasedomain.SyncState{}).Where("user_id = ?", "u1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
