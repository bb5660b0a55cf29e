package usecase

import (
	"context"
	"testing"
	"time"

	authdomain "receiptradar-backend/internal/auth/domain"
	authdto "receiptradar-backend/internal/auth/dto"
	"receiptradar-backend/internal/auth/repository"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeWatcher records mailbox watch registrations.
type fakeWatcher struct {
	topics []string
	err    error
}

func (w *fakeWatcher) Watch(ctx context.Context, creds purchasedomain.MailCredentials, topicName string) error {
	w.topics = append(w.topics, topicName)
	return w.err
}

func newAuthUsecase(t *testing.T) (AuthUsecase, repository.UserRepository) {
	uc, userRepo, _ := newAuthUsecaseWithWatcher(t, nil)
	return uc, userRepo
}

func newAuthUsecaseWithWatcher(t *testing.T, watcher MailboxWatcher) (AuthUsecase, repository.UserRepository, repository.FCMTokenRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
	))

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	}
	userRepo := repository.NewUserRepository(db)
	fcmRepo := repository.NewFCMTokenRepository(db)
	topic := ""
	if watcher != nil {
		topic = "projects/test/topics/mailbox-updates"
	}
	return NewAuthUsecase(userRepo, fcmRepo, watcher, topic, cfg), userRepo, fcmRepo
}

func TestRegisterAndLogin(t *testing.T) {
	uc, _ := newAuthUsecase(t)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.True(t, resp.User.SyncEnabled, "sync is on by default")

	// Duplicate registration is rejected.
	_, err = uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.Error(t, err)

	login, err := uc.Login(&authdto.LoginRequest{Email: "buyer@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)

	_, err = uc.Login(&authdto.LoginRequest{Email: "buyer@example.com", Password: "wrong-pass"})
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	uc, _ := newAuthUsecase(t)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	user, err := uc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)

	_, err = uc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestSetSyncEnabled(t *testing.T) {
	uc, userRepo := newAuthUsecase(t)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	require.NoError(t, uc.SetSyncEnabled(resp.User.ID, false))
	user, err := userRepo.FindByID(resp.User.ID)
	require.NoError(t, err)
	assert.False(t, user.SyncEnabled)

	enabled, err := userRepo.ListSyncEnabled()
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestStoreIMAPCredentialsSwitchesProvider(t *testing.T) {
	uc, userRepo := newAuthUsecase(t)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	require.NoError(t, uc.StoreIMAPCredentials(resp.User.ID, &authdto.IMAPCredentialsRequest{
		Server:   "imap.example.com:993",
		Username: "buyer",
		Password: "app-password",
	}))

	user, err := userRepo.FindByID(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "imap", user.Provider)
	assert.Equal(t, "imap.example.com:993", user.IMAPServer)
}

func TestStoreGoogleTokensStartsMailboxWatch(t *testing.T) {
	watcher := &fakeWatcher{}
	uc, userRepo, _ := newAuthUsecaseWithWatcher(t, watcher)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	require.NoError(t, uc.StoreGoogleTokens(resp.User.ID, &authdto.GoogleTokensRequest{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
	}))

	require.Len(t, watcher.topics, 1)
	assert.Equal(t, "projects/test/topics/mailbox-updates", watcher.topics[0])

	user, err := userRepo.FindByID(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", user.GoogleAccessToken)
}

func TestStoreGoogleTokensSurvivesWatchFailure(t *testing.T) {
	watcher := &fakeWatcher{err: assert.AnError}
	uc, userRepo, _ := newAuthUsecaseWithWatcher(t, watcher)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	// A failed watch registration must not lose the pushed tokens.
	require.NoError(t, uc.StoreGoogleTokens(resp.User.ID, &authdto.GoogleTokensRequest{
		AccessToken: "ya29.access",
	}))

	user, err := userRepo.FindByID(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", user.GoogleAccessToken)
}

func TestRefreshTokenRotation(t *testing.T) {
	uc, _ := newAuthUsecase(t)

	resp, err := uc.Register(&authdto.RegisterRequest{
		Email:    "buyer@example.com",
		Password: "secret123",
		Name:     "Buyer",
	})
	require.NoError(t, err)

	refreshed, err := uc.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// Logout invalidates the stored refresh token.
	require.NoError(t, uc.Logout(resp.RefreshToken))
	_, err = uc.RefreshToken(resp.RefreshToken)
	assert.Error(t, err)
}
