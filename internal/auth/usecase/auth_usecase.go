package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	authdomain "receiptradar-backend/internal/auth/domain"
	authdto "receiptradar-backend/internal/auth/dto"
	"receiptradar-backend/internal/auth/repository"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// MailboxWatcher registers a mailbox for push notifications so incremental
// sync starts flowing as soon as the account is connected.
type MailboxWatcher interface {
	Watch(ctx context.Context, creds purchasedomain.MailCredentials, topicName string) error
}

// AuthUsecase defines the interface for authentication and account
// preference operations.
type AuthUsecase interface {
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.User, error)
	// StoreGoogleTokens accepts mail-provider tokens pushed by the
	// external token manager; OAuth itself happens outside this service.
	StoreGoogleTokens(userID string, req *authdto.GoogleTokensRequest) error
	// StoreIMAPCredentials attaches a generic IMAP mailbox to the account.
	StoreIMAPCredentials(userID string, req *authdto.IMAPCredentialsRequest) error
	// SetSyncEnabled toggles the receipt-sync preference.
	SetSyncEnabled(userID string, enabled bool) error
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(token string) error
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo   repository.UserRepository
	fcmRepo    repository.FCMTokenRepository
	watcher    MailboxWatcher
	watchTopic string
	config     *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase. watcher may be nil
// when push notifications are not configured.
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, watcher MailboxWatcher, watchTopic string, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo:   userRepo,
		fcmRepo:    fcmRepo,
		watcher:    watcher,
		watchTopic: watchTopic,
		config:     cfg,
	}
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, errors.New("invalid email or password")
	}

	if !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, errors.New("invalid email or password")
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:       req.Email,
		Password:    hashedPassword,
		Name:        req.Name,
		Provider:    "google",
		SyncEnabled: true,
	}

	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	storedToken, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if storedToken == nil || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, errors.New("user not found")
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) StoreGoogleTokens(userID string, req *authdto.GoogleTokensRequest) error {
	if err := u.userRepo.UpdateGoogleTokens(userID, req.AccessToken, req.RefreshToken); err != nil {
		return err
	}

	if u.watcher == nil || u.watchTopic == "" {
		return nil
	}

	creds := purchasedomain.MailCredentials{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		OnRefresh: func(token *oauth2.Token) error {
			return u.userRepo.UpdateGoogleTokens(userID, token.AccessToken, token.RefreshToken)
		},
	}
	if err := u.watcher.Watch(context.Background(), creds, u.watchTopic); err != nil {
		// Tokens are stored either way; the catch-up scheduler covers the
		// mailbox until a later watch registration succeeds.
		log.Printf("[Auth] Failed to start mailbox watch for user %s: %v", userID, err)
	}
	return nil
}

func (u *authUsecase) StoreIMAPCredentials(userID string, req *authdto.IMAPCredentialsRequest) error {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}

	user.Provider = "imap"
	user.IMAPServer = req.Server
	user.IMAPUsername = req.Username
	user.IMAPPassword = req.Password
	return u.userRepo.Update(user)
}

func (u *authUsecase) SetSyncEnabled(userID string, enabled bool) error {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}

	user.SyncEnabled = enabled
	return u.userRepo.Update(user)
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	return u.fcmRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(token string) error {
	return u.fcmRepo.DeleteToken(token)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.config.JWTRefreshExpiry),
	}
	if err := u.userRepo.SaveRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) generateRefreshToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}
