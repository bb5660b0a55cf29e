package domain

import "time"

type User struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"` // Never return password in JSON
	Name     string `json:"name"`
	Provider string `json:"provider"` // "google" or "imap"

	// Mail-provider credentials. OAuth acquisition happens outside this
	// service; the token manager pushes tokens here and we persist
	// refreshed access tokens via the provider callback.
	GoogleAccessToken  string `json:"-"`
	GoogleRefreshToken string `json:"-"`

	// IMAP channel credentials.
	IMAPServer   string `json:"-"`
	IMAPUsername string `json:"-"`
	IMAPPassword string `json:"-"`

	// SyncEnabled gates all receipt sync for this user. When false, sync
	// runs are skipped entirely with zero side effects.
	SyncEnabled bool `json:"sync_enabled" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}
