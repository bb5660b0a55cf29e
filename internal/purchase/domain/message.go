package domain

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Channel identifiers for inbound message sources.
const (
	ChannelGmail = "gmail"
	ChannelIMAP  = "imap"
)

// ErrDeltaUnsupported is returned by providers that cannot compute an
// incremental delta; callers fall back to a bounded recent listing.
var ErrDeltaUnsupported = errors.New("history delta not supported by this provider")

// TokenUpdateFunc is invoked when the provider refreshes an OAuth token so
// the new token can be persisted.
type TokenUpdateFunc func(token *oauth2.Token) error

// MailCredentials carries everything a provider needs to act on behalf of a
// user. OAuth acquisition and refresh-token storage live outside the
// pipeline; we only consume what the token manager gives us.
type MailCredentials struct {
	AccessToken  string
	RefreshToken string
	OnRefresh    TokenUpdateFunc

	// IMAP channel only.
	ServerAddr string
	Username   string
	Password   string
}

// Attachment is metadata for a message attachment; the content is fetched
// separately and only when the vision extraction path needs it.
type Attachment struct {
	ID       string
	Name     string
	MimeType string
}

// InboundMessage is one candidate message as fetched from a provider, with
// bodies already decoded.
type InboundMessage struct {
	ID          string
	Channel     string
	Subject     string
	From        string
	ReplyTo     string
	AuthResults string // Authentication-Results header value
	ARCResults  string // ARC-Authentication-Results header value
	Snippet     string
	PlainBody   string
	HTMLBody    string
	ReceivedAt  time.Time
	Attachments []Attachment
}

// MessageProvider is the read-only message source contract. Implementations
// exist for Gmail and generic IMAP accounts.
type MessageProvider interface {
	// ListCandidateIDs returns message ids matching a provider search query,
	// bounded by maxPages pages of results. An empty query lists recent mail.
	ListCandidateIDs(ctx context.Context, creds MailCredentials, query string, maxPages int) ([]string, error)
	// FetchMessage returns the full message with decoded bodies.
	FetchMessage(ctx context.Context, creds MailCredentials, id string) (*InboundMessage, error)
	// ListAddedSince returns ids of messages added after the given cursor.
	// Providers without history support return ErrDeltaUnsupported.
	ListAddedSince(ctx context.Context, creds MailCredentials, cursor uint64) ([]string, error)
	// FetchAttachment returns the mime type and raw bytes of an attachment.
	FetchAttachment(ctx context.Context, creds MailCredentials, messageID, attachmentID string) (string, []byte, error)
}
