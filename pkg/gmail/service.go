package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const maxResultsPerPage = int64(100)

// Service is the Gmail-backed message provider.
type Service struct {
	clientID     string
	clientSecret string
}

// notifyTokenSource wraps an oauth2 token source so refreshed access tokens
// are persisted through the caller's callback.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback purchasedomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// gmailService creates a Gmail API client acting as the user.
func (s *Service) gmailService(ctx context.Context, creds purchasedomain.MailCredentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListCandidateIDs lists message ids matching a Gmail search query, bounded
// by maxPages pages. An empty query lists recent mail.
func (s *Service) ListCandidateIDs(ctx context.Context, creds purchasedomain.MailCredentials, query string, maxPages int) ([]string, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	if maxPages <= 0 {
		maxPages = 1
	}

	var ids []string
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		listQuery := srv.Users.Messages.List("me").MaxResults(maxResultsPerPage)
		if query != "" {
			listQuery = listQuery.Q(query)
		}
		if pageToken != "" {
			listQuery = listQuery.PageToken(pageToken)
		}

		resp, err := listQuery.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list messages: %w", err)
		}

		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return ids, nil
}

// FetchMessage returns the full message with decoded text and HTML bodies.
func (s *Service) FetchMessage(ctx context.Context, creds purchasedomain.MailCredentials, id string) (*purchasedomain.InboundMessage, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}

	return convertGmailMessage(msg), nil
}

// ListAddedSince returns ids of messages added to the mailbox after the
// given history cursor.
func (s *Service) ListAddedSince(ctx context.Context, creds purchasedomain.MailCredentials, cursor uint64) ([]string, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	pageToken := ""
	for {
		call := srv.Users.History.List("me").StartHistoryId(cursor).HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list history: %w", err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil && !seen[added.Message.Id] {
					seen[added.Message.Id] = true
					ids = append(ids, added.Message.Id)
				}
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return ids, nil
}

// FetchAttachment returns the mime type and raw bytes of an attachment.
func (s *Service) FetchAttachment(ctx context.Context, creds purchasedomain.MailCredentials, messageID, attachmentID string) (string, []byte, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return "", nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to retrieve message details: %w", err)
	}

	var mimeType string
	var findMetadata func(parts []*gmail.MessagePart)
	findMetadata = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.AttachmentId == attachmentID {
				mimeType = part.MimeType
				return
			}
			if len(part.Parts) > 0 {
				findMetadata(part.Parts)
			}
		}
	}
	findMetadata(msg.Payload.Parts)

	attachPart, err := srv.Users.Messages.Attachments.Get("me", messageID, attachmentID).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to retrieve attachment: %w", err)
	}

	data, err := base64.URLEncoding.DecodeString(attachPart.Data)
	if err != nil {
		return "", nil, fmt.Errorf("unable to decode attachment data: %w", err)
	}

	return mimeType, data, nil
}

// Watch sets up push notifications for the user's mailbox.
func (s *Service) Watch(ctx context.Context, creds purchasedomain.MailCredentials, topicName string) error {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}

	// Stop any existing watch first to avoid "only one user push
	// notification client allowed" errors.
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return nil
}

// Stop stops push notifications for the user's mailbox.
func (s *Service) Stop(ctx context.Context, creds purchasedomain.MailCredentials) error {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}

// Helper functions

func convertGmailMessage(msg *gmail.Message) *purchasedomain.InboundMessage {
	plain, html := getBodies(msg.Payload)

	return &purchasedomain.InboundMessage{
		ID:          msg.Id,
		Channel:     purchasedomain.ChannelGmail,
		Subject:     getHeader(msg.Payload.Headers, "Subject"),
		From:        getHeader(msg.Payload.Headers, "From"),
		ReplyTo:     getHeader(msg.Payload.Headers, "Reply-To"),
		AuthResults: getHeader(msg.Payload.Headers, "Authentication-Results"),
		ARCResults:  getHeader(msg.Payload.Headers, "ARC-Authentication-Results"),
		Snippet:     msg.Snippet,
		PlainBody:   plain,
		HTMLBody:    html,
		ReceivedAt:  time.Unix(msg.InternalDate/1000, 0),
		Attachments: getAttachments(msg.Payload),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getBodies walks the MIME tree and returns the decoded text/plain and
// text/html bodies.
func getBodies(payload *gmail.MessagePart) (string, string) {
	if payload == nil {
		return "", ""
	}

	// Single-part message: the payload itself is the body.
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			if payload.MimeType == "text/html" {
				return "", string(data)
			}
			return string(data), ""
		}
	}

	var plainBody, htmlBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" {
				data, err := base64.URLEncoding.DecodeString(part.Body.Data)
				if err == nil {
					switch part.MimeType {
					case "text/html":
						if htmlBody == "" {
							htmlBody = string(data)
						}
					case "text/plain":
						if plainBody == "" {
							plainBody = string(data)
						}
					}
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	return plainBody, htmlBody
}

func getAttachments(payload *gmail.MessagePart) []purchasedomain.Attachment {
	var attachments []purchasedomain.Attachment

	var findAttachments func(parts []*gmail.MessagePart)
	findAttachments = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
				attachments = append(attachments, purchasedomain.Attachment{
					ID:       part.Body.AttachmentId,
					Name:     part.Filename,
					MimeType: part.MimeType,
				})
			}
			if len(part.Parts) > 0 {
				findAttachments(part.Parts)
			}
		}
	}
	findAttachments(payload.Parts)
	return attachments
}
