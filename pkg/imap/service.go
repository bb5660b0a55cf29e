// Package imap provides a generic-IMAP message provider, the secondary
// channel next to Gmail. IMAP has no history API, so incremental sync falls
// back to a bounded recent listing.
package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	purchasedomain "receiptradar-backend/internal/purchase/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// Service is the IMAP-backed message provider.
type Service struct {
	lookback time.Duration
}

func NewService(lookbackDays int) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Service{lookback: time.Duration(lookbackDays) * 24 * time.Hour}
}

func (s *Service) connect(creds purchasedomain.MailCredentials) (*client.Client, error) {
	c, err := client.DialTLS(creds.ServerAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to dial IMAP server: %w", err)
	}
	if err := c.Login(creds.Username, creds.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}
	return c, nil
}

// ListCandidateIDs searches INBOX for recent messages. IMAP server-side
// search is limited, so the provider query is ignored and the lookback
// window applies; classification filters the rest.
func (s *Service) ListCandidateIDs(ctx context.Context, creds purchasedomain.MailCredentials, query string, maxPages int) ([]string, error) {
	c, err := s.connect(creds)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("unable to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-s.lookback)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("IMAP search failed: %w", err)
	}

	limit := 100 * maxPages
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// FetchMessage fetches and parses one message by UID.
func (s *Service) FetchMessage(ctx context.Context, creds purchasedomain.MailCredentials, id string) (*purchasedomain.InboundMessage, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP uid %q: %w", id, err)
	}

	c, err := s.connect(creds)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("unable to select INBOX: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("IMAP fetch failed: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, errors.New("IMAP server returned no body section")
	}

	parsed, err := parseMessage(body)
	if err != nil {
		return nil, err
	}
	parsed.ID = id
	parsed.ReceivedAt = msg.InternalDate
	return parsed, nil
}

// ListAddedSince is unsupported: IMAP has no history cursor.
func (s *Service) ListAddedSince(ctx context.Context, creds purchasedomain.MailCredentials, cursor uint64) ([]string, error) {
	return nil, purchasedomain.ErrDeltaUnsupported
}

// FetchAttachment is unsupported for the IMAP channel today.
func (s *Service) FetchAttachment(ctx context.Context, creds purchasedomain.MailCredentials, messageID, attachmentID string) (string, []byte, error) {
	return "", nil, errors.New("attachment fetch not supported on the imap channel")
}

// parseMessage reads an RFC822 message into the pipeline's message shape.
func parseMessage(r io.Reader) (*purchasedomain.InboundMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse message: %w", err)
	}

	header := mr.Header
	msg := &purchasedomain.InboundMessage{
		Channel:     purchasedomain.ChannelIMAP,
		AuthResults: header.Get("Authentication-Results"),
		ARCResults:  header.Get("ARC-Authentication-Results"),
	}
	msg.Subject, _ = header.Subject()
	msg.From = header.Get("From")
	msg.ReplyTo = header.Get("Reply-To")

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever bodies we already decoded.
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch contentType {
			case "text/plain":
				if msg.PlainBody == "" {
					msg.PlainBody = string(data)
				}
			case "text/html":
				if msg.HTMLBody == "" {
					msg.HTMLBody = string(data)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			msg.Attachments = append(msg.Attachments, purchasedomain.Attachment{
				Name:     filename,
				MimeType: contentType,
			})
		}
	}

	if msg.Snippet == "" {
		source := msg.PlainBody
		if source == "" {
			source = msg.HTMLBody
		}
		msg.Snippet = firstChars(strings.Join(strings.Fields(source), " "), 200)
	}
	return msg, nil
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
