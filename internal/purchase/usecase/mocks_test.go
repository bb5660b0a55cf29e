package usecase

import (
	"context"
	"errors"
	"sync"

	purchasedomain "receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/ai"
	"receiptradar-backend/pkg/fcm"
)

var errMockFetch = errors.New("mock fetch error")

// fakeProvider implements purchasedomain.MessageProvider for testing.
type fakeProvider struct {
	mu sync.Mutex

	messages   map[string]*purchasedomain.InboundMessage
	listIDs    []string
	addedSince []string
	deltaErr   error
	failFetch  map[string]bool

	listCalls   int
	listQueries []string
	fetchCalls  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		messages:  make(map[string]*purchasedomain.InboundMessage),
		failFetch: make(map[string]bool),
	}
}

func (p *fakeProvider) add(msg *purchasedomain.InboundMessage) {
	p.messages[msg.ID] = msg
	p.listIDs = append(p.listIDs, msg.ID)
}

func (p *fakeProvider) ListCandidateIDs(ctx context.Context, creds purchasedomain.MailCredentials, query string, maxPages int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	p.listQueries = append(p.listQueries, query)
	return append([]string(nil), p.listIDs...), nil
}

func (p *fakeProvider) FetchMessage(ctx context.Context, creds purchasedomain.MailCredentials, id string) (*purchasedomain.InboundMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	if p.failFetch[id] {
		return nil, errMockFetch
	}
	msg, ok := p.messages[id]
	if !ok {
		return nil, errMockFetch
	}
	return msg, nil
}

func (p *fakeProvider) ListAddedSince(ctx context.Context, creds purchasedomain.MailCredentials, cursor uint64) ([]string, error) {
	if p.deltaErr != nil {
		return nil, p.deltaErr
	}
	return append([]string(nil), p.addedSince...), nil
}

func (p *fakeProvider) FetchAttachment(ctx context.Context, creds purchasedomain.MailCredentials, messageID, attachmentID string) (string, []byte, error) {
	return "image/png", []byte{1, 2, 3}, nil
}

// fakeExtractor implements ai.ExtractorService for testing.
type fakeExtractor struct {
	result    *ai.PurchaseExtraction
	err       error
	imgResult *ai.PurchaseExtraction
	imgErr    error

	textCalls  int
	imageCalls int
}

func (f *fakeExtractor) ExtractPurchase(ctx context.Context, text, channel, merchantHint string) (*ai.PurchaseExtraction, error) {
	f.textCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeExtractor) ExtractPurchaseFromImage(ctx context.Context, mimeType string, image []byte, merchantHint string) (*ai.PurchaseExtraction, error) {
	f.imageCalls++
	if f.imgErr != nil {
		return nil, f.imgErr
	}
	return f.imgResult, nil
}

// fakePushClient records sent notifications.
type fakePushClient struct {
	sent []fcm.NotificationData
}

func (f *fakePushClient) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.sent = append(f.sent, n)
	return nil, nil
}
