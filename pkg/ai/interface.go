package ai

import "context"

// PurchaseExtraction is the exact JSON shape the model is instructed to
// emit. Unknown fields come back as null, never guessed.
type PurchaseExtraction struct {
	Merchant        string   `json:"merchant"`
	StoreName       string   `json:"storeName"`
	OrderNumber     string   `json:"orderNumber"`
	ItemsSummary    string   `json:"itemsSummary"`
	ValueTotal      *float64 `json:"valueTotal"`
	Currency        string   `json:"currency"`
	TrackingNumbers []string `json:"trackingNumbers"`
	Carrier         string   `json:"carrier"`
	InvoicePresent  *bool    `json:"invoicePresent"`
	Confidence      *float64 `json:"confidence"`
}

// ExtractorService is the LLM fallback extractor used when deterministic
// extraction is insufficient.
type ExtractorService interface {
	// ExtractPurchase extracts purchase facts from focused message text.
	ExtractPurchase(ctx context.Context, text, channel, merchantHint string) (*PurchaseExtraction, error)
	// ExtractPurchaseFromImage extracts purchase facts from an attachment
	// image (receipt/invoice scan).
	ExtractPurchaseFromImage(ctx context.Context, mimeType string, image []byte, merchantHint string) (*PurchaseExtraction, error)
}
