package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const extractionSystemPrompt = `You are a purchase-receipt extraction engine for e-commerce transactional emails.
Analyze the message and respond with ONLY a JSON object, no prose, matching exactly this schema:

{
  "merchant": string|null,        // canonical merchant name, lowercase (e.g. "amazon")
  "storeName": string|null,       // store or seller display name
  "orderNumber": string|null,     // order/confirmation number; join multiple with ","
  "itemsSummary": string|null,    // short human summary of purchased items
  "valueTotal": number|null,      // order total as decimal number, no currency symbol
  "currency": string|null,        // ISO-4217 code, e.g. "USD"
  "trackingNumbers": string[],    // shipment tracking numbers found, [] if none
  "carrier": string|null,         // carrier of the tracking numbers if stated
  "invoicePresent": boolean,      // true if an invoice/receipt document is attached or linked
  "confidence": number            // 0..1, your confidence this is a real purchase message
}

Rules:
- Output only JSON. No markdown fences, no commentary.
- Set unknown fields to null. Never guess or invent values.
- Do not convert currencies; report the total as written.`

// FallbackExtractor queries a primary model and retries a secondary model on
// any failure: non-success response, empty content, or content that does not
// parse as JSON after stripping markdown code fences. The image variant
// queries the models in reverse priority order, OCR-oriented model first.
type FallbackExtractor struct {
	client        *GeminiClient
	primaryModel  string
	fallbackModel string
}

func NewFallbackExtractor(client *GeminiClient, primaryModel, fallbackModel string) *FallbackExtractor {
	return &FallbackExtractor{
		client:        client,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
	}
}

// ExtractPurchase extracts purchase facts from focused message text.
func (f *FallbackExtractor) ExtractPurchase(ctx context.Context, text, channel, merchantHint string) (*PurchaseExtraction, error) {
	userText := fmt.Sprintf("Channel: %s\n", channel)
	if merchantHint != "" {
		userText += fmt.Sprintf("Likely merchant: %s\n", merchantHint)
	}
	userText += "Message:\n" + text

	return f.extractWithModels(ctx, []string{f.primaryModel, f.fallbackModel}, userText, nil)
}

// ExtractPurchaseFromImage extracts purchase facts from an image attachment.
func (f *FallbackExtractor) ExtractPurchaseFromImage(ctx context.Context, mimeType string, image []byte, merchantHint string) (*PurchaseExtraction, error) {
	userText := "Extract the purchase facts from this receipt or invoice image."
	if merchantHint != "" {
		userText += fmt.Sprintf(" Likely merchant: %s.", merchantHint)
	}

	img := &InlineImage{MimeType: mimeType, Data: image}
	return f.extractWithModels(ctx, []string{f.fallbackModel, f.primaryModel}, userText, img)
}

func (f *FallbackExtractor) extractWithModels(ctx context.Context, models []string, userText string, image *InlineImage) (*PurchaseExtraction, error) {
	var lastErr error
	for i, model := range models {
		result, err := f.extractOnce(ctx, model, userText, image)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < len(models)-1 {
			log.Printf("[AI] Model %s failed: %v, falling back to %s", model, err, models[i+1])
		}
	}
	return nil, fmt.Errorf("all extraction models failed: %w", lastErr)
}

func (f *FallbackExtractor) extractOnce(ctx context.Context, model, userText string, image *InlineImage) (*PurchaseExtraction, error) {
	content, err := f.client.Generate(ctx, model, extractionSystemPrompt, userText, image)
	if err != nil {
		return nil, err
	}

	content = cleanJSONResponse(content)
	if content == "" {
		return nil, fmt.Errorf("model %s returned empty content", model)
	}

	var parsed PurchaseExtraction
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model %s response: %w", model, err)
	}
	return &parsed, nil
}

// cleanJSONResponse strips markdown code-fence markers and surrounding prose
// that some models add around the JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
