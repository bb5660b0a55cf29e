package extraction

import (
	"math"
	"strings"

	"receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/ai"
	"receiptradar-backend/pkg/tracking"
)

// Normalize reconciles LLM output with detector output into the canonical
// ExtractionResult.
//
// Detector hits are authoritative and retained first; model tracking
// numbers are normalized, deduplicated by number, and only contribute a
// carrier when the detector inferred none. Monetary values are rounded to
// integer minor units; originalValue mirrors valueUsd (no FX conversion).
func Normalize(raw *ai.PurchaseExtraction, detected []tracking.Hit) *domain.ExtractionResult {
	res := &domain.ExtractionResult{
		Merchant:     strings.ToLower(strings.TrimSpace(raw.Merchant)),
		StoreName:    strings.TrimSpace(raw.StoreName),
		OrderNumber:  strings.TrimSpace(raw.OrderNumber),
		ItemsSummary: strings.TrimSpace(raw.ItemsSummary),
		Currency:     strings.ToUpper(strings.TrimSpace(raw.Currency)),
	}

	if raw.ValueTotal != nil && *raw.ValueTotal > 0 {
		cents := int64(math.Round(*raw.ValueTotal * 100))
		res.ValueUsd = cents
		res.OriginalValue = cents
	}

	res.Trackings = MergeTrackings(detected, raw.TrackingNumbers, raw.Carrier)

	if raw.InvoicePresent != nil {
		res.InvoicePresent = *raw.InvoicePresent
	}

	res.Confidence = clampConfidence(raw.Confidence)
	res.MissingFields = domain.ComputeMissingFields(res.OrderNumber, res.ValueUsd, res.ItemsSummary, len(res.Trackings) > 0)
	return res
}

// MergeTrackings unions detector hits (kept first, never dropped) with
// model-reported numbers. Deduplication is by canonical number; the model
// carrier fills in only where the detector inferred none.
func MergeTrackings(detected []tracking.Hit, modelNumbers []string, modelCarrier string) []tracking.Hit {
	merged := make([]tracking.Hit, 0, len(detected)+len(modelNumbers))
	index := make(map[string]int)

	for _, hit := range detected {
		n := tracking.Normalize(hit.Number)
		if n == "" {
			continue
		}
		if _, dup := index[n]; dup {
			continue
		}
		index[n] = len(merged)
		merged = append(merged, tracking.Hit{Number: n, Carrier: hit.Carrier})
	}

	carrier := strings.ToLower(strings.TrimSpace(modelCarrier))
	for _, number := range modelNumbers {
		n := tracking.Normalize(number)
		if n == "" {
			continue
		}
		if i, dup := index[n]; dup {
			if merged[i].Carrier == "" && carrier != "" {
				merged[i].Carrier = carrier
			}
			continue
		}
		index[n] = len(merged)
		merged = append(merged, tracking.Hit{Number: n, Carrier: carrier})
	}
	return merged
}

// clampConfidence bounds confidence to [0,1], defaulting to 0.5 when the
// model omitted it.
func clampConfidence(c *float64) float64 {
	if c == nil || math.IsNaN(*c) {
		return 0.5
	}
	if *c < 0 {
		return 0
	}
	if *c > 1 {
		return 1
	}
	return *c
}
