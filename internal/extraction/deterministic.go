package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/tracking"
)

// Deterministic extractors are cheap template parsers for high-traffic
// merchants. A deterministic result is accepted only when it carries an
// order number or at least one tracking number; anything less falls through
// to the LLM extractor regardless of other populated fields.

type merchantExtractor struct {
	orderRe   *regexp.Regexp
	totalRe   *regexp.Regexp
	itemsRe   *regexp.Regexp
	storeName string
	currency  string
}

var deterministicExtractors = map[string]merchantExtractor{
	"amazon": {
		orderRe:   regexp.MustCompile(`\b(\d{3}-\d{7}-\d{7})\b`),
		totalRe:   regexp.MustCompile(`(?i)(?:order total|grand total|total)[:\s]*(?:USD|EUR|GBP|\$|€|£)?\s*([0-9][0-9.,]*\.[0-9]{2})`),
		itemsRe:   regexp.MustCompile(`(?i)your (?:amazon\.[a-z.]+ )?order of ("?[^".\n]{3,120})`),
		storeName: "Amazon",
		currency:  "USD",
	},
	"ebay": {
		orderRe:   regexp.MustCompile(`\b(\d{2}-\d{5}-\d{5})\b`),
		totalRe:   regexp.MustCompile(`(?i)(?:order total|total)[:\s]*(?:USD|\$)?\s*([0-9][0-9.,]*\.[0-9]{2})`),
		storeName: "eBay",
		currency:  "USD",
	},
	"aliexpress": {
		orderRe:   regexp.MustCompile(`(?i)order(?:\s*(?:id|number|no\.?|#))?[:\s]*(\d{13,19})\b`),
		totalRe:   regexp.MustCompile(`(?i)(?:order total|total)[:\s]*(?:USD|US \$|\$)?\s*([0-9][0-9.,]*\.[0-9]{2})`),
		storeName: "AliExpress",
		currency:  "USD",
	},
}

// ExtractDeterministic runs the template parser for the merchant over
// normalized message text. ok is false when the merchant has no
// deterministic extractor or the result fails the sufficiency rule.
func ExtractDeterministic(merchant, subject, text string) (*domain.ExtractionResult, bool) {
	ex, exists := deterministicExtractors[merchant]
	if !exists {
		return nil, false
	}

	combined := subject + "\n" + text
	res := &domain.ExtractionResult{
		Merchant:   merchant,
		StoreName:  ex.storeName,
		Confidence: 0.9,
		Trackings:  tracking.Detect(combined),
	}

	if m := ex.orderRe.FindStringSubmatch(combined); m != nil {
		res.OrderNumber = m[1]
	}
	if m := ex.totalRe.FindStringSubmatch(combined); m != nil {
		if cents, ok := parseMoneyMinorUnits(m[1]); ok {
			res.ValueUsd = cents
			res.OriginalValue = cents
			res.Currency = ex.currency
		}
	}
	if ex.itemsRe != nil {
		if m := ex.itemsRe.FindStringSubmatch(combined); m != nil {
			res.ItemsSummary = strings.Trim(strings.TrimSpace(m[1]), `"`)
		}
	}

	if !res.HasCoreFields() {
		return nil, false
	}

	res.MissingFields = domain.ComputeMissingFields(res.OrderNumber, res.ValueUsd, res.ItemsSummary, len(res.Trackings) > 0)
	return res, true
}

// parseMoneyMinorUnits converts a decimal amount like "1,234.56" to integer
// minor units.
func parseMoneyMinorUnits(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return int64(v*100 + 0.5), true
}
