package domain

import (
	"sort"
	"strings"
	"time"
)

// PurchaseDraft statuses.
const (
	DraftStatusDraft     = "draft"
	DraftStatusConfirmed = "confirmed"
	DraftStatusRejected  = "rejected"
)

// Missing-field names, in the fixed order they are reported.
const (
	MissingOrderNumber  = "orderNumber"
	MissingValueUsd     = "valueUsd"
	MissingTracking     = "trackingNumbers"
	MissingItemsSummary = "itemsSummary"
)

// PurchaseDraft is the canonical, mergeable record of a single purchase
// inferred from one or more messages.
//
// OrderNumbers is a canonical sorted comma-joined set; it only grows.
// Confidence only grows (max of merged sources). Monetary fields follow
// first-non-empty-wins and are integer minor units.
type PurchaseDraft struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index;not null"`
	EvidenceID     string    `json:"evidence_id"`
	Merchant       string    `json:"merchant"`
	StoreName      string    `json:"store_name"`
	OrderNumbers   string    `json:"order_numbers" gorm:"index"`
	ItemsSummary   string    `json:"items_summary"`
	ValueUsd       int64     `json:"value_usd"`
	Currency       string    `json:"currency"`
	OriginalValue  int64     `json:"original_value"`
	Confidence     float64   `json:"confidence"`
	MissingFields  string    `json:"missing_fields"`
	InvoicePresent bool      `json:"invoice_present"`
	Status         string    `json:"status" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ParseOrderNumbers splits a comma-joined order number field into trimmed,
// non-empty entries.
func ParseOrderNumbers(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinOrderNumbers canonicalizes a set of order numbers: deduplicated,
// sorted, comma-joined.
func JoinOrderNumbers(numbers []string) string {
	seen := make(map[string]bool)
	var uniq []string
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		uniq = append(uniq, n)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ",")
}

// UnionOrderNumbers merges additional numbers into an existing canonical
// set and reports whether the set grew.
func UnionOrderNumbers(existing string, add []string) (string, bool) {
	merged := JoinOrderNumbers(append(ParseOrderNumbers(existing), add...))
	return merged, merged != existing
}

// ComputeMissingFields derives the missing-field list from the draft's
// current core state, in the fixed order orderNumber, valueUsd,
// trackingNumbers, itemsSummary.
func ComputeMissingFields(orderNumbers string, valueUsd int64, itemsSummary string, hasTracking bool) []string {
	var missing []string
	if orderNumbers == "" {
		missing = append(missing, MissingOrderNumber)
	}
	if valueUsd == 0 {
		missing = append(missing, MissingValueUsd)
	}
	if !hasTracking {
		missing = append(missing, MissingTracking)
	}
	if itemsSummary == "" {
		missing = append(missing, MissingItemsSummary)
	}
	return missing
}

// RecomputeMissingFields refreshes the stored missing-field list on the
// draft. Call after every mutation.
func (d *PurchaseDraft) RecomputeMissingFields(hasTracking bool) {
	d.MissingFields = strings.Join(ComputeMissingFields(d.OrderNumbers, d.ValueUsd, d.ItemsSummary, hasTracking), ",")
}

// MissingFieldList returns the stored missing-field list as a slice.
func (d *PurchaseDraft) MissingFieldList() []string {
	if d.MissingFields == "" {
		return nil
	}
	return strings.Split(d.MissingFields, ",")
}
