package domain

import "receiptradar-backend/pkg/tracking"

// ExtractionResult is the canonical, transient output of the extraction
// stage (deterministic or LLM) after normalization. Monetary values are
// integer minor units. OriginalValue mirrors ValueUsd today: no foreign
// exchange conversion is performed.
type ExtractionResult struct {
	Merchant       string
	StoreName      string
	OrderNumber    string // may be comma-joined when one message names several
	ItemsSummary   string
	ValueUsd       int64
	Currency       string
	OriginalValue  int64
	Trackings      []tracking.Hit
	InvoicePresent bool
	Confidence     float64
	MissingFields  []string
}

// HasCoreFields reports whether the result carries enough to be worth
// persisting: an order number or at least one tracking number.
func (r *ExtractionResult) HasCoreFields() bool {
	return r.OrderNumber != "" || len(r.Trackings) > 0
}

// OrderNumberList returns the individual order numbers named by the result.
func (r *ExtractionResult) OrderNumberList() []string {
	return ParseOrderNumbers(r.OrderNumber)
}
