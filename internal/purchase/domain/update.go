package domain

// DraftUpdate is a sparse optional-field update for a PurchaseDraft. Merge
// precedence is enforced here, centrally, rather than at call sites:
//
//   - first-non-empty-wins: Merchant, StoreName, ItemsSummary, ValueUsd,
//     Currency, OriginalValue
//   - set-union: OrderNumbers
//   - logical OR: InvoicePresent
//   - max: Confidence
type DraftUpdate struct {
	Merchant       *string
	StoreName      *string
	ItemsSummary   *string
	ValueUsd       *int64
	Currency       *string
	OriginalValue  *int64
	OrderNumbers   []string
	InvoicePresent *bool
	Confidence     *float64
}

// UpdateFromResult builds a sparse update from an extraction result.
func UpdateFromResult(res *ExtractionResult) *DraftUpdate {
	u := &DraftUpdate{OrderNumbers: res.OrderNumberList()}
	if res.Merchant != "" {
		u.Merchant = &res.Merchant
	}
	if res.StoreName != "" {
		u.StoreName = &res.StoreName
	}
	if res.ItemsSummary != "" {
		u.ItemsSummary = &res.ItemsSummary
	}
	if res.ValueUsd != 0 {
		u.ValueUsd = &res.ValueUsd
	}
	if res.Currency != "" {
		u.Currency = &res.Currency
	}
	if res.OriginalValue != 0 {
		u.OriginalValue = &res.OriginalValue
	}
	if res.InvoicePresent {
		t := true
		u.InvoicePresent = &t
	}
	c := res.Confidence
	u.Confidence = &c
	return u
}

// UpdateFromDraft builds a sparse update from another draft, used when
// folding a duplicate into a primary during consolidation.
func UpdateFromDraft(dup *PurchaseDraft) *DraftUpdate {
	u := &DraftUpdate{OrderNumbers: ParseOrderNumbers(dup.OrderNumbers)}
	if dup.Merchant != "" {
		u.Merchant = &dup.Merchant
	}
	if dup.StoreName != "" {
		u.StoreName = &dup.StoreName
	}
	if dup.ItemsSummary != "" {
		u.ItemsSummary = &dup.ItemsSummary
	}
	if dup.ValueUsd != 0 {
		u.ValueUsd = &dup.ValueUsd
	}
	if dup.Currency != "" {
		u.Currency = &dup.Currency
	}
	if dup.OriginalValue != 0 {
		u.OriginalValue = &dup.OriginalValue
	}
	if dup.InvoicePresent {
		t := true
		u.InvoicePresent = &t
	}
	c := dup.Confidence
	u.Confidence = &c
	return u
}

// ApplyTo folds the update into the draft under the precedence rules above
// and reports whether anything changed. MissingFields is not touched here:
// callers recompute it once they know the draft's tracking state.
func (u *DraftUpdate) ApplyTo(d *PurchaseDraft) bool {
	changed := false

	if u.Merchant != nil && d.Merchant == "" && *u.Merchant != "" {
		d.Merchant = *u.Merchant
		changed = true
	}
	if u.StoreName != nil && d.StoreName == "" && *u.StoreName != "" {
		d.StoreName = *u.StoreName
		changed = true
	}
	if u.ItemsSummary != nil && d.ItemsSummary == "" && *u.ItemsSummary != "" {
		d.ItemsSummary = *u.ItemsSummary
		changed = true
	}
	if u.ValueUsd != nil && d.ValueUsd == 0 && *u.ValueUsd != 0 {
		d.ValueUsd = *u.ValueUsd
		changed = true
	}
	if u.Currency != nil && d.Currency == "" && *u.Currency != "" {
		d.Currency = *u.Currency
		changed = true
	}
	if u.OriginalValue != nil && d.OriginalValue == 0 && *u.OriginalValue != 0 {
		d.OriginalValue = *u.OriginalValue
		changed = true
	}
	if merged, grew := UnionOrderNumbers(d.OrderNumbers, u.OrderNumbers); grew {
		d.OrderNumbers = merged
		changed = true
	}
	if u.InvoicePresent != nil && *u.InvoicePresent && !d.InvoicePresent {
		d.InvoicePresent = true
		changed = true
	}
	if u.Confidence != nil && *u.Confidence > d.Confidence {
		d.Confidence = *u.Confidence
		changed = true
	}
	return changed
}
