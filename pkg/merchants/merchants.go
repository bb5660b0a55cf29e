package merchants

import "strings"

// Merchant holds the declarative matching configuration for one supported
// merchant. The table is loaded once at startup and never mutated.
type Merchant struct {
	// Name is the canonical merchant identifier stored on drafts and evidence.
	Name string
	// DisplayName is what we show to users and send in notifications.
	DisplayName string
	// AllowDomains are root domains accepted for DKIM identity matching.
	AllowDomains []string
	// FromAllowDomains, when set, replace AllowDomains for From/Reply-To
	// matching. Empty means AllowDomains apply to both.
	FromAllowDomains []string
	// DenyDomains reject the merchant outright when seen as a DKIM domain
	// (shared ESPs that also sign mail for unrelated senders).
	DenyDomains []string
	// IncludeKeywords: subject or combined text must contain at least one.
	IncludeKeywords []string
	// ExcludeKeywords: subject must not contain any.
	ExcludeKeywords []string
	// BodyMarkers: combined text must contain at least one.
	BodyMarkers []string
	// SearchQuery is the provider search used during full sync to surface
	// candidates from this merchant.
	SearchQuery string
}

// registry is ordered by priority: the first merchant that fully matches a
// message wins.
var registry = []Merchant{
	{
		Name:            "amazon",
		DisplayName:     "Amazon",
		AllowDomains:    []string{"amazon.com", "amazon.es", "amazon.co.uk", "amazon.de", "amazon.com.mx"},
		DenyDomains:     []string{"amazonses.com"},
		IncludeKeywords: []string{"order", "pedido", "shipped", "enviado", "delivery", "entrega"},
		ExcludeKeywords: []string{"recommendation", "deal of the day", "kindle daily"},
		BodyMarkers:     []string{"order", "pedido", "total"},
		SearchQuery:     "from:(amazon.com OR amazon.es OR amazon.co.uk)",
	},
	{
		Name:            "ebay",
		DisplayName:     "eBay",
		AllowDomains:    []string{"ebay.com", "ebay.es", "ebay.co.uk"},
		IncludeKeywords: []string{"order confirmed", "you bought", "shipped", "compra", "enviado"},
		ExcludeKeywords: []string{"watchlist", "saved search", "daily deals"},
		BodyMarkers:     []string{"order", "item", "total"},
		SearchQuery:     "from:(ebay.com OR ebay.es)",
	},
	{
		Name:             "aliexpress",
		DisplayName:      "AliExpress",
		AllowDomains:     []string{"aliexpress.com", "alibaba.com"},
		FromAllowDomains: []string{"aliexpress.com"},
		IncludeKeywords:  []string{"order", "shipped", "payment", "pedido", "enviado"},
		ExcludeKeywords:  []string{"coins", "flash deal", "super deals"},
		BodyMarkers:      []string{"order", "tracking", "total"},
		SearchQuery:      "from:(aliexpress.com)",
	},
	{
		Name:            "walmart",
		DisplayName:     "Walmart",
		AllowDomains:    []string{"walmart.com", "walmart.com.mx"},
		IncludeKeywords: []string{"order", "shipped", "pickup", "delivery"},
		ExcludeKeywords: []string{"rollback", "weekly ad"},
		BodyMarkers:     []string{"order", "total"},
		SearchQuery:     "from:(walmart.com)",
	},
	{
		Name:            "etsy",
		DisplayName:     "Etsy",
		AllowDomains:    []string{"etsy.com"},
		IncludeKeywords: []string{"order", "shipped", "purchase"},
		ExcludeKeywords: []string{"favorites", "editors' picks"},
		BodyMarkers:     []string{"order", "total"},
		SearchQuery:     "from:(etsy.com)",
	},
}

// All returns the merchant table in priority order.
func All() []Merchant {
	return registry
}

// ByName returns the merchant config for a canonical name, or nil.
func ByName(name string) *Merchant {
	for i := range registry {
		if registry[i].Name == name {
			return &registry[i]
		}
	}
	return nil
}

// DisplayNameFor maps a canonical merchant name to its display name,
// falling back to the raw name.
func DisplayNameFor(name string) string {
	if m := ByName(name); m != nil {
		return m.DisplayName
	}
	return name
}

// RootDomain reduces a hostname to its last two DNS labels
// ("mail.amazon.com" -> "amazon.com").
//
// Known limitation: this is wrong for multi-label public suffixes such as
// "amazon.co.uk" (it yields "co.uk"). Merchant allow lists include the
// affected country domains verbatim so matching still works for the
// merchants we configure; a public-suffix-list lookup would be the real fix.
func RootDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// ContainsDomain reports whether the root domain of host is in the list.
func ContainsDomain(list []string, host string) bool {
	root := RootDomain(host)
	for _, d := range list {
		if root == strings.ToLower(d) || strings.ToLower(host) == strings.ToLower(d) {
			return true
		}
	}
	return false
}
