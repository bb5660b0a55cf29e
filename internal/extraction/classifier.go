// Package extraction turns inbound messages into canonical extraction
// results: merchant classification, deterministic per-merchant parsing,
// LLM-result normalization and text focusing.
package extraction

import (
	"net/mail"
	"regexp"
	"strings"

	"receiptradar-backend/internal/purchase/domain"
	"receiptradar-backend/pkg/merchants"
)

// ReasonNoMatch is reported when no configured merchant matches a message.
const ReasonNoMatch = "no_merchant_match"

// MatchResult is the classifier outcome for one message.
type MatchResult struct {
	Matched  bool
	Merchant string
	Reason   string
}

var (
	headerDomainRe = regexp.MustCompile(`header\.d=([A-Za-z0-9.-]+)`)
	bareDomainRe   = regexp.MustCompile(`\bd=([A-Za-z0-9.-]+)`)
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
)

// ClassifyMessage decides whether a message belongs to a configured
// merchant. Merchants are tried in priority order; the first one whose
// identity and intent rules all pass wins.
func ClassifyMessage(msg *domain.InboundMessage) MatchResult {
	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.PlainBody)
	if body == "" && msg.HTMLBody != "" {
		body = strings.ToLower(StripHTML(msg.HTMLBody))
	}
	combined := subject + " " + strings.ToLower(msg.Snippet) + " " + body

	dkimDomains := dkimSigningDomains(msg)
	fromDomains := senderDomains(msg)

	for _, m := range merchants.All() {
		if !identityMatches(&m, dkimDomains, fromDomains) {
			continue
		}
		if !intentMatches(&m, subject, combined) {
			continue
		}
		return MatchResult{Matched: true, Merchant: m.Name, Reason: "matched"}
	}
	return MatchResult{Matched: false, Reason: ReasonNoMatch}
}

func identityMatches(m *merchants.Merchant, dkimDomains, fromDomains []string) bool {
	for _, d := range dkimDomains {
		if merchants.ContainsDomain(m.DenyDomains, d) {
			return false
		}
	}

	// When the message carries verified DKIM domains they are
	// authoritative: at least one must be on the allow list. Only
	// unauthenticated mail falls back to From/Reply-To matching.
	if len(dkimDomains) > 0 {
		for _, d := range dkimDomains {
			if merchants.ContainsDomain(m.AllowDomains, d) {
				return true
			}
		}
		return false
	}

	allow := m.FromAllowDomains
	if len(allow) == 0 {
		allow = m.AllowDomains
	}
	for _, d := range fromDomains {
		if merchants.ContainsDomain(allow, d) {
			return true
		}
	}
	return false
}

func intentMatches(m *merchants.Merchant, subject, combined string) bool {
	for _, kw := range m.ExcludeKeywords {
		if strings.Contains(subject, strings.ToLower(kw)) {
			return false
		}
	}

	hasInclude := false
	for _, kw := range m.IncludeKeywords {
		lower := strings.ToLower(kw)
		if strings.Contains(subject, lower) || strings.Contains(combined, lower) {
			hasInclude = true
			break
		}
	}
	if !hasInclude {
		return false
	}

	for _, marker := range m.BodyMarkers {
		if strings.Contains(combined, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// dkimSigningDomains scans the Authentication-Results header (ARC variant
// as fallback) for DKIM signing domains, but only when the overall
// authentication result is a pass. Domains are returned verbatim, not
// root-reduced: allow lists carry multi-label entries such as
// "amazon.co.uk" that must see the full host to match.
func dkimSigningDomains(msg *domain.InboundMessage) []string {
	results := msg.AuthResults
	if results == "" {
		results = msg.ARCResults
	}
	if results == "" || !strings.Contains(strings.ToLower(results), "dkim=pass") {
		return nil
	}

	matches := headerDomainRe.FindAllStringSubmatch(results, -1)
	if len(matches) == 0 {
		matches = bareDomainRe.FindAllStringSubmatch(results, -1)
	}

	var domains []string
	seen := make(map[string]bool)
	for _, match := range matches {
		d := strings.ToLower(strings.TrimSuffix(match[1], "."))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	return domains
}

func senderDomains(msg *domain.InboundMessage) []string {
	var domains []string
	seen := make(map[string]bool)
	for _, addr := range []string{msg.From, msg.ReplyTo} {
		d := strings.ToLower(addressDomain(addr))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	return domains
}

func addressDomain(addr string) string {
	if addr == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.Trim(addr[at+1:], "<> ")
}

// StripHTML reduces an HTML body to whitespace-collapsed text.
func StripHTML(html string) string {
	text := htmlTagRe.ReplaceAllString(html, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	return strings.Join(strings.Fields(text), " ")
}
