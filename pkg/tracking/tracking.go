// Package tracking detects carrier tracking numbers in free text.
//
// The detector is a pure function over a fixed pattern table and can be used
// independently of message classification or extraction.
package tracking

import (
	"regexp"
	"strings"
)

// Hit is one detected tracking number. Carrier is empty when the pattern
// could not be attributed to a specific carrier.
type Hit struct {
	Number  string `json:"tracking_number"`
	Carrier string `json:"carrier"`
}

type carrierPattern struct {
	carrier string
	re      *regexp.Regexp
}

// Ordered: more specific carrier formats first so ambiguous digit runs are
// attributed to the most likely carrier.
var patterns = []carrierPattern{
	{"ups", regexp.MustCompile(`\b1Z[0-9A-Z]{16}\b`)},
	{"usps", regexp.MustCompile(`\b9[2345]\d{20,24}\b`)},
	{"dhl", regexp.MustCompile(`\bJD\d{16,18}\b`)},
	{"fedex", regexp.MustCompile(`\b\d{15}\b`)},
	{"fedex", regexp.MustCompile(`\b\d{12}\b`)},
	{"dhl", regexp.MustCompile(`\b\d{10}\b`)},
	{"", regexp.MustCompile(`\b[A-Z]{2}\d{9}[A-Z]{2}\b`)}, // UPU S10 (postal)
}

// Detect scans text and returns a deduplicated, order-preserving list of
// tracking number hits. Numbers are trimmed and upper-cased before
// deduplication so differently-cased mentions collapse to one entry.
func Detect(text string) []Hit {
	if text == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	var hits []Hit
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, match := range p.re.FindAllString(upper, -1) {
			number := strings.TrimSpace(match)
			if number == "" || seen[number] {
				continue
			}
			seen[number] = true
			hits = append(hits, Hit{Number: number, Carrier: p.carrier})
		}
	}
	return hits
}

// Normalize canonicalizes a tracking number the same way Detect does, so
// externally supplied numbers (e.g. from a language model) can be compared
// against detector output.
func Normalize(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}
