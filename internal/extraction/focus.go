package extraction

import (
	"strings"
	"unicode/utf8"
)

// Keywords that anchor the interesting region of a long message.
var focusKeywords = []string{
	"order number", "order #", "order confirmation", "tracking number",
	"tracking #", "order total", "grand total", "pedido", "seguimiento",
	"total", "tracking", "order",
}

// FocusText bounds text to max characters. Long text is windowed around the
// first occurrence of an order/tracking keyword so the model sees the part
// that matters; without a keyword hit the prefix is kept.
func FocusText(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}

	lower := strings.ToLower(text)
	anchor := -1
	for _, kw := range focusKeywords {
		if idx := strings.Index(lower, kw); idx >= 0 {
			anchor = idx
			break
		}
	}
	if anchor < 0 {
		return text[:prevRuneStart(text, max)]
	}

	start := anchor - max/4
	if start < 0 {
		start = 0
	}
	end := start + max
	if end > len(text) {
		end = len(text)
		start = end - max
	}
	return text[nextRuneStart(text, start):prevRuneStart(text, end)]
}

// prevRuneStart and nextRuneStart snap a byte offset to a rune boundary so
// windows never cut a multi-byte character in half.
func prevRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func nextRuneStart(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// Snippet produces a bounded, keyword-focused snippet for evidence records.
func Snippet(msg string, max int) string {
	return FocusText(msg, max)
}
