// Package slug derives stable, URL-safe identifiers from display strings.
//
// Slugs are the natural keys of the catalog: merchants are keyed by the slug
// of their display name and products by the slug of "brand model season".
// The function is pure and referentially transparent, so the same input
// resolves to the same catalog row across runs, restarts and feed languages.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxLen bounds slug length so natural keys fit indexed varchar columns.
const maxLen = 100

// stripMarks decomposes to NFD and drops combining marks, turning "é" into "e".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make converts a display string into its slug: diacritics stripped,
// lower-cased, runs of non-alphanumerics collapsed to single hyphens,
// trimmed, and truncated to 100 characters.
func Make(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform only fails on malformed input; fall back to the raw
		// string so a bad byte never changes identity resolution paths.
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	out := b.String()
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}
	return out
}

// ForProduct builds the product slug from its identity triple. Season is
// omitted when the feed carries none.
func ForProduct(brand, model, season string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{brand, model, season} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return Make(strings.Join(parts, " "))
}
