package feed

import (
	"strings"
)

// detectSampleSize is how much of a source we look at when guessing the
// delimiter. Feeds are unversioned and declare neither schema nor delimiter,
// so this stays a best-effort frequency heuristic.
const detectSampleSize = 5000

// StripBOM removes a leading UTF-8 byte-order mark if present.
func StripBOM(text string) string {
	return strings.TrimPrefix(text, "\ufeff")
}

// DetectDelimiter samples the first ~5000 characters and picks the delimiter
// with the highest occurrence count among comma, semicolon and tab. Ties are
// broken in the fixed preference order semicolon > tab > comma, matching how
// European affiliate feeds most commonly ship.
func DetectDelimiter(text string) rune {
	sample := text
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	commas := strings.Count(sample, ",")
	semicolons := strings.Count(sample, ";")
	tabs := strings.Count(sample, "\t")

	if semicolons >= commas && semicolons >= tabs {
		return ';'
	}
	if tabs >= commas && tabs >= semicolons {
		return '\t'
	}
	return ','
}
