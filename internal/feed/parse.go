package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawRow is one loosely-typed feed row: header name to raw cell text.
// It never leaks past the normalizer boundary.
type RawRow map[string]string

// ParseRows turns raw feed text into header-keyed rows.
//
// The byte-order mark is stripped and the delimiter inferred before parsing.
// Quoting is relaxed and rows may have fewer cells than headers; feeds are
// provider-generated and frequently sloppy about both.
func ParseRows(text string) ([]RawRow, error) {
	text = StripBOM(text)
	delim := DetectDelimiter(text)

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("feed is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []RawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}

		row := make(RawRow, len(header))
		empty := true
		for i, col := range header {
			if col == "" || i >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[i])
			row[col] = cell
			if cell != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
