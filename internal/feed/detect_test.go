package feed

import (
	"testing"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected rune
	}{
		{"semicolon_feed", "name;price;url\na;1;u\nb;2;u", ';'},
		{"comma_feed", "name,price,url\na,1,u\nb,2,u", ','},
		{"tab_feed", "name\tprice\turl\na\t1\tu", '\t'},
		{"tie_prefers_semicolon", "a;b,c\nd;e,f", ';'},
		{"tab_beats_comma_on_tie", "a\tb,c\nd\te,f", '\t'},
		{"empty_defaults_to_semicolon", "", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter(tt.input); got != tt.expected {
				t.Errorf("DetectDelimiter(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDetectDelimiter_SamplesPrefixOnly(t *testing.T) {
	// Commas past the 5000-char sample must not outvote the real delimiter.
	head := "col_a;col_b;col_c\n"
	var tail string
	for len(tail) < detectSampleSize*2 {
		tail += "x;y;z\n"
	}
	tail += ",,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,,"
	if got := DetectDelimiter(head + tail); got != ';' {
		t.Errorf("expected semicolon, got %q", got)
	}
}

func TestStripBOM(t *testing.T) {
	if got := StripBOM("\ufeffname;price"); got != "name;price" {
		t.Errorf("BOM not stripped: %q", got)
	}
	if got := StripBOM("name;price"); got != "name;price" {
		t.Errorf("unexpected change without BOM: %q", got)
	}
}

func TestParseRows(t *testing.T) {
	text := "\ufeffproduct_name;price;deeplink\nAtomic Bent 100;549,00;https://x/a\n;;\nSalomon QST 98; 499,95 ;https://x/b\n"
	rows, err := ParseRows(text)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (empty row dropped), got %d", len(rows))
	}
	if rows[0]["product_name"] != "Atomic Bent 100" {
		t.Errorf("row 0 product_name = %q", rows[0]["product_name"])
	}
	if rows[1]["price"] != "499,95" {
		t.Errorf("row 1 price = %q, expected trimmed cell", rows[1]["price"])
	}
}

func TestParseRows_ShortRow(t *testing.T) {
	rows, err := ParseRows("name;price;url\nonly-name;12")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if _, ok := rows[0]["url"]; ok {
		t.Errorf("missing cell should be absent, got %q", rows[0]["url"])
	}
}

func TestParseRows_Empty(t *testing.T) {
	if _, err := ParseRows(""); err == nil {
		t.Fatal("expected error for empty feed")
	}
}
