package feed

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Record is the canonical, strongly-typed form of one feed row. Everything
// downstream of the normalizer works on Records only.
type Record struct {
	Merchant    string // merchant display name
	ProductName string // raw product title
	Brand       string // normalized brand
	Model       string // model with any brand prefix stripped
	Season      string
	Category    string

	PriceCents    int64  // always > 0 for an accepted record
	ShippingCents *int64 // nil when the feed carried no parseable shipping cost
	Currency      string // upper-cased ISO code, defaults to EUR
	InStock       bool

	AffiliateURL string
	GTIN         string
	ExternalID   string // provider's own row identifier, informational only
}

// fieldCandidates maps each canonical field to the ordered column names we
// try against a raw row. Providers rename headers freely between feed
// versions; extending a list here is the whole migration.
var fieldCandidates = map[string][]string{
	"merchant":     {"merchant", "merchant_name", "shop", "store", "retailer"},
	"name":         {"product_name", "name", "title"},
	"brand":        {"brand", "marque"},
	"model":        {"model", "product", "title", "name"},
	"season":       {"season", "saison"},
	"category":     {"category", "category_name", "categorie"},
	"price":        {"price", "price_eur", "price_euros", "sale_price"},
	"shipping":     {"shipping_cost", "shipping", "delivery_cost"},
	"currency":     {"currency", "devise"},
	"availability": {"availability", "in_stock", "instock", "stock"},
	"url":          {"deeplink", "aw_deeplink", "product_url", "url", "link"},
	"gtin":         {"gtin", "ean", "barcode"},
	"external_id":  {"id", "product_id", "offer_id", "sku"},
}

// positiveStockTokens is the vocabulary a free-text availability cell is
// matched against. Absence of the field means in stock.
var positiveStockTokens = []string{
	"1", "true", "yes", "oui",
	"enstock", "en stock", "instock", "in stock",
	"available", "disponible",
}

// fallbackMerchant names rows whose feed carries no merchant column at all,
// so such feeds keep collapsing into a single merchant across runs.
const fallbackMerchant = "marchand"

// pick returns the first non-empty cell among the candidate columns, trying
// each name exactly and then lower-cased.
func pick(row RawRow, field string) string {
	for _, key := range fieldCandidates[field] {
		if v := strings.TrimSpace(row[key]); v != "" {
			return v
		}
		if v := strings.TrimSpace(row[strings.ToLower(key)]); v != "" {
			return v
		}
	}
	return ""
}

// toCents parses a free-form price cell into integer minor-currency units.
//
// Whitespace is stripped, the first comma is treated as the decimal
// separator, and everything except digits and the point is dropped before
// parsing. Anything that does not parse to a finite number yields nil.
func toCents(s string) *int64 {
	if s == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	cleaned = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, cleaned)

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil
	}
	cents := int64(math.Round(n * 100))
	return &cents
}

// normalizeBrand fixes feed brand casing: short names are treated as
// acronyms ("atk" -> "ATK"), longer ones get a single leading capital.
func normalizeBrand(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	if len(lower) <= 4 {
		return strings.ToUpper(s)
	}
	r := []rune(lower)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// parseAvailability matches a free-text stock cell against the positive
// vocabulary. An absent cell defaults to in stock.
func parseAvailability(s string) bool {
	if s == "" {
		return true
	}
	lower := strings.ToLower(s)
	for _, tok := range positiveStockTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// stripBrandPrefix removes the brand token from the front of a title,
// case-insensitively, so "Atomic Bent 100" with brand "Atomic" yields
// "Bent 100".
func stripBrandPrefix(title, brand string) string {
	if brand == "" {
		return title
	}
	if len(title) > len(brand) && strings.EqualFold(title[:len(brand)], brand) {
		rest := title[len(brand):]
		if trimmed := strings.TrimLeft(rest, " \t"); trimmed != rest {
			return trimmed
		}
	}
	return title
}

// Normalize extracts a canonical Record from a raw row, or returns nil when
// the row fails the quality gate (no product name, no affiliate URL, or no
// positive price). Rejection is silent; the caller counts it.
func Normalize(row RawRow, defaultCategory string) *Record {
	merchant := pick(row, "merchant")
	if merchant == "" {
		merchant = fallbackMerchant
	}

	productName := pick(row, "name")
	brandRaw := pick(row, "brand")
	brand := normalizeBrand(brandRaw)
	modelRaw := pick(row, "model")
	if modelRaw == "" {
		modelRaw = productName
	}
	season := pick(row, "season")

	category := pick(row, "category")
	if category == "" {
		category = defaultCategory
	}

	price := toCents(pick(row, "price"))
	shipping := toCents(pick(row, "shipping"))

	currency := strings.ToUpper(pick(row, "currency"))
	if currency == "" {
		currency = "EUR"
	}
	inStock := parseAvailability(pick(row, "availability"))
	affiliateURL := pick(row, "url")

	if productName == "" || affiliateURL == "" || price == nil || *price <= 0 {
		return nil
	}

	// No brand column: infer it from the first title token and strip that
	// token from the model so "Atomic Bent 100" becomes Atomic / Bent 100.
	model := modelRaw
	if brand == "" {
		fields := strings.Fields(productName)
		if len(fields) > 0 {
			brand = fields[0]
		} else {
			brand = "Unknown"
		}
		model = stripBrandPrefix(productName, brand)
	}

	return &Record{
		Merchant:      merchant,
		ProductName:   productName,
		Brand:         brand,
		Model:         model,
		Season:        season,
		Category:      category,
		PriceCents:    *price,
		ShippingCents: shipping,
		Currency:      currency,
		InStock:       inStock,
		AffiliateURL:  affiliateURL,
		GTIN:          pick(row, "gtin"),
		ExternalID:    pick(row, "external_id"),
	}
}
