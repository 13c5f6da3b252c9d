package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Sort orders accepted by SearchProducts.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// SearchParams filters the product search. Zero values mean "no filter";
// prices are minor units.
type SearchParams struct {
	Query         string
	Category      string
	InStockOnly   bool
	MinPriceCents int64
	MaxPriceCents int64
	Sort          string
	Page          int
	PageSize      int
}

// ProductHit is one ranked search result with its cheapest in-stock offer.
type ProductHit struct {
	ID            uint    `json:"id"`
	Slug          string  `json:"slug"`
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Season        string  `json:"season"`
	Category      string  `json:"category"`
	MinPriceCents *int64  `json:"minPriceCents"`
	OfferCount    int     `json:"offerCount"`
	Score         float64 `json:"-"`
}

// SearchResult is one page of hits plus paging metadata.
type SearchResult struct {
	Items      []ProductHit `json:"items"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	Total      int64        `json:"total"`
	TotalPages int64        `json:"totalPages"`
	Query      string       `json:"q"`
}

// Suggestion is one typeahead entry.
type Suggestion struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// SearchProducts returns products matching the query and filters, each with
// its cheapest in-stock price and live offer count. Relevance is the number
// of query tokens matched against brand/model/season; all tokens must match.
func (s *GormStore) SearchProducts(ctx context.Context, p SearchParams) (*SearchResult, error) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	pageSize := p.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}

	where, whereArgs, score, scoreArgs := buildQueryClauses(p)

	base := fmt.Sprintf(`
		SELECT p.id, p.slug, p.brand, p.model, p.season, p.category,
		       MIN(CASE WHEN o.in_stock THEN o.price_cents END) AS min_price_cents,
		       COUNT(CASE WHEN o.in_stock THEN 1 END)           AS offer_count,
		       %s AS score
		FROM products p
		LEFT JOIN skus s   ON s.product_id = p.id
		LEFT JOIN offers o ON o.sku_id     = s.id
		WHERE %s
		GROUP BY p.id, p.slug, p.brand, p.model, p.season, p.category`, score, where)

	having, havingArgs := buildHavingClause(p)
	if having != "" {
		base += "\n\t\tHAVING " + having
	}
	base += "\n\t\tORDER BY " + orderClause(p.Sort)
	base += "\n\t\tLIMIT ? OFFSET ?"

	args := append(append(append(scoreArgs, whereArgs...), havingArgs...), pageSize, (page-1)*pageSize)

	var items []ProductHit
	if err := s.db.WithContext(ctx).Raw(base, args...).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if items == nil {
		items = []ProductHit{}
	}

	countSQL := "SELECT COUNT(*) FROM products p WHERE " + where
	var total int64
	if err := s.db.WithContext(ctx).Raw(countSQL, whereArgs...).Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	return &SearchResult{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		Query:      strings.TrimSpace(p.Query),
	}, nil
}

// buildQueryClauses composes the token-match WHERE expression and the
// relevance score. Tokens are ANDed; each contributes one point to the score.
func buildQueryClauses(p SearchParams) (where string, whereArgs []interface{}, score string, scoreArgs []interface{}) {
	var conds []string

	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(p.Query)))
	haystack := "LOWER(CONCAT_WS(' ', p.brand, p.model, p.season))"

	if len(tokens) == 0 {
		score = "0"
	} else {
		var scoreParts []string
		for _, tok := range tokens {
			needle := "%" + tok + "%"
			conds = append(conds, haystack+" LIKE ?")
			whereArgs = append(whereArgs, needle)
			scoreParts = append(scoreParts, "("+haystack+" LIKE ?)")
			scoreArgs = append(scoreArgs, needle)
		}
		score = strings.Join(scoreParts, " + ")
	}

	if p.Category != "" {
		conds = append(conds, "p.category = ?")
		whereArgs = append(whereArgs, p.Category)
	}

	if len(conds) == 0 {
		return "1=1", nil, score, scoreArgs
	}
	return strings.Join(conds, " AND "), whereArgs, score, scoreArgs
}

// buildHavingClause applies the post-aggregation filters: stock-only and the
// price window, both over the cheapest in-stock price.
func buildHavingClause(p SearchParams) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if p.InStockOnly {
		conds = append(conds, "min_price_cents IS NOT NULL")
	}
	if p.MinPriceCents > 0 {
		conds = append(conds, "min_price_cents >= ?")
		args = append(args, p.MinPriceCents)
	}
	if p.MaxPriceCents > 0 {
		conds = append(conds, "min_price_cents <= ?")
		args = append(args, p.MaxPriceCents)
	}
	return strings.Join(conds, " AND "), args
}

func orderClause(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "min_price_cents IS NULL, min_price_cents ASC, p.id ASC"
	case SortPriceDesc:
		return "min_price_cents IS NULL, min_price_cents DESC, p.id ASC"
	default:
		return "score DESC, min_price_cents IS NULL, min_price_cents ASC, p.id ASC"
	}
}

// Suggest returns up to ten prefix matches over brand and model, brand
// matches first.
func (s *GormStore) Suggest(ctx context.Context, q string) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}, nil
	}
	prefix := strings.ToLower(q) + "%"

	var rows []struct {
		Slug  string
		Brand string
		Model string
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT slug, brand, model
		FROM products
		WHERE LOWER(brand) LIKE ? OR LOWER(model) LIKE ?
		ORDER BY
		  CASE WHEN LOWER(brand) LIKE ? THEN 0 ELSE 1 END,
		  slug
		LIMIT 10`, prefix, prefix, prefix).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	out := make([]Suggestion, 0, len(rows))
	for _, r := range rows {
		label := strings.TrimSpace(r.Brand + " " + r.Model)
		out = append(out, Suggestion{Label: label, Slug: r.Slug})
	}
	return out, nil
}
