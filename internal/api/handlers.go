package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pricehound/internal/catalog"
	"pricehound/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 24
	maxPageSize     = 50
)

func (s *Server) handleSearch(c *gin.Context) {
	params := catalog.SearchParams{
		Query:         strings.TrimSpace(c.Query("q")),
		Category:      strings.TrimSpace(c.Query("category")),
		MinPriceCents: parseEurosToCents(c.Query("min_price")),
		MaxPriceCents: parseEurosToCents(c.Query("max_price")),
		Sort:          c.DefaultQuery("sort", catalog.SortRelevance),
		Page:          1,
		PageSize:      defaultPageSize,
	}

	if v := c.Query("in_stock"); v == "1" || v == "true" {
		params.InStockOnly = true
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		params.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		if v > maxPageSize {
			v = maxPageSize
		}
		params.PageSize = v
	}

	switch params.Sort {
	case catalog.SortRelevance, catalog.SortPriceAsc, catalog.SortPriceDesc:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort"})
		return
	}

	result, err := s.searcher.SearchProducts(c.Request.Context(), params)
	if err != nil {
		s.logger.Error("search failed", slog.String("q", params.Query), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSuggest(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if len(q) < 2 {
		c.JSON(http.StatusOK, gin.H{"suggestions": []catalog.Suggestion{}})
		return
	}

	suggestions, err := s.searcher.Suggest(c.Request.Context(), q)
	if err != nil {
		s.logger.Error("suggest failed", slog.String("q", q), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suggest failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// handleRedirect logs a click and forwards the visitor to the merchant.
func (s *Server) handleRedirect(c *gin.Context) {
	merchantSlug := c.Param("merchant")
	offerID, err := strconv.ParseUint(c.Param("offerID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer id"})
		return
	}

	target, err := s.clicks.RecordClick(c.Request.Context(), merchantSlug, uint(offerID), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
			return
		}
		s.logger.Error("record click failed", slog.Uint64("offer_id", offerID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redirect failed"})
		return
	}

	metrics.ClicksTotal.Inc()
	c.Redirect(http.StatusFound, target)
}

func (s *Server) handleClicksExport(c *gin.Context) {
	limit := 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = v
	}

	rows, err := s.clicks.RecentClicks(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("clicks export failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="clicks.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"clicked_at", "merchant", "product", "product_slug", "price_at_click", "currency", "ip", "user_agent"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			row.Merchant,
			row.Product,
			row.ProductSlug,
			formatCents(row.PriceCentsAtClick),
			row.Currency,
			row.IP,
			row.UserAgent,
		})
	}
	w.Flush()
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
