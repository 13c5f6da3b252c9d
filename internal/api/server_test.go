package api

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pricehound/internal/catalog"
	"pricehound/internal/config"
	"pricehound/internal/ingest"
	"pricehound/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type mockSearcher struct {
	lastParams  catalog.SearchParams
	searchCalls int
	suggestQ    string
	result      *catalog.SearchResult
	suggestions []catalog.Suggestion
}

func (m *mockSearcher) SearchProducts(_ context.Context, p catalog.SearchParams) (*catalog.SearchResult, error) {
	m.searchCalls++
	m.lastParams = p
	if m.result != nil {
		return m.result, nil
	}
	return &catalog.SearchResult{Items: []catalog.ProductHit{}, Page: p.Page, PageSize: p.PageSize}, nil
}

func (m *mockSearcher) Suggest(_ context.Context, q string) ([]catalog.Suggestion, error) {
	m.suggestQ = q
	return m.suggestions, nil
}

type mockClickStore struct {
	target    string
	err       error
	lastSlug  string
	lastOffer uint
	rows      []catalog.ClickRow
}

func (m *mockClickStore) RecordClick(_ context.Context, merchantSlug string, offerID uint, _, _ string) (string, error) {
	m.lastSlug = merchantSlug
	m.lastOffer = offerID
	if m.err != nil {
		return "", m.err
	}
	return m.target, nil
}

func (m *mockClickStore) RecentClicks(_ context.Context, _ int) ([]catalog.ClickRow, error) {
	return m.rows, nil
}

type mockTrigger struct {
	summary *ingest.Summary
	err     error
	calls   int
}

func (m *mockTrigger) Run(context.Context) (*ingest.Summary, error) {
	m.calls++
	return m.summary, m.err
}

func newTestServer(searcher Searcher, clicks ClickStore, trigger IngestTrigger, adminKey string) *Server {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	s := &Server{
		cfg:      &config.Config{Security: config.SecurityConfig{AdminKey: adminKey}},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		router:   gin.New(),
		searcher: searcher,
		clicks:   clicks,
		trigger:  trigger,
	}
	s.registerRoutes()
	return s
}

func TestSearch_ParamParsing(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(searcher, &mockClickStore{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=atomic+bent&category=skis-all-mountain&min_price=100&max_price=650.50&in_stock=1&sort=price_asc&page=2&page_size=10", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	p := searcher.lastParams
	if p.Query != "atomic bent" {
		t.Errorf("Query = %q", p.Query)
	}
	if p.Category != "skis-all-mountain" {
		t.Errorf("Category = %q", p.Category)
	}
	if p.MinPriceCents != 10000 || p.MaxPriceCents != 65050 {
		t.Errorf("price window = %d..%d", p.MinPriceCents, p.MaxPriceCents)
	}
	if !p.InStockOnly {
		t.Error("InStockOnly = false")
	}
	if p.Sort != catalog.SortPriceAsc {
		t.Errorf("Sort = %q", p.Sort)
	}
	if p.Page != 2 || p.PageSize != 10 {
		t.Errorf("paging = %d/%d", p.Page, p.PageSize)
	}
}

func TestParseEurosToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"100", 10000},
		{"650.50", 65050},
		{"49.99", 4999}, // 49.99*100 is 4998.999... in binary
		{"0.07", 7},
		{"-5", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseEurosToCents(tt.in); got != tt.want {
			t.Errorf("parseEurosToCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSearch_Defaults(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(searcher, &mockClickStore{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	p := searcher.lastParams
	if p.Sort != catalog.SortRelevance {
		t.Errorf("default sort = %q", p.Sort)
	}
	if p.Page != 1 || p.PageSize != defaultPageSize {
		t.Errorf("default paging = %d/%d", p.Page, p.PageSize)
	}
}

func TestSearch_InvalidSort(t *testing.T) {
	searcher := &mockSearcher{}
	s := newTestServer(searcher, &mockClickStore{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search?sort=sideways", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if searcher.searchCalls != 0 {
		t.Error("search called despite invalid sort")
	}
}

func TestSuggest_ShortQuerySkipsStore(t *testing.T) {
	searcher := &mockSearcher{suggestions: []catalog.Suggestion{{Label: "Atomic", Slug: ""}}}
	s := newTestServer(searcher, &mockClickStore{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/suggest?q=a", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if searcher.suggestQ != "" {
		t.Error("store queried for a one-character prefix")
	}
}

func TestRedirect(t *testing.T) {
	clicks := &mockClickStore{target: "https://example.com/ekosport/atomic-bent-100"}
	s := newTestServer(&mockSearcher{}, clicks, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/go/ekosport/42", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != clicks.target {
		t.Errorf("Location = %q", loc)
	}
	if clicks.lastSlug != "ekosport" || clicks.lastOffer != 42 {
		t.Errorf("recorded %q/%d", clicks.lastSlug, clicks.lastOffer)
	}
}

func TestRedirect_UnknownOffer(t *testing.T) {
	clicks := &mockClickStore{err: catalog.ErrNotFound}
	s := newTestServer(&mockSearcher{}, clicks, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/go/ekosport/999", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdmin_KeyRequired(t *testing.T) {
	s := newTestServer(&mockSearcher{}, &mockClickStore{}, nil, "secret")

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing key", "/api/admin/clicks", "", http.StatusForbidden},
		{"wrong key", "/api/admin/clicks", "nope", http.StatusForbidden},
		{"header key", "/api/admin/clicks", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Key", tt.header)
			}
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAdmin_QueryKeyAccepted(t *testing.T) {
	s := newTestServer(&mockSearcher{}, &mockClickStore{}, nil, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/clicks?key=secret", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdmin_DisabledWithoutConfiguredKey(t *testing.T) {
	s := newTestServer(&mockSearcher{}, &mockClickStore{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/clicks?key=anything", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestClicksExport_CSV(t *testing.T) {
	clicks := &mockClickStore{rows: []catalog.ClickRow{
		{
			CreatedAt:         time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC),
			Merchant:          "Ekosport",
			Product:           "Atomic Bent 100 2025/26",
			ProductSlug:       "atomic-bent-100-2025-26",
			PriceCentsAtClick: 54900,
			Currency:          "EUR",
			IP:                "203.0.113.9",
			UserAgent:         "Mozilla/5.0",
		},
	}}
	s := newTestServer(&mockSearcher{}, clicks, nil, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/clicks", nil)
	req.Header.Set("X-Admin-Key", "secret")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d", len(records))
	}
	if records[0][0] != "clicked_at" {
		t.Errorf("header = %v", records[0])
	}
	row := records[1]
	if row[1] != "Ekosport" || row[4] != "549.00" || row[5] != "EUR" {
		t.Errorf("row = %v", row)
	}
	if row[0] != "2026-01-10T09:30:00Z" {
		t.Errorf("clicked_at = %q", row[0])
	}
}

func TestTriggerIngest(t *testing.T) {
	tests := []struct {
		name    string
		trigger *mockTrigger
		want    int
	}{
		{"ok", &mockTrigger{summary: &ingest.Summary{Parsed: 10, Kept: 8}}, http.StatusOK},
		{"busy", &mockTrigger{err: ingest.ErrRunInProgress}, http.StatusConflict},
		{"no sources", &mockTrigger{err: ingest.ErrNoSources}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockSearcher{}, &mockClickStore{}, tt.trigger, "secret")

			req := httptest.NewRequest(http.MethodPost, "/api/admin/ingest", nil)
			req.Header.Set("X-Admin-Key", "secret")
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.trigger.calls != 1 {
				t.Fatalf("trigger called %d times", tt.trigger.calls)
			}
		})
	}
}

func TestTriggerIngest_Unconfigured(t *testing.T) {
	s := newTestServer(&mockSearcher{}, &mockClickStore{}, nil, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/ingest", nil)
	req.Header.Set("X-Admin-Key", "secret")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}
