package api

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"pricehound/internal/api/middleware"
	"pricehound/internal/catalog"
	"pricehound/internal/config"
	"pricehound/internal/ingest"
	"pricehound/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server wires the storefront API: product search, typeahead, outbound
// click redirects and the admin surface.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	rdb      *redis.Client
	router   *gin.Engine
	searcher Searcher
	clicks   ClickStore
	trigger  IngestTrigger
}

// Searcher serves the public catalog queries.
type Searcher interface {
	SearchProducts(ctx context.Context, p catalog.SearchParams) (*catalog.SearchResult, error)
	Suggest(ctx context.Context, q string) ([]catalog.Suggestion, error)
}

// ClickStore records outbound clicks and exports them.
type ClickStore interface {
	RecordClick(ctx context.Context, merchantSlug string, offerID uint, ip, userAgent string) (string, error)
	RecentClicks(ctx context.Context, limit int) ([]catalog.ClickRow, error)
}

// IngestTrigger starts an ingestion run on demand.
type IngestTrigger interface {
	Run(ctx context.Context) (*ingest.Summary, error)
}

// NewServer builds the router on an already-open database handle,
// optionally connecting Redis. The caller owns the handle and shares it
// with the ingestion side. The trigger may be nil; the admin ingest
// endpoint then reports 503.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *gorm.DB, trigger IngestTrigger) (*Server, error) {
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
	}

	store := catalog.NewStore(db)

	if cfg.Ingest.SeedDemoData {
		if err := SeedDemoData(ctx, db, logger); err != nil {
			logger.Warn("seed demo data failed", slog.String("error", err.Error()))
		}
	}

	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		searcher: store,
		clicks:   store,
		trigger:  trigger,
	}
	s.registerRoutes()
	return s, nil
}

// Run starts the HTTP server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("api server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close shuts down the cache connection. The database handle belongs to
// the caller.
func (s *Server) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.GET("/api/search", s.handleSearch)
	s.router.GET("/api/suggest", s.handleSuggest)
	s.router.GET("/go/:merchant/:offerID", s.handleRedirect)

	admin := s.router.Group("/api/admin")
	admin.Use(middleware.AdminKey(s.cfg.Security.AdminKey))
	admin.GET("/clicks", s.handleClicksExport)
	admin.POST("/ingest", s.handleTriggerIngest)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTriggerIngest(c *gin.Context) {
	if s.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion not configured"})
		return
	}

	summary, err := s.trigger.Run(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, summary)
	case err == ingest.ErrRunInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "ingestion run already in progress"})
	case err == ingest.ErrNoSources:
		c.JSON(http.StatusBadRequest, gin.H{"error": "no feed sources configured"})
	default:
		s.logger.Error("triggered ingestion failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion run failed"})
	}
}

func parseEurosToCents(v string) int64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	// Round, don't truncate: 49.99 is 4998.999... in binary.
	return int64(math.Round(f * 100))
}
