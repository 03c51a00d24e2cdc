// Package seoconsole manages SEO metadata records for the routes of a site
// and checks them against what the live site actually serves.
//
// The App wires a record store, the page and image validators, the
// metadata extractor and route discovery behind a JSON API, and serves a
// generated sitemap.xml and robots.txt for the records it holds.
package seoconsole

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/seoconsole/extract"
	"github.com/eringen/seoconsole/internal/fetch"
	"github.com/eringen/seoconsole/validate"
)

// App is the central console application. It wires together the store,
// cache, validators, handlers and middleware.
type App struct {
	Config    Config
	Echo      *echo.Echo
	Store     RecordStore
	Cache     *RecordCache
	Log       *zap.Logger
	Metrics   *Metrics
	Validator *validate.Validator
	Extractor *extract.Extractor
	Console   *Console

	limiter      *RateLimiter
	httpClient   *http.Client
	appFS        fs.FS
	now          func() time.Time
	customRoutes []func(*App)
	initOnce     sync.Once
	initErr      error

	mu            sync.RWMutex
	robotsSitemap string
}

// New creates a console App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		appFS:  os.DirFS("."),
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the store and builds the validators, middleware and routes.
// It runs once; Start and Handler call it.
func (a *App) Init() error {
	a.initOnce.Do(func() { a.initErr = a.init() })
	return a.initErr
}

func (a *App) init() error {
	if a.Log == nil {
		log, err := NewLogger(a.Config.Log)
		if err != nil {
			return fmt.Errorf("seoconsole: init logger: %w", err)
		}
		a.Log = log
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.Storage)
		if err != nil {
			return fmt.Errorf("seoconsole: init store: %w", err)
		}
		a.Store = store
	}

	a.Cache = NewRecordCache(a.Store, a.Config.CacheTTL)
	a.Metrics = NewMetrics()
	a.limiter = NewRateLimiter(a.Config.RateLimit.Max, a.Config.RateLimit.Window)

	client := fetch.New(a.httpClient, a.Config.UserAgent)
	v := a.Config.Validation
	a.Validator = validate.New(
		validate.WithFetcher(client),
		validate.WithLogger(a.Log.Named("validate")),
		validate.WithClock(a.now),
		validate.WithTimeouts(v.HTMLTimeout, v.ImageTimeout),
		validate.WithMaxImageBytes(v.MaxImageBytes),
	)
	a.Extractor = extract.New(client,
		extract.WithLogger(a.Log.Named("extract")),
		extract.WithTimeout(v.HTMLTimeout),
		extract.WithCrawlDelay(v.CrawlDelay),
	)
	a.Console = NewConsole(ConsoleConfig{
		Store:        a.Store,
		Validator:    a.Validator,
		Extractor:    a.Extractor,
		SiteURL:      a.Config.SiteURL,
		RequestDelay: v.RequestDelay,
		Log:          a.Log.Named("console"),
		Metrics:      a.Metrics,
		Now:          a.now,
	})
	a.Console.OnChange = a.Cache.Invalidate

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Handler returns the initialized HTTP handler, for tests and embedding.
func (a *App) Handler() (http.Handler, error) {
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a.Echo, nil
}

// Start initializes the app and starts the server.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Log.Info("Starting SEO console",
		zap.String("addr", a.Config.Addr),
		zap.String("site", a.Config.SiteURL),
		zap.String("storage", a.Config.Storage.Type))
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo
	limited := rateLimited(a.limiter)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.Metrics.Registry,
	}))

	api := e.Group("/api")
	api.GET("/health", a.handleHealth)

	records := api.Group("/seo-records")
	records.GET("", a.handleListRecords)
	records.POST("", a.handleCreateRecord)
	records.POST("/bulk", a.handleBulkCreate)
	records.POST("/validate-all", a.handleValidateAll, limited)
	records.GET("/export", a.handleExport)
	records.POST("/import", a.handleImport)
	records.GET("/:id", a.handleGetRecord)
	records.PATCH("/:id", a.handleUpdateRecord)
	records.DELETE("/:id", a.handleDeleteRecord)
	records.POST("/:id/validate", a.handleValidateRecord, limited)
	records.POST("/:id/update-validation", a.handleUpdateValidation)

	api.POST("/validate-image", a.handleValidateImage, limited)
	api.POST("/crawlability", a.handleCrawlability, limited)
	api.POST("/robots-check", a.handleRobotsCheck, limited)
	api.POST("/public-access", a.handlePublicAccess, limited)
	api.POST("/discover-routes", a.handleDiscoverRoutes)
	api.POST("/import-from-site", a.handleImportFromSite, limited)
	api.POST("/generate-sitemap", a.handleGenerateSitemap)
	api.POST("/update-robots-txt", a.handleUpdateRobots)
	api.GET("/reports/summary", a.handleReport)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
