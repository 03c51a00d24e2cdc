package seoconsole

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/seoconsole/discovery"
	"github.com/eringen/seoconsole/internal/fetch"
	"github.com/eringen/seoconsole/validate"
)

func dataJSON(c echo.Context, code int, v any) error {
	return c.JSON(code, map[string]any{"data": v})
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// requireURL rejects anything but an absolute http(s) URL.
func requireURL(raw, field string) error {
	if strings.TrimSpace(raw) == "" {
		return badRequest(field + " is required")
	}
	if _, err := fetch.ParseURL(raw); err != nil {
		return badRequest(fmt.Sprintf("%s must be an absolute http(s) URL", field))
	}
	return nil
}

// Records

func (a *App) handleListRecords(c echo.Context) error {
	records, err := a.Store.List(c.Request().Context())
	if err != nil {
		return err
	}
	if records == nil {
		records = []Record{}
	}
	return dataJSON(c, http.StatusOK, records)
}

func (a *App) handleCreateRecord(c echo.Context) error {
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	rec, err := a.Store.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return dataJSON(c, http.StatusCreated, rec)
}

func (a *App) handleGetRecord(c echo.Context) error {
	rec, err := a.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, rec)
}

func (a *App) handleUpdateRecord(c echo.Context) error {
	var patch RecordPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	rec, err := a.Store.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return dataJSON(c, http.StatusOK, rec)
}

func (a *App) handleDeleteRecord(c echo.Context) error {
	if err := a.Store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return dataJSON(c, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *App) handleBulkCreate(c echo.Context) error {
	var body struct {
		Routes *[]RecordInput `json:"routes"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.Routes == nil {
		return badRequest("Routes must be an array")
	}
	results := a.Console.BulkCreate(c.Request().Context(), "bulk", *body.Routes)
	return dataJSON(c, http.StatusOK, map[string]any{"results": results})
}

// Validation

func (a *App) handleValidateRecord(c echo.Context) error {
	res, err := a.Console.ValidateRecord(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, res)
}

func (a *App) handleUpdateValidation(c echo.Context) error {
	var body struct {
		Validation *validate.Result `json:"validation"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.Validation == nil {
		return badRequest("validation is required")
	}
	for i, is := range body.Validation.Issues {
		if is.Severity == "" {
			return badRequest(fmt.Sprintf("validation.issues[%d].severity is required", i))
		}
	}
	rec, err := a.Console.ApplyValidation(c.Request().Context(), c.Param("id"), *body.Validation)
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, rec)
}

func (a *App) handleValidateAll(c echo.Context) error {
	res, err := a.Console.ValidateAll(c.Request().Context())
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, res)
}

func (a *App) handleValidateImage(c echo.Context) error {
	var body struct {
		ImageURL       string `json:"imageUrl"`
		ExpectedWidth  int    `json:"expectedWidth"`
		ExpectedHeight int    `json:"expectedHeight"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.ImageURL == "" {
		return badRequest("Image URL is required")
	}
	started := time.Now()
	res, err := a.Validator.ValidateOGImage(c.Request().Context(), body.ImageURL, body.ExpectedWidth, body.ExpectedHeight)
	if err != nil {
		return err
	}
	a.Metrics.ObserveValidation("image", started, res.IsValid, res.Issues)
	return dataJSON(c, http.StatusOK, res)
}

func (a *App) handleCrawlability(c echo.Context) error {
	var body struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if err := requireURL(body.URL, "url"); err != nil {
		return err
	}
	res := a.Validator.ValidateCrawlability(c.Request().Context(), body.URL, body.HTML)
	return dataJSON(c, http.StatusOK, res)
}

func (a *App) handleRobotsCheck(c echo.Context) error {
	var body struct {
		BaseURL string `json:"baseUrl"`
		Route   string `json:"route"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.BaseURL == "" {
		body.BaseURL = a.Config.SiteURL
	}
	if err := requireURL(body.BaseURL, "baseUrl"); err != nil {
		return err
	}
	if body.Route == "" {
		body.Route = "/"
	}
	res := a.Validator.ValidateRobotsTxt(c.Request().Context(), body.BaseURL, body.Route)
	return dataJSON(c, http.StatusOK, res)
}

func (a *App) handlePublicAccess(c echo.Context) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if err := requireURL(body.URL, "url"); err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, a.Validator.ValidatePublicAccess(c.Request().Context(), body.URL))
}

// Discovery and import

func (a *App) handleDiscoverRoutes(c echo.Context) error {
	routes, err := discovery.Discover(a.appFS, a.Config.AppDir)
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, map[string]any{"routes": routes})
}

func (a *App) handleImportFromSite(c echo.Context) error {
	var body struct {
		BaseURL string   `json:"baseUrl"`
		Routes  []string `json:"routes"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.BaseURL == "" {
		return badRequest("Base URL is required")
	}
	results, err := a.Console.ImportFromSite(c.Request().Context(), body.BaseURL, body.Routes)
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, map[string]any{"results": results})
}

func (a *App) handleExport(c echo.Context) error {
	records, err := a.Store.List(c.Request().Context())
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	filename := "seo-report-" + a.now().Format("2006-01-02") + "." + format
	var buf bytes.Buffer
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = ExportCSV(&buf, records)
	case "json":
		contentType = echo.MIMEApplicationJSONCharsetUTF8
		err = ExportJSON(&buf, records)
	default:
		return badRequest("format must be csv or json")
	}
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (a *App) handleImport(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), "text/csv") {
			format = "csv"
		} else {
			format = "json"
		}
	}
	var inputs []RecordInput
	switch format {
	case "csv":
		inputs, err = ParseCSV(bytes.NewReader(body))
	case "json":
		inputs, err = ParseJSON(bytes.NewReader(body))
	default:
		return badRequest("format must be csv or json")
	}
	if err != nil {
		return badRequest(err.Error())
	}
	results := a.Console.BulkCreate(c.Request().Context(), "file", inputs)
	return dataJSON(c, http.StatusOK, map[string]any{"results": results})
}

// Sitemap and robots

func (a *App) handleGenerateSitemap(c echo.Context) error {
	a.Cache.Invalidate()
	records, err := a.Cache.List(c.Request().Context())
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, map[string]any{
		"success":    true,
		"sitemapUrl": BuildURL(a.Config.SiteURL, "sitemap.xml"),
		"entryCount": len(SitemapEntries(records)),
	})
}

func (a *App) handleUpdateRobots(c echo.Context) error {
	var body struct {
		SitemapURL string `json:"sitemapUrl"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.SitemapURL == "" {
		return badRequest("Sitemap URL is required")
	}
	sitemapURL := body.SitemapURL
	if !strings.HasPrefix(sitemapURL, "http") {
		sitemapURL = a.Config.SiteURL + sitemapURL
	}
	a.setRobotsSitemap(sitemapURL)
	return dataJSON(c, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "robots.txt updated. Available at /robots.txt",
		"robotsTxt": a.robotsTxt(),
	})
}

func (a *App) handleSitemap(c echo.Context) error {
	records, err := a.Cache.List(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return RenderSitemap(c.Response(), a.Config.SiteURL, SitemapEntries(records))
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, a.robotsTxt())
}

func (a *App) robotsTxt() string {
	opts := DefaultRobotsOptions(a.Config.SiteURL)
	a.mu.RLock()
	if a.robotsSitemap != "" {
		opts.SitemapURL = a.robotsSitemap
	}
	a.mu.RUnlock()
	return GenerateRobotsTxt(opts)
}

func (a *App) setRobotsSitemap(u string) {
	a.mu.Lock()
	a.robotsSitemap = u
	a.mu.Unlock()
}

// Reports and health

func (a *App) handleReport(c echo.Context) error {
	rep, err := a.Console.Report(c.Request().Context())
	if err != nil {
		return err
	}
	return dataJSON(c, http.StatusOK, rep)
}

func (a *App) handleHealth(c echo.Context) error {
	if !a.Store.Available(c.Request().Context()) {
		return errorJSON(c, http.StatusServiceUnavailable, "storage unavailable")
	}
	return dataJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var (
		he *echo.HTTPError
		ie *InputError
	)
	switch {
	case errors.As(err, &ie):
		_ = c.JSON(http.StatusBadRequest, map[string]any{"error": ie.Error(), "details": ie.Errors})
		return
	case errors.Is(err, ErrNotFound):
		_ = errorJSON(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrDuplicateRoute):
		_ = errorJSON(c, http.StatusConflict, err.Error())
		return
	case errors.Is(err, validate.ErrInvalidURL):
		_ = errorJSON(c, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &he):
		if he.Code < 500 {
			_ = errorJSON(c, he.Code, fmt.Sprint(he.Message))
			return
		}
	}
	code := http.StatusInternalServerError
	if he != nil {
		code = he.Code
	}
	a.Log.Error("Server error",
		zap.String("method", c.Request().Method),
		zap.String("uri", c.Request().RequestURI),
		zap.Error(err))
	_ = errorJSON(c, code, http.StatusText(code))
}
