package seoconsole

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eringen/seoconsole/validate"
)

type testApp struct {
	t       *testing.T
	app     *App
	handler http.Handler
}

func newTestApp(t *testing.T, cfg Config) *testApp {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://example.com"
	}
	cfg.Validation.RequestDelay = time.Millisecond
	cfg.Validation.CrawlDelay = time.Millisecond

	app := New(cfg,
		WithStore(store),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return testNow }),
		WithAppFS(fstest.MapFS{
			"app/page.tsx":              {Data: []byte("")},
			"app/about/page.tsx":        {Data: []byte("")},
			"app/blog/[slug]/page.tsx":  {Data: []byte("")},
			"app/(marketing)/page.tsx":  {Data: []byte("")},
			"app/_private/page.tsx":     {Data: []byte("")},
			"app/node_modules/page.tsx": {Data: []byte("")},
		}),
	)
	h, err := app.Handler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return &testApp{t: t, app: app, handler: h}
}

func (ta *testApp) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	ta.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) json(method, target, body string) *httptest.ResponseRecorder {
	ta.t.Helper()
	return ta.do(method, target, echo.MIMEApplicationJSON, body)
}

// decodeData unwraps the {"data": ...} envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func TestRecordCRUD(t *testing.T) {
	ta := newTestApp(t, Config{})

	rec := ta.json(http.MethodPost, "/api/seo-records", `{"routePath":"/about","title":"About us","canonicalUrl":"https://example.com/about"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Record
	decodeData(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusPending, created.ValidationStatus)

	rec = ta.json(http.MethodPost, "/api/seo-records", `{"routePath":"/about"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrDuplicateRoute.Error(), decodeError(t, rec))

	rec = ta.do(http.MethodGet, "/api/seo-records/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got Record
	decodeData(t, rec, &got)
	assert.Equal(t, "About us", *got.Title)

	rec = ta.json(http.MethodPatch, "/api/seo-records/"+created.ID, `{"title":"About the team"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &got)
	assert.Equal(t, "About the team", *got.Title)
	assert.Equal(t, "https://example.com/about", *got.CanonicalURL)

	rec = ta.do(http.MethodGet, "/api/seo-records", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Record
	decodeData(t, rec, &list)
	assert.Len(t, list, 1)

	rec = ta.do(http.MethodDelete, "/api/seo-records/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"deleted":true}}`, rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/seo-records/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrNotFound.Error(), decodeError(t, rec))
}

func TestCreateRecordValidation(t *testing.T) {
	ta := newTestApp(t, Config{})

	rec := ta.json(http.MethodPost, "/api/seo-records", `{"routePath":"about","ogImageUrl":"not-a-url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Error, "invalid record"))
	fields := make([]string, len(body.Details))
	for i, d := range body.Details {
		fields[i] = d.Field
	}
	assert.Contains(t, fields, "routePath")
	assert.Contains(t, fields, "ogImageUrl")

	rec = ta.json(http.MethodPost, "/api/seo-records", `{"routePath":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.json(http.MethodPatch, "/api/seo-records/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkCreateEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})

	rec := ta.json(http.MethodPost, "/api/seo-records/bulk", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Routes must be an array", decodeError(t, rec))

	rec = ta.json(http.MethodPost, "/api/seo-records/bulk", `{"routes":[{"routePath":"/a"},{"routePath":"/a"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Results []BulkResult `json:"results"`
	}
	decodeData(t, rec, &out)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Success)
	assert.False(t, out.Results[1].Success)
}

func TestUpdateValidationEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})
	created, err := ta.app.Store.Create(t.Context(), RecordInput{RoutePath: "/"})
	require.NoError(t, err)

	rec := ta.json(http.MethodPost, "/api/seo-records/"+created.ID+"/update-validation", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.json(http.MethodPost, "/api/seo-records/"+created.ID+"/update-validation",
		`{"validation":{"isValid":true,"issues":[{"field":"title","message":"Title tag is missing"}]}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation.issues[0].severity is required", decodeError(t, rec))
	stored, err := ta.app.Store.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.ValidationStatus)

	rec = ta.json(http.MethodPost, "/api/seo-records/"+created.ID+"/update-validation",
		`{"validation":{"isValid":false,"issues":[{"field":"title","severity":"critical","message":"Title tag is missing"}],"validatedAt":"2025-05-01T12:00:00Z"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got Record
	decodeData(t, rec, &got)
	assert.Equal(t, StatusInvalid, got.ValidationStatus)
	require.NotNil(t, got.LastValidatedAt)
	assert.Equal(t, "2025-05-01", got.LastValidatedAt.Format(time.DateOnly))
}

func TestExportEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})
	_, err := ta.app.Store.Create(t.Context(), RecordInput{RoutePath: "/", SEOFields: SEOFields{Title: str("Home")}})
	require.NoError(t, err)

	rec := ta.do(http.MethodGet, "/api/seo-records/export", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="seo-report-2025-06-01.csv"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Route Path,Title"))
	assert.Contains(t, rec.Body.String(), "/,Home,,pending")

	rec = ta.do(http.MethodGet, "/api/seo-records/export?format=json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "/", records[0].RoutePath)

	rec = ta.do(http.MethodGet, "/api/seo-records/export?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})

	csvBody := "Route Path,Title,Description,Status,Canonical URL,OG Image,Robots\n" +
		"/,Home,Welcome,valid,https://example.com/,,\n" +
		"/pricing,Pricing,,,,,noindex\n"
	rec := ta.do(http.MethodPost, "/api/seo-records/import", "text/csv", csvBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Results []BulkResult `json:"results"`
	}
	decodeData(t, rec, &out)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Success)
	assert.Equal(t, StatusPending, out.Results[0].Data.ValidationStatus, "the status column is not imported")
	assert.Equal(t, "noindex", *out.Results[1].Data.Robots)

	rec = ta.json(http.MethodPost, "/api/seo-records/import", `[{"routePath":"/docs"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &out)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)

	rec = ta.do(http.MethodPost, "/api/seo-records/import?format=csv", "", "Path,Title\n/,x\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSitemapAndRobots(t *testing.T) {
	ta := newTestApp(t, Config{SiteURL: "https://example.com"})
	ctx := t.Context()

	rec := ta.do(http.MethodGet, "/sitemap.xml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<loc>")

	_, err := ta.app.Store.Create(ctx, RecordInput{RoutePath: "/", SEOFields: SEOFields{CanonicalURL: str("https://example.com/")}})
	require.NoError(t, err)
	_, err = ta.app.Store.Create(ctx, RecordInput{RoutePath: "/draft"})
	require.NoError(t, err)

	rec = ta.json(http.MethodPost, "/api/generate-sitemap", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"success":true,"sitemapUrl":"https://example.com/sitemap.xml","entryCount":1}}`, rec.Body.String())

	rec = ta.do(http.MethodGet, "/sitemap.xml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/xml")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "<loc>https://example.com/</loc>")
	assert.NotContains(t, rec.Body.String(), "/draft")

	rec = ta.do(http.MethodGet, "/robots.txt", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Disallow: /api/")
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/sitemap.xml")

	rec = ta.json(http.MethodPost, "/api/update-robots-txt", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Sitemap URL is required", decodeError(t, rec))

	rec = ta.json(http.MethodPost, "/api/update-robots-txt", `{"sitemapUrl":"/maps/main.xml"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success   bool   `json:"success"`
		RobotsTxt string `json:"robotsTxt"`
	}
	decodeData(t, rec, &out)
	assert.True(t, out.Success)
	assert.Contains(t, out.RobotsTxt, "Sitemap: https://example.com/maps/main.xml")

	rec = ta.do(http.MethodGet, "/robots.txt", "", "")
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/maps/main.xml")
}

func TestSitemapReflectsWritesThroughAPI(t *testing.T) {
	ta := newTestApp(t, Config{CacheTTL: time.Hour})

	rec := ta.do(http.MethodGet, "/sitemap.xml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.json(http.MethodPost, "/api/seo-records", `{"routePath":"/blog/hello","canonicalUrl":"https://example.com/blog/hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ta.do(http.MethodGet, "/sitemap.xml", "", "")
	assert.Contains(t, rec.Body.String(), "<loc>https://example.com/blog/hello</loc>")
	assert.Contains(t, rec.Body.String(), "<changefreq>weekly</changefreq>")
}

func TestReportEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})
	ctx := t.Context()
	_, err := ta.app.Store.Create(ctx, RecordInput{RoutePath: "/", SEOFields: SEOFields{Title: str("Home")}})
	require.NoError(t, err)
	b, err := ta.app.Store.Create(ctx, RecordInput{RoutePath: "/b"})
	require.NoError(t, err)
	_, err = ta.app.Store.SetValidation(ctx, b.ID, StatusInvalid, testNow, nil)
	require.NoError(t, err)

	rec := ta.do(http.MethodGet, "/api/reports/summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep Report
	decodeData(t, rec, &rep)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Invalid)
	assert.Equal(t, 1, rep.Pending)
	assert.Contains(t, rep.Issues, ReportCount{Type: "Missing Titles", Count: 1})
}

func TestDiscoverRoutesEndpoint(t *testing.T) {
	ta := newTestApp(t, Config{})

	rec := ta.json(http.MethodPost, "/api/discover-routes", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Routes []struct {
			RoutePath string `json:"routePath"`
			IsDynamic bool   `json:"isDynamic"`
		} `json:"routes"`
	}
	decodeData(t, rec, &out)
	paths := make([]string, len(out.Routes))
	for i, r := range out.Routes {
		paths[i] = r.RoutePath
	}
	assert.Equal(t, []string{"/", "/about", "/blog/[slug]"}, paths)
	assert.True(t, out.Routes[2].IsDynamic)
}

func TestRequestValidationErrors(t *testing.T) {
	ta := newTestApp(t, Config{})

	tests := []struct {
		name   string
		target string
		body   string
		want   string
	}{
		{"image url missing", "/api/validate-image", `{}`, "Image URL is required"},
		{"crawl url missing", "/api/crawlability", `{}`, "url is required"},
		{"crawl url relative", "/api/crawlability", `{"url":"/about"}`, "url must be an absolute http(s) URL"},
		{"public access scheme", "/api/public-access", `{"url":"ftp://example.com"}`, "url must be an absolute http(s) URL"},
		{"import base missing", "/api/import-from-site", `{}`, "Base URL is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.json(http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestValidateImageEndpoint(t *testing.T) {
	site := newTestSite(t)
	ta := newTestApp(t, Config{SiteURL: site.URL})

	rec := ta.json(http.MethodPost, "/api/validate-image", `{"imageUrl":"`+site.URL+`/og.png","expectedWidth":1000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out validate.ImageResult
	decodeData(t, rec, &out)
	assert.True(t, out.IsValid)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, 1200, out.Metadata.Width)
	assert.Equal(t, "png", out.Metadata.Format)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "Image width does not match expected value", out.Issues[0].Message)
}

func TestValidateRecordEndpoint(t *testing.T) {
	site := newTestSite(t)
	ta := newTestApp(t, Config{SiteURL: site.URL})
	created, err := ta.app.Store.Create(t.Context(), RecordInput{RoutePath: "/", SEOFields: SEOFields{Title: str("Home")}})
	require.NoError(t, err)

	rec := ta.json(http.MethodPost, "/api/seo-records/"+created.ID+"/validate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out RecordValidation
	decodeData(t, rec, &out)
	assert.Equal(t, StatusValid, out.Status)

	rec = ta.json(http.MethodPost, "/api/seo-records/missing/validate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportFromSiteEndpoint(t *testing.T) {
	site := newTestSite(t)
	ta := newTestApp(t, Config{})

	rec := ta.json(http.MethodPost, "/api/import-from-site", `{"baseUrl":"`+site.URL+`","routes":["/","/bare"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Results []ImportResult `json:"results"`
	}
	decodeData(t, rec, &out)
	assert.Equal(t, []ImportResult{
		{Route: "/", Success: true},
		{Route: "/bare", Error: "No metadata found"},
	}, out.Results)

	rec = ta.json(http.MethodPost, "/api/import-from-site", `{"baseUrl":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitedEndpoints(t *testing.T) {
	ta := newTestApp(t, Config{RateLimit: RateLimitConfig{Max: 2, Window: time.Minute}})

	for i := 0; i < 2; i++ {
		rec := ta.json(http.MethodPost, "/api/crawlability", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := ta.json(http.MethodPost, "/api/crawlability", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, try again later", decodeError(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = ta.do(http.MethodGet, "/api/seo-records", "", "")
	assert.Equal(t, http.StatusOK, rec.Code, "record endpoints are not limited")
}

func TestHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t, Config{})

	rec := ta.do(http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ta.do(http.MethodGet, "/api/seo-records/export?format=json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seoconsole_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	ta := newTestApp(t, Config{})
	rec := ta.do(http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec))
}
