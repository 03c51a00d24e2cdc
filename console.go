package seoconsole

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/seoconsole/extract"
	"github.com/eringen/seoconsole/validate"
)

// Console runs the record-level flows: validating stored records against the
// live site and importing records from it.
type Console struct {
	store        RecordStore
	validator    *validate.Validator
	extractor    *extract.Extractor
	siteURL      string
	requestDelay time.Duration
	log          *zap.Logger
	metrics      *Metrics
	now          func() time.Time

	// OnChange is called after any flow writes to the store.
	OnChange func()
}

// ConsoleConfig wires a Console.
type ConsoleConfig struct {
	Store        RecordStore
	Validator    *validate.Validator
	Extractor    *extract.Extractor
	SiteURL      string
	RequestDelay time.Duration
	Log          *zap.Logger
	Metrics      *Metrics
	Now          func() time.Time
}

// NewConsole returns a Console. Store, Validator and Extractor are required.
func NewConsole(cfg ConsoleConfig) *Console {
	c := &Console{
		store:        cfg.Store,
		validator:    cfg.Validator,
		extractor:    cfg.Extractor,
		siteURL:      cfg.SiteURL,
		requestDelay: cfg.RequestDelay,
		log:          cfg.Log,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.requestDelay <= 0 {
		c.requestDelay = 200 * time.Millisecond
	}
	return c
}

func (c *Console) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}

func (c *Console) pacer() *rate.Limiter {
	return rate.NewLimiter(rate.Every(c.requestDelay), 1)
}

// RecordValidation is the outcome of validating one stored record.
type RecordValidation struct {
	RecordID   string           `json:"recordId"`
	RoutePath  string           `json:"routePath"`
	Status     ValidationStatus `json:"status"`
	Validation validate.Result  `json:"validation"`
}

// ValidateRecord fetches the live page for record id, compares it with the
// record and persists the outcome. When the record names an OG image, the
// image is checked too and its issues are reported under "og:image".
func (c *Console) ValidateRecord(ctx context.Context, id string) (RecordValidation, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return RecordValidation{}, err
	}

	started := time.Now()
	pageURL := JoinRoute(c.siteURL, rec.RoutePath)
	result, err := c.validator.ValidateURL(ctx, pageURL, rec.Expected())
	if err != nil {
		return RecordValidation{}, fmt.Errorf("validate %s: %w", pageURL, err)
	}
	c.metrics.ObserveValidation("html", started, result.IsValid, result.Issues)

	if rec.OGImageURL != nil {
		result.Issues = append(result.Issues, c.imageIssues(ctx, rec)...)
		result.IsValid = !validate.HasCritical(result.Issues)
	}

	saved, err := c.ApplyValidation(ctx, rec.ID, result)
	if err != nil {
		return RecordValidation{}, err
	}
	return RecordValidation{
		RecordID:   saved.ID,
		RoutePath:  saved.RoutePath,
		Status:     saved.ValidationStatus,
		Validation: result,
	}, nil
}

func (c *Console) imageIssues(ctx context.Context, rec Record) []validate.Issue {
	var width, height int
	if rec.OGImageWidth != nil {
		width = *rec.OGImageWidth
	}
	if rec.OGImageHeight != nil {
		height = *rec.OGImageHeight
	}
	started := time.Now()
	img, err := c.validator.ValidateOGImage(ctx, *rec.OGImageURL, width, height)
	if err != nil {
		return []validate.Issue{{
			Field:    "og:image",
			Severity: validate.SeverityCritical,
			Message:  "OG image URL is not a valid absolute URL",
			Actual:   *rec.OGImageURL,
		}}
	}
	c.metrics.ObserveValidation("image", started, img.IsValid, img.Issues)
	issues := make([]validate.Issue, len(img.Issues))
	for i, is := range img.Issues {
		is.Field = "og:image"
		issues[i] = is
	}
	return issues
}

// ApplyValidation persists a validation result for record id. The status is
// invalid when any issue is critical, warning when there are other issues
// and valid otherwise.
func (c *Console) ApplyValidation(ctx context.Context, id string, result validate.Result) (Record, error) {
	at := result.ValidatedAt
	if at.IsZero() {
		at = c.now()
	}
	rec, err := c.store.SetValidation(ctx, id, StatusFor(result.Issues), at, result.Issues)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Error("Failed to persist validation", zap.String("id", id), zap.Error(err))
		}
		return Record{}, err
	}
	c.changed()
	return rec, nil
}

// BatchValidation summarizes ValidateAll.
type BatchValidation struct {
	Results []RecordValidation `json:"results"`
	Failed  []ItemError        `json:"failed"`
}

// ItemError reports a per-item failure in a batch flow.
type ItemError struct {
	ID    string `json:"id,omitempty"`
	Route string `json:"route,omitempty"`
	Error string `json:"error"`
}

// ValidateAll validates every stored record in route order, one request at a
// time. A cancelled ctx stops the run and returns what was done so far.
func (c *Console) ValidateAll(ctx context.Context) (BatchValidation, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return BatchValidation{}, err
	}
	out := BatchValidation{Results: []RecordValidation{}, Failed: []ItemError{}}
	pace := c.pacer()
	for _, rec := range records {
		if err := pace.Wait(ctx); err != nil {
			c.log.Info("Bulk validation interrupted", zap.Error(err))
			break
		}
		res, err := c.ValidateRecord(ctx, rec.ID)
		if err != nil {
			c.log.Warn("Record validation failed", zap.String("route", rec.RoutePath), zap.Error(err))
			out.Failed = append(out.Failed, ItemError{ID: rec.ID, Route: rec.RoutePath, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// ImportResult is the outcome of importing one route from a live site.
type ImportResult struct {
	Route   string `json:"route"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ImportFromSite extracts metadata from each route of baseURL and stores it
// as a pending record. Routes default to "/". Routes without any metadata
// are reported and skipped.
func (c *Console) ImportFromSite(ctx context.Context, baseURL string, routes []string) ([]ImportResult, error) {
	if _, err := extract.JoinURL(baseURL, "/"); err != nil {
		return nil, err
	}
	routes = FilterEmpty(routes)
	if len(routes) == 0 {
		routes = []string{"/"}
	}
	results := make([]ImportResult, 0, len(routes))
	pace := c.pacer()
	for _, route := range routes {
		if err := pace.Wait(ctx); err != nil {
			c.log.Info("Site import interrupted", zap.Error(err))
			break
		}
		pageURL, err := extract.JoinURL(baseURL, route)
		if err != nil {
			results = append(results, ImportResult{Route: route, Error: err.Error()})
			continue
		}
		meta := c.extractor.FromURL(ctx, pageURL)
		if meta.IsEmpty() {
			results = append(results, ImportResult{Route: route, Error: "No metadata found"})
			continue
		}
		_, err = c.store.Create(ctx, InputFromMetadata(route, meta))
		c.metrics.ObserveImport("site", err)
		if err != nil {
			c.log.Warn("Failed to import route", zap.String("route", route), zap.Error(err))
			results = append(results, ImportResult{Route: route, Error: err.Error()})
			continue
		}
		results = append(results, ImportResult{Route: route, Success: true})
	}
	c.changed()
	return results, nil
}

// BulkResult is the outcome of creating one record in a bulk request.
type BulkResult struct {
	Success bool    `json:"success"`
	Data    *Record `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// BulkCreate creates each input independently; one failure does not stop
// the rest.
func (c *Console) BulkCreate(ctx context.Context, source string, inputs []RecordInput) []BulkResult {
	results := make([]BulkResult, 0, len(inputs))
	for _, in := range inputs {
		rec, err := c.store.Create(ctx, in)
		c.metrics.ObserveImport(source, err)
		if err != nil {
			results = append(results, BulkResult{Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{Success: true, Data: &rec})
	}
	if len(inputs) > 0 {
		c.changed()
	}
	return results
}

// ReportCount is one row of the issue summary.
type ReportCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Report summarizes the stored records.
type Report struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Warning int           `json:"warning"`
	Invalid int           `json:"invalid"`
	Pending int           `json:"pending"`
	Issues  []ReportCount `json:"issues"`
}

// maxTitleLength is the recommended title length used by the report.
const maxTitleLength = 60

// Report counts records by status and by common metadata gaps.
func (c *Console) Report(ctx context.Context) (Report, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(records), nil
}

// BuildReport counts records by status and by common metadata gaps.
func BuildReport(records []Record) Report {
	rep := Report{Total: len(records)}
	var noDesc, noTitle, noCanonical, noImage, longTitle int
	for _, r := range records {
		switch r.ValidationStatus {
		case StatusValid:
			rep.Valid++
		case StatusWarning:
			rep.Warning++
		case StatusInvalid:
			rep.Invalid++
		default:
			rep.Pending++
		}
		if r.Description == nil {
			noDesc++
		}
		if r.Title == nil {
			noTitle++
		} else if utf8.RuneCountInString(*r.Title) > maxTitleLength {
			longTitle++
		}
		if r.CanonicalURL == nil {
			noCanonical++
		}
		if r.OGImageURL == nil {
			noImage++
		}
	}
	rep.Issues = []ReportCount{
		{Type: "Missing Descriptions", Count: noDesc},
		{Type: "Missing Titles", Count: noTitle},
		{Type: "Missing Canonical URLs", Count: noCanonical},
		{Type: "Missing OG Images", Count: noImage},
		{Type: "Titles Too Long", Count: longTitle},
	}
	return rep
}
