package seoconsole

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/seoconsole/extract"
	"github.com/eringen/seoconsole/validate"
)

// ValidationStatus is the persisted outcome of the last validation run.
type ValidationStatus string

const (
	StatusPending ValidationStatus = "pending"
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
	StatusWarning ValidationStatus = "warning"
)

// ParseValidationStatus rejects anything outside the four known statuses.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	switch v := ValidationStatus(s); v {
	case StatusPending, StatusValid, StatusInvalid, StatusWarning:
		return v, nil
	default:
		return "", fmt.Errorf("unknown validation status %q", s)
	}
}

func (s *ValidationStatus) UnmarshalText(b []byte) error {
	v, err := ParseValidationStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Value implements driver.Valuer.
func (s ValidationStatus) Value() (driver.Value, error) {
	if _, err := ParseValidationStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Scan implements sql.Scanner. Unknown values stored by other tools are
// rejected instead of being passed through.
func (s *ValidationStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into ValidationStatus", src)
	}
}

// StatusFor maps validation issues to the status stored on a record.
func StatusFor(issues []validate.Issue) ValidationStatus {
	switch {
	case validate.HasCritical(issues):
		return StatusInvalid
	case len(issues) > 0:
		return StatusWarning
	default:
		return StatusValid
	}
}

// OGType is an Open Graph object type.
type OGType string

const (
	OGWebsite OGType = "website"
	OGArticle OGType = "article"
	OGProduct OGType = "product"
	OGBook    OGType = "book"
	OGProfile OGType = "profile"
	OGMusic   OGType = "music"
	OGVideo   OGType = "video"
)

// Valid reports whether t is a known Open Graph type.
func (t OGType) Valid() bool {
	switch t {
	case OGWebsite, OGArticle, OGProduct, OGBook, OGProfile, OGMusic, OGVideo:
		return true
	}
	return false
}

// TwitterCard is a Twitter card type.
type TwitterCard string

const (
	CardSummary           TwitterCard = "summary"
	CardSummaryLargeImage TwitterCard = "summary_large_image"
	CardApp               TwitterCard = "app"
	CardPlayer            TwitterCard = "player"
)

// Valid reports whether c is a known card type.
func (c TwitterCard) Valid() bool {
	switch c {
	case CardSummary, CardSummaryLargeImage, CardApp, CardPlayer:
		return true
	}
	return false
}

// SEOFields is the metadata a route should carry. A nil field is unset.
type SEOFields struct {
	Title              *string         `json:"title,omitempty"`
	Description        *string         `json:"description,omitempty"`
	Keywords           []string        `json:"keywords,omitempty"`
	OGTitle            *string         `json:"ogTitle,omitempty"`
	OGDescription      *string         `json:"ogDescription,omitempty"`
	OGImageURL         *string         `json:"ogImageUrl,omitempty"`
	OGImageWidth       *int            `json:"ogImageWidth,omitempty"`
	OGImageHeight      *int            `json:"ogImageHeight,omitempty"`
	OGType             *OGType         `json:"ogType,omitempty"`
	OGURL              *string         `json:"ogUrl,omitempty"`
	OGSiteName         *string         `json:"ogSiteName,omitempty"`
	TwitterCard        *TwitterCard    `json:"twitterCard,omitempty"`
	TwitterTitle       *string         `json:"twitterTitle,omitempty"`
	TwitterDescription *string         `json:"twitterDescription,omitempty"`
	TwitterImageURL    *string         `json:"twitterImageUrl,omitempty"`
	TwitterSite        *string         `json:"twitterSite,omitempty"`
	TwitterCreator     *string         `json:"twitterCreator,omitempty"`
	CanonicalURL       *string         `json:"canonicalUrl,omitempty"`
	Robots             *string         `json:"robots,omitempty"`
	Author             *string         `json:"author,omitempty"`
	PublishedTime      *time.Time      `json:"publishedTime,omitempty"`
	ModifiedTime       *time.Time      `json:"modifiedTime,omitempty"`
	StructuredData     json.RawMessage `json:"structuredData,omitempty"`
}

// Record is a stored SEO record for one route.
type Record struct {
	ID        string `json:"id"`
	RoutePath string `json:"routePath"`
	SEOFields

	ValidationStatus ValidationStatus `json:"validationStatus"`
	LastValidatedAt  *time.Time       `json:"lastValidatedAt,omitempty"`
	ValidationErrors json.RawMessage  `json:"validationErrors,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expected returns the fields the HTML validator checks.
func (r Record) Expected() validate.Expected {
	exp := validate.Expected{
		Title:           r.Title,
		Description:     r.Description,
		OGTitle:         r.OGTitle,
		OGDescription:   r.OGDescription,
		OGImageURL:      r.OGImageURL,
		OGURL:           r.OGURL,
		TwitterTitle:    r.TwitterTitle,
		TwitterImageURL: r.TwitterImageURL,
		CanonicalURL:    r.CanonicalURL,
	}
	if r.OGType != nil {
		s := string(*r.OGType)
		exp.OGType = &s
	}
	if r.TwitterCard != nil {
		s := string(*r.TwitterCard)
		exp.TwitterCard = &s
	}
	return exp
}

// RecordInput is the payload for creating a record.
type RecordInput struct {
	RoutePath string `json:"routePath"`
	SEOFields

	// Extracted marks input read from a live page. Length limits are not
	// applied to it.
	Extracted bool `json:"-"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InputError is returned when a record payload fails validation.
type InputError struct {
	Errors []FieldError `json:"errors"`
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

type fieldChecker struct {
	errs []FieldError
}

func (c *fieldChecker) fail(field, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *fieldChecker) maxLen(field string, v *string, n int) {
	if v != nil && utf8.RuneCountInString(*v) > n {
		c.fail(field, "must be %d characters or less", n)
	}
}

func (c *fieldChecker) url(field string, v *string) {
	if v != nil && !isAbsoluteURL(*v) {
		c.fail(field, "must be a valid URL")
	}
}

func (c *fieldChecker) dimension(field string, v *int) {
	if v != nil && (*v < 1 || *v > 1200) {
		c.fail(field, "must be between 1 and 1200")
	}
}

func (c *fieldChecker) routePath(v string) {
	switch {
	case v == "":
		c.fail("routePath", "is required")
	case !strings.HasPrefix(v, "/"):
		c.fail("routePath", "must start with /")
	}
}

func (c *fieldChecker) fields(f *SEOFields, lengths bool) {
	if lengths {
		c.maxLen("title", f.Title, 60)
		c.maxLen("description", f.Description, 160)
		c.maxLen("ogTitle", f.OGTitle, 60)
		c.maxLen("ogDescription", f.OGDescription, 200)
		c.maxLen("twitterTitle", f.TwitterTitle, 70)
		c.maxLen("twitterDescription", f.TwitterDescription, 200)
	}
	c.url("ogImageUrl", f.OGImageURL)
	c.dimension("ogImageWidth", f.OGImageWidth)
	c.dimension("ogImageHeight", f.OGImageHeight)
	if f.OGType != nil && !f.OGType.Valid() {
		c.fail("ogType", "unknown Open Graph type %q", string(*f.OGType))
	}
	c.url("ogUrl", f.OGURL)
	if f.TwitterCard != nil && !f.TwitterCard.Valid() {
		c.fail("twitterCard", "unknown Twitter card type %q", string(*f.TwitterCard))
	}
	c.url("twitterImageUrl", f.TwitterImageURL)
	c.url("canonicalUrl", f.CanonicalURL)
	if len(f.StructuredData) > 0 && !isJSONObject(f.StructuredData) {
		c.fail("structuredData", "must be a JSON object")
	}
}

func (c *fieldChecker) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &InputError{Errors: c.errs}
}

// Normalize trims strings and turns empty values into unset ones.
func (in *RecordInput) Normalize() {
	in.RoutePath = strings.TrimSpace(in.RoutePath)
	in.SEOFields.normalize()
}

// Validate checks lengths, URLs and enums. Call Normalize first.
func (in RecordInput) Validate() error {
	var c fieldChecker
	c.routePath(in.RoutePath)
	c.fields(&in.SEOFields, !in.Extracted)
	return c.err()
}

func (f *SEOFields) normalize() {
	for _, p := range []**string{
		&f.Title, &f.Description, &f.OGTitle, &f.OGDescription, &f.OGImageURL,
		&f.OGURL, &f.OGSiteName, &f.TwitterTitle, &f.TwitterDescription,
		&f.TwitterImageURL, &f.TwitterSite, &f.TwitterCreator, &f.CanonicalURL,
		&f.Robots, &f.Author,
	} {
		*p = trimOrNil(*p)
	}
	if f.OGType != nil {
		if v := OGType(strings.TrimSpace(string(*f.OGType))); v == "" {
			f.OGType = nil
		} else {
			f.OGType = &v
		}
	}
	if f.TwitterCard != nil {
		if v := TwitterCard(strings.TrimSpace(string(*f.TwitterCard))); v == "" {
			f.TwitterCard = nil
		} else {
			f.TwitterCard = &v
		}
	}
	f.Keywords = cleanKeywords(f.Keywords)
	if isJSONNull(f.StructuredData) {
		f.StructuredData = nil
	}
}

// RecordPatch is a partial update. A nil field is left unchanged; a pointer
// to an empty value clears the field.
type RecordPatch struct {
	RoutePath          *string          `json:"routePath,omitempty"`
	Title              *string          `json:"title,omitempty"`
	Description        *string          `json:"description,omitempty"`
	Keywords           *[]string        `json:"keywords,omitempty"`
	OGTitle            *string          `json:"ogTitle,omitempty"`
	OGDescription      *string          `json:"ogDescription,omitempty"`
	OGImageURL         *string          `json:"ogImageUrl,omitempty"`
	OGImageWidth       *int             `json:"ogImageWidth,omitempty"`
	OGImageHeight      *int             `json:"ogImageHeight,omitempty"`
	OGType             *OGType          `json:"ogType,omitempty"`
	OGURL              *string          `json:"ogUrl,omitempty"`
	OGSiteName         *string          `json:"ogSiteName,omitempty"`
	TwitterCard        *TwitterCard     `json:"twitterCard,omitempty"`
	TwitterTitle       *string          `json:"twitterTitle,omitempty"`
	TwitterDescription *string          `json:"twitterDescription,omitempty"`
	TwitterImageURL    *string          `json:"twitterImageUrl,omitempty"`
	TwitterSite        *string          `json:"twitterSite,omitempty"`
	TwitterCreator     *string          `json:"twitterCreator,omitempty"`
	CanonicalURL       *string          `json:"canonicalUrl,omitempty"`
	Robots             *string          `json:"robots,omitempty"`
	Author             *string          `json:"author,omitempty"`
	PublishedTime      *time.Time       `json:"publishedTime,omitempty"`
	ModifiedTime       *time.Time       `json:"modifiedTime,omitempty"`
	StructuredData     *json.RawMessage `json:"structuredData,omitempty"`
}

// Apply returns a copy of r with the patch applied, normalized and validated.
func (p RecordPatch) Apply(r Record) (Record, error) {
	setString := func(dst **string, v *string) {
		if v != nil {
			*dst = trimOrNil(v)
		}
	}
	if p.RoutePath != nil {
		r.RoutePath = strings.TrimSpace(*p.RoutePath)
	}
	setString(&r.Title, p.Title)
	setString(&r.Description, p.Description)
	if p.Keywords != nil {
		r.Keywords = cleanKeywords(*p.Keywords)
	}
	setString(&r.OGTitle, p.OGTitle)
	setString(&r.OGDescription, p.OGDescription)
	setString(&r.OGImageURL, p.OGImageURL)
	if p.OGImageWidth != nil {
		r.OGImageWidth = nonZero(*p.OGImageWidth)
	}
	if p.OGImageHeight != nil {
		r.OGImageHeight = nonZero(*p.OGImageHeight)
	}
	if p.OGType != nil {
		r.OGType = nil
		if v := OGType(strings.TrimSpace(string(*p.OGType))); v != "" {
			r.OGType = &v
		}
	}
	setString(&r.OGURL, p.OGURL)
	setString(&r.OGSiteName, p.OGSiteName)
	if p.TwitterCard != nil {
		r.TwitterCard = nil
		if v := TwitterCard(strings.TrimSpace(string(*p.TwitterCard))); v != "" {
			r.TwitterCard = &v
		}
	}
	setString(&r.TwitterTitle, p.TwitterTitle)
	setString(&r.TwitterDescription, p.TwitterDescription)
	setString(&r.TwitterImageURL, p.TwitterImageURL)
	setString(&r.TwitterSite, p.TwitterSite)
	setString(&r.TwitterCreator, p.TwitterCreator)
	setString(&r.CanonicalURL, p.CanonicalURL)
	setString(&r.Robots, p.Robots)
	setString(&r.Author, p.Author)
	if p.PublishedTime != nil {
		r.PublishedTime = nonZeroTime(*p.PublishedTime)
	}
	if p.ModifiedTime != nil {
		r.ModifiedTime = nonZeroTime(*p.ModifiedTime)
	}
	if p.StructuredData != nil {
		r.StructuredData = *p.StructuredData
		if isJSONNull(r.StructuredData) {
			r.StructuredData = nil
		}
	}

	// Lengths are checked on patched fields only.
	var c fieldChecker
	c.routePath(r.RoutePath)
	c.fields(&r.SEOFields, false)
	for _, f := range []struct {
		name  string
		set   bool
		value *string
		max   int
	}{
		{"title", p.Title != nil, r.Title, 60},
		{"description", p.Description != nil, r.Description, 160},
		{"ogTitle", p.OGTitle != nil, r.OGTitle, 60},
		{"ogDescription", p.OGDescription != nil, r.OGDescription, 200},
		{"twitterTitle", p.TwitterTitle != nil, r.TwitterTitle, 70},
		{"twitterDescription", p.TwitterDescription != nil, r.TwitterDescription, 200},
	} {
		if f.set {
			c.maxLen(f.name, f.value, f.max)
		}
	}
	if err := c.err(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// InputFromMetadata builds a create payload from metadata extracted from a
// live page. Values the record model cannot hold are dropped, including URLs
// that are still relative or unparsable.
func InputFromMetadata(routePath string, m extract.Metadata) RecordInput {
	in := RecordInput{
		RoutePath: routePath,
		Extracted: true,
		SEOFields: SEOFields{
			Title:         strPtr(m.Title),
			Description:   strPtr(m.Description),
			Keywords:      m.Keywords,
			OGTitle:       strPtr(m.OGTitle),
			OGDescription: strPtr(m.OGDescription),
			OGImageURL:    absoluteOrNil(m.OGImageURL),
			OGURL:         absoluteOrNil(m.OGURL),
			CanonicalURL:  absoluteOrNil(m.CanonicalURL),
			Robots:        strPtr(m.Robots),
		},
	}
	if t := OGType(strings.TrimSpace(m.OGType)); t.Valid() {
		in.OGType = &t
	}
	in.Normalize()
	return in
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func absoluteOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if !isAbsoluteURL(s) {
		return nil
	}
	return &s
}

func trimOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func cleanKeywords(in []string) []string {
	var out []string
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isJSONObject(b json.RawMessage) bool {
	var m map[string]any
	return json.Unmarshal(b, &m) == nil && m != nil
}

func isJSONNull(b json.RawMessage) bool {
	return len(b) == 0 || strings.TrimSpace(string(b)) == "null"
}
