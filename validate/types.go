package validate

import (
	"fmt"
	"time"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// UnmarshalText rejects unknown severities.
func (s *Severity) UnmarshalText(b []byte) error {
	switch v := Severity(b); v {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		*s = v
		return nil
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
}

// Issue is one violated rule. Field is a stable identifier such as
// "og:image" or "fetch".
type Issue struct {
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

// Result is the outcome of validating a page against expected metadata.
type Result struct {
	IsValid     bool      `json:"isValid"`
	Issues      []Issue   `json:"issues"`
	ValidatedAt time.Time `json:"validatedAt"`
}

// HasCritical reports whether any issue is critical.
func HasCritical(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func newResult(issues []Issue, at time.Time) Result {
	if issues == nil {
		issues = []Issue{}
	}
	return Result{IsValid: !HasCritical(issues), Issues: issues, ValidatedAt: at}
}

// Expected is the metadata a page should carry. A nil or empty field is not
// checked.
type Expected struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	OGTitle         *string `json:"ogTitle,omitempty"`
	OGDescription   *string `json:"ogDescription,omitempty"`
	OGImageURL      *string `json:"ogImageUrl,omitempty"`
	OGType          *string `json:"ogType,omitempty"`
	OGURL           *string `json:"ogUrl,omitempty"`
	TwitterCard     *string `json:"twitterCard,omitempty"`
	TwitterTitle    *string `json:"twitterTitle,omitempty"`
	TwitterImageURL *string `json:"twitterImageUrl,omitempty"`
	CanonicalURL    *string `json:"canonicalUrl,omitempty"`
}

func expectedValue(p *string) (string, bool) {
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// ImageMetadata describes a decoded image.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

// ImageResult is the outcome of an OG image check. Metadata is nil when the
// image could not be fetched or decoded.
type ImageResult struct {
	IsValid  bool           `json:"isValid"`
	Issues   []Issue        `json:"issues"`
	Metadata *ImageMetadata `json:"metadata,omitempty"`
}

// CrawlIssueType identifies a crawlability problem.
type CrawlIssueType string

const (
	CrawlNoIndex          CrawlIssueType = "noindex"
	CrawlNoFollow         CrawlIssueType = "nofollow"
	CrawlRobotsBlocked    CrawlIssueType = "robots_blocked"
	CrawlAuthWall         CrawlIssueType = "auth_wall"
	CrawlRedirectLoop     CrawlIssueType = "redirect_loop"
	CrawlNotFound         CrawlIssueType = "404"
	CrawlCanonicalMissing CrawlIssueType = "canonical_missing"
)

// CrawlIssue is one crawlability finding for a page.
type CrawlIssue struct {
	Type     CrawlIssueType `json:"type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Page     string         `json:"page"`
}

// CrawlabilityResult reports whether a page can be crawled and indexed.
// Issues holds critical findings, Warnings the rest.
type CrawlabilityResult struct {
	Crawlable bool         `json:"crawlable"`
	Indexable bool         `json:"indexable"`
	Issues    []CrawlIssue `json:"issues"`
	Warnings  []CrawlIssue `json:"warnings"`
}

// RobotsResult is the robots.txt verdict for one route. StandardAllowed is
// the longest-match verdict real crawlers apply; it may disagree with
// Allowed, which follows the order of directives in the file.
type RobotsResult struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	StandardAllowed bool   `json:"standardAllowed"`
}

// AccessResult reports whether a URL is reachable without authentication.
type AccessResult struct {
	Accessible   bool `json:"accessible"`
	RequiresAuth bool `json:"requiresAuth"`
}
