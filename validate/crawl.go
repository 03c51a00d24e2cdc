package validate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eringen/seoconsole/extract"
	"github.com/eringen/seoconsole/internal/fetch"
)

// ValidateCrawlability checks that pageURL can be crawled and indexed. When
// html is empty the page is fetched, following redirects.
func (v *Validator) ValidateCrawlability(ctx context.Context, pageURL, html string) CrawlabilityResult {
	res := CrawlabilityResult{Issues: []CrawlIssue{}, Warnings: []CrawlIssue{}}
	critical := func(t CrawlIssueType, msg string) {
		res.Issues = append(res.Issues, CrawlIssue{Type: t, Severity: SeverityCritical, Message: msg, Page: pageURL})
	}
	warn := func(t CrawlIssueType, msg string) {
		res.Warnings = append(res.Warnings, CrawlIssue{Type: t, Severity: SeverityWarning, Message: msg, Page: pageURL})
	}

	if html == "" {
		resp, err := v.client.Get(ctx, pageURL, v.htmlTimeout, 0)
		if err != nil {
			v.log.Warn("Crawlability fetch failed", zap.String("url", pageURL), zap.Error(err))
			if errors.Is(err, fetch.ErrRedirectLoop) {
				critical(CrawlRedirectLoop, "Page redirects in a loop: "+err.Error())
			} else {
				critical(CrawlNotFound, err.Error())
			}
			return res
		}
		if resp.StatusCode == http.StatusNotFound {
			critical(CrawlNotFound, "Page returns 404 Not Found")
			return res
		}
		if resp.StatusCode != http.StatusOK {
			critical(CrawlNotFound, fmt.Sprintf("Page returns HTTP %d", resp.StatusCode))
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			critical(CrawlAuthWall, "Page requires authentication (401/403)")
		}
		html = string(resp.Body)
	}

	meta := extract.FromHTML(html, pageURL)
	if robots := strings.ToLower(meta.Robots); robots != "" {
		if strings.Contains(robots, "noindex") {
			critical(CrawlNoIndex, "Page has noindex meta tag - will not be indexed")
		}
		if strings.Contains(robots, "nofollow") {
			warn(CrawlNoFollow, "Page has nofollow meta tag - links won't be followed")
		}
	}
	if meta.CanonicalURL == "" {
		warn(CrawlCanonicalMissing, "Page missing canonical URL")
	}

	noindex := false
	res.Crawlable = true
	for _, i := range res.Issues {
		if i.Type == CrawlNoIndex {
			noindex = true
		} else {
			res.Crawlable = false
		}
	}
	res.Indexable = res.Crawlable && !noindex
	return res
}

// ValidatePublicAccess issues a HEAD request and reports whether pageURL is
// reachable without authentication.
func (v *Validator) ValidatePublicAccess(ctx context.Context, pageURL string) AccessResult {
	resp, err := v.client.Head(ctx, pageURL, v.htmlTimeout)
	if err != nil {
		v.log.Debug("Public access check failed", zap.String("url", pageURL), zap.Error(err))
		return AccessResult{}
	}
	requiresAuth := resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
	return AccessResult{
		Accessible:   resp.OK() && !requiresAuth,
		RequiresAuth: requiresAuth,
	}
}
