package seoconsole

import (
	"encoding/xml"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name       `xml:"urlset"`
	XMLNS   string         `xml:"xmlns,attr"`
	URLs    []SitemapEntry `xml:"url"`
}

// SitemapEntry is one <url> element of sitemap.xml.
type SitemapEntry struct {
	Loc        string   `xml:"loc" json:"loc"`
	LastMod    string   `xml:"lastmod,omitempty" json:"lastmod,omitempty"`
	ChangeFreq string   `xml:"changefreq,omitempty" json:"changefreq,omitempty"`
	Priority   *float64 `xml:"priority,omitempty" json:"priority,omitempty"`
}

// SitemapEntries converts records into sitemap entries. Only records with a
// canonical URL are included. Entries are ordered by priority, highest
// first, then by location.
func SitemapEntries(records []Record) []SitemapEntry {
	entries := make([]SitemapEntry, 0, len(records))
	for _, r := range records {
		if r.CanonicalURL == nil || strings.TrimSpace(*r.CanonicalURL) == "" {
			continue
		}
		e := SitemapEntry{Loc: *r.CanonicalURL}
		switch {
		case r.ModifiedTime != nil:
			e.LastMod = r.ModifiedTime.UTC().Format(time.DateOnly)
		case r.LastValidatedAt != nil:
			e.LastMod = r.LastValidatedAt.UTC().Format(time.DateOnly)
		}
		var priority float64
		switch {
		case r.RoutePath == "/":
			e.ChangeFreq, priority = "daily", 1.0
		case strings.Contains(r.RoutePath, "/blog/") || strings.Contains(r.RoutePath, "/posts/"):
			e.ChangeFreq, priority = "weekly", 0.8
		default:
			e.ChangeFreq, priority = "monthly", 0.6
		}
		e.Priority = &priority
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := *entries[i].Priority, *entries[j].Priority
		if pi != pj {
			return pi > pj
		}
		return entries[i].Loc < entries[j].Loc
	})
	return entries
}

// RenderSitemap writes sitemap.xml for entries. Relative locations are
// resolved against baseURL.
func RenderSitemap(w io.Writer, baseURL string, entries []SitemapEntry) error {
	base, _ := url.Parse(baseURL)
	urls := make([]SitemapEntry, len(entries))
	for i, e := range entries {
		if !strings.HasPrefix(e.Loc, "http") && base != nil {
			if ref, err := url.Parse(e.Loc); err == nil {
				e.Loc = base.ResolveReference(ref).String()
			}
		}
		urls[i] = e
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(sitemapURLSet{XMLNS: sitemapNS, URLs: urls}); err != nil {
		return err
	}
	return enc.Close()
}

// ValidateSitemapEntry returns the problems with e, or nil.
func ValidateSitemapEntry(e SitemapEntry) []string {
	var errs []string
	if e.Loc == "" {
		errs = append(errs, "Location (loc) is required")
	} else if !isAbsoluteURL(e.Loc) {
		errs = append(errs, "Location must be a valid URL")
	}
	if e.Priority != nil && (*e.Priority < 0 || *e.Priority > 1) {
		errs = append(errs, "Priority must be between 0.0 and 1.0")
	}
	if e.LastMod != "" && !validLastMod(e.LastMod) {
		errs = append(errs, "Lastmod must be a valid date (YYYY-MM-DD)")
	}
	return errs
}

func validLastMod(s string) bool {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
