package seoconsole

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// RobotsAgent is the rule group for one user-agent.
type RobotsAgent struct {
	Agent    string   `json:"agent"`
	Allow    []string `json:"allow,omitempty"`
	Disallow []string `json:"disallow,omitempty"`
}

// RobotsOptions describes a robots.txt to generate.
type RobotsOptions struct {
	UserAgents []RobotsAgent `json:"userAgents,omitempty"`
	SitemapURL string        `json:"sitemapUrl,omitempty"`
	CrawlDelay int           `json:"crawlDelay,omitempty"`
}

var sitemapLine = regexp.MustCompile(`(?m)^Sitemap:[ \t]*(.+)$`)

// DefaultRobotsOptions returns the rules served at /robots.txt: everything
// is allowed except API, admin and framework paths.
func DefaultRobotsOptions(siteURL string) RobotsOptions {
	return RobotsOptions{
		UserAgents: []RobotsAgent{{
			Agent:    "*",
			Allow:    []string{"/"},
			Disallow: []string{"/api/", "/admin/", "/_next/"},
		}},
		SitemapURL: BuildURL(siteURL, "sitemap.xml"),
	}
}

// GenerateRobotsTxt renders robots.txt. Without user agents a single
// allow-all group for "*" is written.
func GenerateRobotsTxt(opts RobotsOptions) string {
	var b strings.Builder
	delay := func() {
		if opts.CrawlDelay > 0 {
			b.WriteString("Crawl-delay: " + strconv.Itoa(opts.CrawlDelay) + "\n")
		}
	}
	if len(opts.UserAgents) == 0 {
		b.WriteString("User-agent: *\n")
		delay()
		b.WriteString("Allow: /\n\n")
	}
	for _, ua := range opts.UserAgents {
		b.WriteString("User-agent: " + ua.Agent + "\n")
		delay()
		for _, p := range ua.Allow {
			b.WriteString("Allow: " + p + "\n")
		}
		for _, p := range ua.Disallow {
			b.WriteString("Disallow: " + p + "\n")
		}
		b.WriteString("\n")
	}
	if opts.SitemapURL != "" {
		b.WriteString("Sitemap: " + opts.SitemapURL + "\n")
	}
	return strings.TrimSpace(b.String())
}

// UpdateRobotsTxtWithSitemap points content at sitemapURL, replacing the
// first Sitemap line or appending one. Other content is preserved.
func UpdateRobotsTxtWithSitemap(content, sitemapURL string) string {
	replacement := "Sitemap: " + sitemapURL
	if loc := sitemapLine.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + replacement + content[loc[1]:]
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return replacement
	}
	return trimmed + "\n\n" + replacement
}

// ExtractSitemapURL returns the first Sitemap URL declared in content.
func ExtractSitemapURL(content string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		if m := sitemapLine.FindStringSubmatch(sc.Text()); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}
