package validate

import (
	"bufio"
	"context"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsAgent = "Googlebot"

// ValidateRobotsTxt fetches /robots.txt relative to baseURL and reports
// whether routePath may be crawled. A missing or unreachable robots.txt
// allows everything.
func (v *Validator) ValidateRobotsTxt(ctx context.Context, baseURL, routePath string) RobotsResult {
	robotsURL, err := robotsLocation(baseURL)
	if err != nil {
		return RobotsResult{Allowed: true, StandardAllowed: true, Reason: "Could not fetch robots.txt"}
	}
	resp, err := v.client.Get(ctx, robotsURL, v.htmlTimeout, 0)
	if err != nil {
		v.log.Debug("robots.txt fetch failed", zap.String("url", robotsURL), zap.Error(err))
		return RobotsResult{Allowed: true, StandardAllowed: true, Reason: "Could not fetch robots.txt"}
	}
	if !resp.OK() {
		return RobotsResult{Allowed: true, StandardAllowed: true, Reason: "robots.txt not found (default: allow all)"}
	}

	res := EvaluateRobots(string(resp.Body), routePath)
	if res.Allowed != res.StandardAllowed {
		v.log.Warn("robots.txt verdict differs from longest-match crawlers",
			zap.String("url", robotsURL),
			zap.String("route", routePath),
			zap.Bool("allowed", res.Allowed),
			zap.Bool("standard_allowed", res.StandardAllowed))
	}
	return res
}

func robotsLocation(baseURL string) (string, error) {
	b, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(&url.URL{Path: "/robots.txt"}).String(), nil
}

// EvaluateRobots applies robots.txt directives to routePath in a single
// forward scan. Consecutive User-agent lines form a group; Allow and Disallow
// only count in groups naming "*" or googlebot, and the last matching
// directive wins.
func EvaluateRobots(body, routePath string) RobotsResult {
	res := RobotsResult{Allowed: true, StandardAllowed: standardVerdict(body, routePath)}

	// Rules before any User-agent line apply to everyone.
	group := []string{"*"}
	inRules := true
	applies := func() bool {
		for _, ua := range group {
			if ua == "*" || ua == "googlebot" {
				return true
			}
		}
		return false
	}

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "user-agent":
			if inRules {
				group = group[:0]
				inRules = false
			}
			group = append(group, strings.ToLower(value))
		case "disallow":
			inRules = true
			if value == "" || !applies() {
				continue
			}
			if value == "/" {
				res.Allowed = false
				res.Reason = "robots.txt disallows all pages"
			} else if strings.HasPrefix(routePath, value) {
				res.Allowed = false
				res.Reason = "robots.txt disallows " + routePath
			}
		case "allow":
			inRules = true
			if value == "" || !applies() {
				continue
			}
			if strings.HasPrefix(routePath, value) {
				res.Allowed = true
				res.Reason = ""
			}
		}
	}
	return res
}

func standardVerdict(body, routePath string) bool {
	data, err := robotstxt.FromString(body)
	if err != nil {
		return true
	}
	return data.TestAgent(routePath, robotsAgent)
}
