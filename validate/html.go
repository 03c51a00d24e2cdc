package validate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	maxTitleRunes       = 60
	maxDescriptionRunes = 160
)

// tag is the state of one tag in a document. Found is false when the element
// or its value attribute is absent; Value may be empty when Found is true.
type tag struct {
	Value string
	Found bool
}

func lookup(doc *goquery.Document, selector, attr string) tag {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return tag{}
	}
	v, ok := sel.Attr(attr)
	if !ok {
		return tag{}
	}
	return tag{Value: strings.TrimSpace(v), Found: true}
}

func metaProperty(doc *goquery.Document, property string) tag {
	return lookup(doc, `meta[property="`+property+`"]`, "content")
}

// twitterMeta reads twitter:* tags by name, falling back to property, since
// sites use both.
func twitterMeta(doc *goquery.Document, name string) tag {
	if t := lookup(doc, `meta[name="`+name+`"]`, "content"); t.Found {
		return t
	}
	return lookup(doc, `meta[property="`+name+`"]`, "content")
}

// ValidateHTML checks html against exp. Issues are reported in a fixed order
// so identical inputs give identical results.
func (v *Validator) ValidateHTML(html string, exp Expected) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	return newResult(checkDocument(doc, exp), v.now()), nil
}

func checkDocument(doc *goquery.Document, exp Expected) []Issue {
	var issues []Issue
	add := func(i Issue) { issues = append(issues, i) }

	if want, ok := expectedValue(exp.Title); ok {
		sel := doc.Find("title").First()
		if sel.Length() == 0 {
			add(Issue{Field: "title", Severity: SeverityCritical, Message: "Title tag is missing", Expected: want})
		} else {
			actual := strings.TrimSpace(sel.Text())
			if actual != want {
				add(Issue{Field: "title", Severity: SeverityWarning, Message: "Title tag does not match SEO record", Expected: want, Actual: actual})
			}
			if n := utf8.RuneCountInString(actual); n > maxTitleRunes {
				add(Issue{Field: "title", Severity: SeverityWarning,
					Message: fmt.Sprintf("Title exceeds recommended %d characters", maxTitleRunes),
					Actual:  fmt.Sprintf("%d characters", n)})
			}
		}
	}

	if want, ok := expectedValue(exp.Description); ok {
		t := lookup(doc, `meta[name="description"]`, "content")
		if !t.Found {
			add(Issue{Field: "description", Severity: SeverityCritical, Message: "Meta description is missing", Expected: want})
		} else {
			if t.Value != want {
				add(Issue{Field: "description", Severity: SeverityWarning, Message: "Meta description does not match SEO record", Expected: want, Actual: t.Value})
			}
			if n := utf8.RuneCountInString(t.Value); n > maxDescriptionRunes {
				add(Issue{Field: "description", Severity: SeverityWarning,
					Message: fmt.Sprintf("Description exceeds recommended %d characters", maxDescriptionRunes),
					Actual:  fmt.Sprintf("%d characters", n)})
			}
		}
	}

	presence := func(field, label string, sev Severity, expected *string, t tag) {
		want, ok := expectedValue(expected)
		if !ok {
			return
		}
		switch {
		case !t.Found:
			add(Issue{Field: field, Severity: sev, Message: label + " is missing", Expected: want})
		case t.Value == "":
			add(Issue{Field: field, Severity: sev, Message: label + " is empty", Expected: want})
		}
	}
	match := func(field, label string, expected *string, t tag) {
		want, ok := expectedValue(expected)
		if !ok || t.Value == want {
			return
		}
		add(Issue{Field: field, Severity: SeverityWarning, Message: label + " does not match", Expected: want, Actual: t.Value})
	}

	presence("og:title", "Open Graph title", SeverityCritical, exp.OGTitle, metaProperty(doc, "og:title"))
	presence("og:description", "Open Graph description", SeverityWarning, exp.OGDescription, metaProperty(doc, "og:description"))
	presence("og:image", "Open Graph image", SeverityCritical, exp.OGImageURL, metaProperty(doc, "og:image"))
	match("og:type", "Open Graph type", exp.OGType, metaProperty(doc, "og:type"))
	match("og:url", "Open Graph URL", exp.OGURL, metaProperty(doc, "og:url"))
	match("twitter:card", "Twitter card type", exp.TwitterCard, twitterMeta(doc, "twitter:card"))
	presence("twitter:title", "Twitter title", SeverityWarning, exp.TwitterTitle, twitterMeta(doc, "twitter:title"))
	presence("twitter:image", "Twitter image", SeverityWarning, exp.TwitterImageURL, twitterMeta(doc, "twitter:image"))

	if want, ok := expectedValue(exp.CanonicalURL); ok {
		t := lookup(doc, `link[rel="canonical"]`, "href")
		switch {
		case !t.Found:
			add(Issue{Field: "canonical", Severity: SeverityCritical, Message: "Canonical URL is missing", Expected: want})
		case t.Value != want:
			add(Issue{Field: "canonical", Severity: SeverityWarning, Message: "Canonical URL does not match", Expected: want, Actual: t.Value})
		}
		if t.Value != "" && !isAbsolute(t.Value) {
			add(Issue{Field: "canonical", Severity: SeverityWarning, Message: "Canonical URL should be absolute", Actual: t.Value})
		}
	}

	return issues
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// ValidateURL fetches pageURL and validates the body against exp. Non-2xx
// responses and network failures produce a single critical "fetch" issue.
func (v *Validator) ValidateURL(ctx context.Context, pageURL string, exp Expected) (Result, error) {
	resp, err := v.client.Get(ctx, pageURL, v.htmlTimeout, 0)
	if err != nil {
		if isInvalidURL(err) {
			return Result{}, err
		}
		v.log.Warn("Page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return v.fetchFailure(pageURL, err.Error()), nil
	}
	if !resp.OK() {
		return v.fetchFailure(pageURL, "Failed to fetch URL: "+resp.StatusText()), nil
	}
	return v.ValidateHTML(string(resp.Body), exp)
}

func (v *Validator) fetchFailure(pageURL, msg string) Result {
	return newResult([]Issue{{
		Field:    "fetch",
		Severity: SeverityCritical,
		Message:  msg,
		Actual:   pageURL,
	}}, v.now())
}
