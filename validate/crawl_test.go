package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crawlTypes(issues []CrawlIssue) []CrawlIssueType {
	out := []CrawlIssueType{}
	for _, i := range issues {
		out = append(out, i.Type)
	}
	return out
}

func TestValidateCrawlabilityWithHTML(t *testing.T) {
	tests := []struct {
		name          string
		html          string
		wantCrawlable bool
		wantIndexable bool
		wantIssues    []CrawlIssueType
		wantWarnings  []CrawlIssueType
	}{
		{
			name:          "clean page",
			html:          `<html><head><link rel="canonical" href="https://x.com/"></head></html>`,
			wantCrawlable: true,
			wantIndexable: true,
			wantIssues:    []CrawlIssueType{},
			wantWarnings:  []CrawlIssueType{},
		},
		{
			name:          "noindex is crawlable but not indexable",
			html:          `<meta name="robots" content="NOINDEX, nofollow"><link rel="canonical" href="https://x.com/">`,
			wantCrawlable: true,
			wantIndexable: false,
			wantIssues:    []CrawlIssueType{CrawlNoIndex},
			wantWarnings:  []CrawlIssueType{CrawlNoFollow},
		},
		{
			name:          "missing canonical is a warning",
			html:          `<title>x</title>`,
			wantCrawlable: true,
			wantIndexable: true,
			wantIssues:    []CrawlIssueType{},
			wantWarnings:  []CrawlIssueType{CrawlCanonicalMissing},
		},
	}
	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateCrawlability(context.Background(), "https://x.com/", tt.html)
			assert.Equal(t, tt.wantCrawlable, res.Crawlable)
			assert.Equal(t, tt.wantIndexable, res.Indexable)
			assert.Equal(t, tt.wantIssues, crawlTypes(res.Issues))
			assert.Equal(t, tt.wantWarnings, crawlTypes(res.Warnings))
		})
	}
}

func TestValidateCrawlabilityFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<link rel="canonical" href="https://x.com/ok">`))
	})
	mux.HandleFunc("/gone", http.NotFound)
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<link rel="canonical" href="https://x.com/private">`))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop2", http.StatusFound)
	})
	mux.HandleFunc("/loop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := newTestValidator(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	ok := v.ValidateCrawlability(ctx, srv.URL+"/ok", "")
	assert.True(t, ok.Crawlable)
	assert.True(t, ok.Indexable)

	moved := v.ValidateCrawlability(ctx, srv.URL+"/moved", "")
	assert.True(t, moved.Crawlable)

	gone := v.ValidateCrawlability(ctx, srv.URL+"/gone", "")
	assert.False(t, gone.Crawlable)
	assert.False(t, gone.Indexable)
	assert.Equal(t, []CrawlIssueType{CrawlNotFound}, crawlTypes(gone.Issues))
	assert.Empty(t, gone.Warnings)

	private := v.ValidateCrawlability(ctx, srv.URL+"/private", "")
	assert.False(t, private.Crawlable)
	assert.False(t, private.Indexable)
	assert.Equal(t, []CrawlIssueType{CrawlNotFound, CrawlAuthWall}, crawlTypes(private.Issues))
	assert.Contains(t, private.Issues[0].Message, "403")

	loop := v.ValidateCrawlability(ctx, srv.URL+"/loop", "")
	assert.False(t, loop.Crawlable)
	assert.Equal(t, []CrawlIssueType{CrawlRedirectLoop}, crawlTypes(loop.Issues))

	down := v.ValidateCrawlability(ctx, "http://127.0.0.1:1/", "")
	assert.False(t, down.Crawlable)
	require.Len(t, down.Issues, 1)
	assert.Equal(t, CrawlNotFound, down.Issues[0].Type)
}

func TestValidatePublicAccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/open", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := newTestValidator(WithHTTPClient(srv.Client()))
	ctx := context.Background()
	assert.Equal(t, AccessResult{Accessible: true}, v.ValidatePublicAccess(ctx, srv.URL+"/open"))
	assert.Equal(t, AccessResult{RequiresAuth: true}, v.ValidatePublicAccess(ctx, srv.URL+"/login"))
	assert.Equal(t, AccessResult{}, v.ValidatePublicAccess(ctx, srv.URL+"/broken"))
	assert.Equal(t, AccessResult{}, v.ValidatePublicAccess(ctx, "http://127.0.0.1:1/"))
}
