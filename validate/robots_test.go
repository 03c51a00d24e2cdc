package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateRobots(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		route        string
		wantAllowed  bool
		wantReason   string
		wantStandard bool
	}{
		{
			name:         "disallowed prefix",
			body:         "User-agent: *\nDisallow: /admin/",
			route:        "/admin/seo",
			wantAllowed:  false,
			wantReason:   "robots.txt disallows /admin/seo",
			wantStandard: false,
		},
		{
			name:         "disallow all",
			body:         "User-agent: *\nDisallow: /",
			route:        "/blog",
			wantAllowed:  false,
			wantReason:   "robots.txt disallows all pages",
			wantStandard: false,
		},
		{
			name:         "other agent ignored",
			body:         "User-agent: bingbot\nDisallow: /",
			route:        "/blog",
			wantAllowed:  true,
			wantStandard: true,
		},
		{
			name:         "grouped agents share rules",
			body:         "User-agent: bingbot\nUser-agent: Googlebot\nDisallow: /private",
			route:        "/private/x",
			wantAllowed:  false,
			wantReason:   "robots.txt disallows /private/x",
			wantStandard: false,
		},
		{
			name:         "new group after rules",
			body:         "User-agent: *\nDisallow: /a\n\nUser-agent: bingbot\nDisallow: /b",
			route:        "/b",
			wantAllowed:  true,
			wantStandard: true,
		},
		{
			name:         "empty disallow ignored",
			body:         "User-agent: *\nDisallow:\n",
			route:        "/",
			wantAllowed:  true,
			wantStandard: true,
		},
		{
			name:         "later allow re-permits",
			body:         "User-agent: *\nDisallow: /admin/\nAllow: /admin/seo",
			route:        "/admin/seo",
			wantAllowed:  true,
			wantStandard: true,
		},
		{
			name:         "last directive wins where longest match disagrees",
			body:         "User-agent: *\nAllow: /admin/seo\nDisallow: /admin/",
			route:        "/admin/seo",
			wantAllowed:  false,
			wantReason:   "robots.txt disallows /admin/seo",
			wantStandard: true,
		},
		{
			name:         "comments stripped",
			body:         "# rules\nUser-agent: * # everyone\nDisallow: /tmp # scratch\n",
			route:        "/tmp/file",
			wantAllowed:  false,
			wantReason:   "robots.txt disallows /tmp/file",
			wantStandard: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateRobots(tt.body, tt.route)
			assert.Equal(t, tt.wantAllowed, res.Allowed)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantStandard, res.StandardAllowed)
		})
	}
}

func TestValidateRobotsTxt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin/\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := newTestValidator(WithHTTPClient(srv.Client()))
	res := v.ValidateRobotsTxt(context.Background(), srv.URL+"/some/page", "/admin/seo")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "/admin/seo")

	res = v.ValidateRobotsTxt(context.Background(), srv.URL, "/blog")
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Reason)
}

func TestValidateRobotsTxtMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	v := newTestValidator(WithHTTPClient(srv.Client()))
	res := v.ValidateRobotsTxt(context.Background(), srv.URL, "/admin")
	assert.True(t, res.Allowed)
	assert.Contains(t, res.Reason, "not found")

	res = v.ValidateRobotsTxt(context.Background(), "http://127.0.0.1:1", "/admin")
	assert.True(t, res.Allowed)
	assert.Equal(t, "Could not fetch robots.txt", res.Reason)
}
