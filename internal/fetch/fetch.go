// Package fetch wraps the HTTP client used to retrieve live pages, images and
// robots.txt files. Every request carries the console's bot user-agent and a
// per-call timeout.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultUserAgent identifies the console's crawler to the sites it checks.
const DefaultUserAgent = "Mozilla/5.0 (compatible; SEO-Console/1.0; +https://github.com/eringen/seoconsole)"

const maxRedirects = 10

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrRedirectLoop is returned when a redirect chain revisits a URL or
	// exceeds the redirect limit.
	ErrRedirectLoop = errors.New("redirect loop")
	// ErrTooLarge is returned when a body exceeds the caller's read limit.
	ErrTooLarge = errors.New("response body too large")
)

// Client performs bounded GET and HEAD requests.
type Client struct {
	http      *http.Client
	userAgent string
}

// New returns a Client. A nil hc uses a fresh http.Client; an empty userAgent
// uses DefaultUserAgent.
func New(hc *http.Client, userAgent string) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	// Copy so the redirect policy does not leak into a shared client.
	c := *hc
	if c.CheckRedirect == nil {
		c.CheckRedirect = checkRedirect
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{http: &c, userAgent: userAgent}
}

// UserAgent returns the user-agent sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d redirects", ErrRedirectLoop, maxRedirects)
	}
	next := req.URL.String()
	for _, prev := range via {
		if prev.URL.String() == next {
			return fmt.Errorf("%w: %s visited twice", ErrRedirectLoop, next)
		}
	}
	return nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	Status      string
	ContentType string
	FinalURL    string
	Body        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusText returns "<code> <reason>" for messages.
func (r *Response) StatusText() string {
	return fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
}

// ParseURL validates that raw is an absolute http or https URL.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u, nil
}

// Get fetches rawURL and reads at most limit bytes of the body (0 means no
// limit). Text bodies are decoded to UTF-8 using the declared charset.
// Non-2xx responses are returned without error; callers decide what they mean.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration, limit int64) (*Response, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}

	ct := resp.Header.Get("Content-Type")
	if isText(ct) {
		if decoded, err := decodeText(data, ct); err == nil {
			data = decoded
		}
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: ct,
		FinalURL:    resp.Request.URL.String(),
		Body:        data,
	}, nil
}

// Head issues a HEAD request and returns the response without a body.
func (c *Client) Head(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	resp, cancel, err := c.do(ctx, http.MethodHead, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	resp.Body.Close()
	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("request timed out after %s: %w", timeout, err)
		}
		return nil, nil, err
	}
	return resp, cancel, nil
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

func decodeText(data []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
