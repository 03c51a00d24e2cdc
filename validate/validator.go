// Package validate compares live pages and images against the SEO metadata a
// route is expected to carry and reports the differences as issues.
//
// Expected failures such as missing tags, bad status codes or timeouts are
// reported as issues. Only programming errors (an invalid URL, an
// unparsable document) are returned as Go errors.
package validate

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/seoconsole/internal/fetch"
)

// ErrInvalidURL is returned when a URL argument is not an absolute http(s) URL.
var ErrInvalidURL = fetch.ErrInvalidURL

const (
	defaultHTMLTimeout   = 10 * time.Second
	defaultImageTimeout  = 15 * time.Second
	defaultMaxImageBytes = 32 << 20
)

// Validator runs validations. The zero value is not usable; use New.
type Validator struct {
	client        *fetch.Client
	log           *zap.Logger
	now           func() time.Time
	htmlTimeout   time.Duration
	imageTimeout  time.Duration
	maxImageBytes int64
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient sets the HTTP client used for all fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Validator) { v.client = fetch.New(hc, v.client.UserAgent()) }
}

// WithFetcher sets a preconfigured fetch client.
func WithFetcher(c *fetch.Client) Option {
	return func(v *Validator) { v.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// WithClock sets the function used to stamp ValidatedAt.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithTimeouts overrides the HTML and image fetch timeouts. Zero values keep
// the defaults.
func WithTimeouts(html, image time.Duration) Option {
	return func(v *Validator) {
		if html > 0 {
			v.htmlTimeout = html
		}
		if image > 0 {
			v.imageTimeout = image
		}
	}
}

// WithMaxImageBytes caps how much of an image body is read.
func WithMaxImageBytes(n int64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxImageBytes = n
		}
	}
}

// New returns a Validator with a default HTTP client and the bot user-agent.
func New(opts ...Option) *Validator {
	v := &Validator{
		client:        fetch.New(nil, ""),
		log:           zap.NewNop(),
		now:           time.Now,
		htmlTimeout:   defaultHTMLTimeout,
		imageTimeout:  defaultImageTimeout,
		maxImageBytes: defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func isInvalidURL(err error) bool {
	return errors.Is(err, fetch.ErrInvalidURL)
}
