// Package fetcher performs the crawler's HTTP GETs: retrying transient
// failures, capping response size and redirect depth, and decoding bodies
// into UTF-8 text.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"golang.org/x/net/html/charset"
)

// Config controls retry, size and redirect behavior.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	MaxBodyBytes   int64
	MaxRedirects   int
	AllowedTypes   []string // content-type prefixes accepted, e.g. "text/html"

	// DisableStatusGate, when true, skips rejecting non-2xx responses
	// (fail_on_non_200_status_code in the crawler's original config).
	DisableStatusGate bool
	// DisableSizeGate, when true, silently truncates bodies larger than
	// MaxBodyBytes instead of rejecting them (fail_on_bigger_size).
	DisableSizeGate bool
}

// WithDefaults returns a copy of c with zero-value fields filled in.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "webcrawler/1.0"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 * 1024 * 1024 // 5 MB
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = []string{"text/html"}
	}
	return c
}

// Result is a fetched page: the decoded body, the final URL after
// redirects, and the redirect chain (the request URL first, then every
// redirect target in order, ending with the final URL).
type Result struct {
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        string
	RedirectLog []string
}

// Fetcher performs retried, size- and type-gated HTTP GETs.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New builds a Fetcher. Requests that fail with a temporary network error
// are retried up to MaxRetries times with exponential jittered backoff via
// rehttp; responses with an error status code are not retried.
func New(cfg Config) *Fetcher {
	cfg = cfg.WithDefaults()

	transport := rehttp.NewTransport(
		&http.Transport{},
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(cfg.MaxRetries),
			rehttp.RetryTemporaryErr(),
		),
		rehttp.ExpJitterDelay(1*time.Second, 10*time.Second),
	)

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}

	f := &Fetcher{client: client, cfg: cfg}
	client.CheckRedirect = f.checkRedirect

	return f
}

// ErrContentTypeRejected is returned when the response content-type isn't
// in the configured allow-list.
var ErrContentTypeRejected = fmt.Errorf("fetcher: content-type rejected")

// ErrStatusRejected is returned when the response status code is not 2xx
// and the status gate is enabled.
var ErrStatusRejected = fmt.Errorf("fetcher: status code rejected")

// ErrBodyTooLarge is returned when the response body exceeds MaxBodyBytes
// and the size gate is enabled.
var ErrBodyTooLarge = fmt.Errorf("fetcher: body exceeds max size")

type redirectLogKey struct{}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return ErrTooManyRedirects
	}

	if log, ok := req.Context().Value(redirectLogKey{}).(*[]string); ok {
		*log = append(*log, req.URL.String())
	}

	return nil
}

// Get fetches rawURL, following redirects up to the configured cap and
// decoding the body to UTF-8.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	redirectLog := []string{rawURL}
	ctx = context.WithValue(ctx, redirectLogKey{}, &redirectLog)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("fetcher: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: request: %w", err)
	}
	defer resp.Body.Close()

	if !f.cfg.DisableStatusGate && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, fmt.Errorf("%w: %d", ErrStatusRejected, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.isAllowedType(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrContentTypeRejected, contentType)
	}

	raw, err := f.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeBody(raw, contentType)
	if err != nil {
		return nil, fmt.Errorf("fetcher: decode body: %w", err)
	}

	finalURL := redirectLog[len(redirectLog)-1]

	return &Result{
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        decoded,
		RedirectLog: redirectLog,
	}, nil
}

// readBody reads resp.Body up to MaxBodyBytes. With the size gate enabled
// (the default), a body that doesn't fit is rejected with ErrBodyTooLarge
// instead of being silently truncated.
func (f *Fetcher) readBody(body io.Reader) ([]byte, error) {
	if f.cfg.DisableSizeGate {
		raw, err := io.ReadAll(io.LimitReader(body, f.cfg.MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("fetcher: read body: %w", err)
		}
		return raw, nil
	}

	raw, err := io.ReadAll(io.LimitReader(body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	if int64(len(raw)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.cfg.MaxBodyBytes)
	}

	return raw, nil
}

func (f *Fetcher) isAllowedType(contentType string) bool {
	for _, allowed := range f.cfg.AllowedTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

// decodeBody converts raw bytes to a UTF-8 string, using the content-type's
// declared charset if present, falling back from UTF-8 to Latin-1 when the
// bytes aren't valid UTF-8.
func decodeBody(raw []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(strings.NewReader(string(raw)), contentType)
	if err != nil {
		return string(raw), nil //nolint:nilerr // undecodable charset: fall back to raw bytes
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	return string(decoded), nil
}
