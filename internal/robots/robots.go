// Package robots checks and caches robots.txt compliance per host.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// defaultMaxBodyBytes limits the size of robots.txt responses read into
// memory when the cache is not given a configured maximum.
const defaultMaxBodyBytes = 512 * 1024 // 512 KB

// entry holds the parsed robots.txt rules for one host, or a marker that
// the host's rules could not be fetched and every path should be allowed.
type entry struct {
	data     *robotstxt.RobotsData
	allowAll bool
}

// Cache checks robots.txt rules, holding at most maxEntries hosts at a
// time. Once full, new entries are rejected and existing entries persist
// for the process lifetime — there is no eviction.
type Cache struct {
	httpClient    *http.Client
	userAgent     string
	maxEntries    int
	maxFetchBytes int64
	alwaysAllow   map[string]struct{}

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Cache. alwaysAllow lists hosts that bypass robots.txt
// entirely (no fetch is ever made for them). maxEntries <= 0 means
// unbounded. maxFetchBytes <= 0 uses a 512 KB default.
func New(httpClient *http.Client, userAgent string, maxEntries int, alwaysAllow []string, maxFetchBytes int64) *Cache {
	allow := make(map[string]struct{}, len(alwaysAllow))
	for _, host := range alwaysAllow {
		allow[strings.ToLower(host)] = struct{}{}
	}

	if maxFetchBytes <= 0 {
		maxFetchBytes = defaultMaxBodyBytes
	}

	return &Cache{
		httpClient:    httpClient,
		userAgent:     userAgent,
		maxEntries:    maxEntries,
		maxFetchBytes: maxFetchBytes,
		alwaysAllow:   allow,
		entries:       make(map[string]*entry),
	}
}

// IsAllowed reports whether path on host may be fetched. It fetches and
// caches the host's robots.txt on first use; a fetch failure, a
// non-text/plain content type, or a parse failure is treated as allow-all,
// matching standard crawler behavior.
//
// When cacheOnly is true, no fetch is performed: a cache miss returns
// allowed with no error, used for the cheap precheck applied to links
// discovered on a page, as opposed to the authoritative check made before
// actually fetching a URL.
func (c *Cache) IsAllowed(ctx context.Context, scheme, host, path string, cacheOnly bool) (bool, error) {
	host = strings.ToLower(host)

	if _, ok := c.alwaysAllow[host]; ok {
		return true, nil
	}

	c.mu.Lock()
	e, hit := c.entries[host]
	c.mu.Unlock()

	if !hit {
		if cacheOnly {
			return true, nil
		}

		var err error
		e, err = c.fetch(ctx, scheme, host)
		if err != nil {
			return false, err
		}
		c.store(host, e)
	}

	if e.allowAll {
		return true, nil
	}

	return e.data.TestAgent(path, c.userAgent), nil
}

// CrawlDelay returns the Crawl-delay directive for host, or 0 if none is
// set, the host is not cached, or the host bypasses robots.txt.
func (c *Cache) CrawlDelay(host string) time.Duration {
	host = strings.ToLower(host)

	c.mu.Lock()
	e, ok := c.entries[host]
	c.mu.Unlock()

	if !ok || e.allowAll || e.data == nil {
		return 0
	}

	group := e.data.FindGroup(c.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

// store inserts e for host if the cache is not at capacity. Once full,
// insertion is silently skipped — the fetched result is still used for the
// current call, it just isn't retained.
func (c *Cache) store(host string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[host]; exists {
		c.entries[host] = e
		return
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		return
	}

	c.entries[host] = e
}

func (c *Cache) fetch(ctx context.Context, scheme, host string) (*entry, error) {
	if scheme == "" {
		scheme = "https"
	}

	robotsURL := scheme + "://" + host + robotsTxtPath

	body, statusCode, contentType, err := c.doFetch(ctx, robotsURL)
	if err != nil {
		return &entry{allowAll: true}, nil
	}

	if statusCode < 200 || statusCode >= 300 {
		return &entry{allowAll: true}, nil
	}

	if !strings.Contains(strings.ToLower(contentType), "text/plain") {
		return &entry{allowAll: true}, nil
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		return &entry{allowAll: true}, nil
	}

	return &entry{data: parsed}, nil
}

func (c *Cache) doFetch(ctx context.Context, robotsURL string) (body []byte, statusCode int, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, "", fmt.Errorf("robots: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxFetchBytes))
	if err != nil {
		return nil, resp.StatusCode, "", fmt.Errorf("robots: read body: %w", err)
	}

	return body, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}
