// Package extract runs the per-URL extraction state machine: fetch a page,
// gate it against robots and language rules, and produce a page record plus
// the links discovered on it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/webcrawler/internal/fetcher"
	"github.com/jonesrussell/webcrawler/internal/page"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/urlx"
)

// CrawledSet reports whether a canonical URL has already been crawled. The
// extractor only reads it; mutation is the coordinator's job between batches.
type CrawledSet interface {
	Contains(canonicalURL string) bool
}

// Config controls the extraction pipeline's limits and gates.
type Config struct {
	HeadingMaxLevel         int
	HeadingsPerLevelMax     int
	MaxCrawledLinksPerPage  int
	PrecheckRobotsAllowance bool
	AllowedLanguages        []string
	Limits                  page.Limits
}

// DefaultConfig returns sensible stage limits.
func DefaultConfig() Config {
	return Config{
		HeadingMaxLevel:        6,
		HeadingsPerLevelMax:    10,
		MaxCrawledLinksPerPage: 100,
		Limits:                 page.DefaultLimits(),
	}
}

// Abort reasons. Each corresponds to one numbered stage in the extraction
// pipeline; callers branch on these to decide bookkeeping, not recovery.
var (
	ErrAlreadyCrawled   = errors.New("extract: already crawled")
	ErrRobotsDenied     = errors.New("extract: robots denied")
	ErrIdentityMismatch = errors.New("extract: fetched url does not match request")
	ErrHTMLParse        = errors.New("extract: html parse failed")
	ErrMetaRobots       = errors.New("extract: meta robots denied")
	ErrLanguageDenied   = errors.New("extract: language not allowed")
)

// Outcome is the result of running the pipeline on one URL.
type Outcome struct {
	Record      *page.Record
	NewLinks    []string
	FetchedURLs []string // canonical URLs to mark visited, whether or not extraction succeeded
	Err         error    // non-nil means the pipeline aborted; Record is nil
}

// Extractor runs the 13-stage pipeline described for page extraction.
type Extractor struct {
	urls   *urlx.Wrapper
	robots *robots.Cache
	fetch  *fetcher.Fetcher
	cfg    Config
}

// New builds an Extractor.
func New(urls *urlx.Wrapper, robotsCache *robots.Cache, f *fetcher.Fetcher, cfg Config) *Extractor {
	return &Extractor{urls: urls, robots: robotsCache, fetch: f, cfg: cfg}
}

// Process runs the full pipeline for u, already known to be a valid
// URL (the coordinator validates queue entries before slicing).
func (e *Extractor) Process(ctx context.Context, u *urlx.URL, crawled CrawledSet) Outcome {
	// 1. Prefilter.
	if crawled.Contains(u.Canonical) {
		return Outcome{Err: ErrAlreadyCrawled}
	}

	// 2. Robots (origin host).
	allowed, err := e.robots.IsAllowed(ctx, u.Scheme, u.Host, u.Path, false)
	if err != nil {
		return Outcome{Err: fmt.Errorf("extract: origin robots check: %w", err)}
	}
	if !allowed {
		return Outcome{Err: ErrRobotsDenied, FetchedURLs: []string{u.Canonical}}
	}

	// 3. Fetch.
	crawlTimestamp := time.Now().Unix()
	result, err := e.fetch.Get(ctx, u.Raw)
	if err != nil {
		return Outcome{Err: fmt.Errorf("extract: fetch: %w", err), FetchedURLs: []string{u.Canonical}}
	}

	// 4. Integrity: the echoed original URL (first redirect-log entry) must
	// equal the request URL.
	if len(result.RedirectLog) == 0 || result.RedirectLog[0] != u.Raw {
		return Outcome{Err: ErrIdentityMismatch, FetchedURLs: []string{u.Canonical}}
	}

	finalURL, err := e.urls.Parse(result.FinalURL)
	if err != nil {
		return Outcome{Err: fmt.Errorf("extract: final url: %w", err), FetchedURLs: []string{u.Canonical}}
	}

	fetched := []string{u.Canonical}
	if finalURL.Canonical != u.Canonical {
		fetched = append(fetched, finalURL.Canonical)
	}

	// 5. Post-redirect dedup.
	if finalURL.Canonical != u.Canonical && crawled.Contains(finalURL.Canonical) {
		return Outcome{Err: ErrAlreadyCrawled, FetchedURLs: fetched}
	}

	// 6. Cross-host robots.
	if finalURL.Host != u.Host {
		allowed, err := e.robots.IsAllowed(ctx, finalURL.Scheme, finalURL.Host, finalURL.Path, false)
		if err != nil {
			return Outcome{Err: fmt.Errorf("extract: final robots check: %w", err), FetchedURLs: fetched}
		}
		if !allowed {
			return Outcome{Err: ErrRobotsDenied, FetchedURLs: fetched}
		}
	}

	// 7. HTML parse.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Body))
	if err != nil {
		return Outcome{Err: fmt.Errorf("%w: %v", ErrHTMLParse, err), FetchedURLs: fetched}
	}

	// 8. Meta robots.
	if metaContent, ok := doc.Find(`meta[name="robots"]`).Attr("content"); ok {
		noIndex, noFollow := robots.MetaDirectives(metaContent)
		if noIndex || noFollow {
			return Outcome{Err: ErrMetaRobots, FetchedURLs: fetched}
		}
	}

	// 9. Strip style/script subtrees.
	doc.Find("style, script").Remove()

	// 10. Language gate.
	lang := strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
	if lang != "" && len(e.cfg.AllowedLanguages) > 0 && !languageAllowed(lang, e.cfg.AllowedLanguages) {
		return Outcome{Err: ErrLanguageDenied, FetchedURLs: fetched}
	}

	// 11. Extract fields.
	title := strings.TrimSpace(doc.Find("title").First().Text())
	headings := extractHeadings(doc, e.cfg.HeadingMaxLevel, e.cfg.HeadingsPerLevelMax)
	description := metaContentOf(doc, "description")
	keywords := metaContentOf(doc, "keywords")
	author := metaContentOf(doc, "author")
	imageAlts := extractImageAlts(doc, e.cfg.Limits.ImageAltsMax)

	links, linkTexts, totalLinks := e.extractLinks(ctx, doc, finalURL)

	// 12. Content snippet.
	snippet, quality := extractSnippet(doc, e.cfg.Limits.ContentSnippetMax)

	// 13. Construct Page Record.
	rec, err := page.New(page.Fields{
		OriginalURL:           u.Raw,
		OriginalCanonicalURL:  u.Canonical,
		FinalURL:              finalURL.Raw,
		FinalCanonicalURL:     finalURL.Canonical,
		WasRedirected:         finalURL.Canonical != u.Canonical,
		CrawlTimestamp:        crawlTimestamp,
		Language:              lang,
		Title:                 title,
		Headings:              headings,
		Description:           description,
		Keywords:              keywords,
		Author:                author,
		ContentSnippet:        snippet,
		ContentSnippetQuality: quality,
		ImageAlts:             imageAlts,
		LinkTexts:             linkTexts,
		TotalLinksCount:       totalLinks,
	}, e.cfg.Limits)
	if err != nil {
		return Outcome{Err: fmt.Errorf("extract: construct record: %w", err), FetchedURLs: fetched}
	}

	return Outcome{Record: rec, NewLinks: links, FetchedURLs: fetched}
}

func languageAllowed(lang string, allowed []string) bool {
	lower := strings.ToLower(lang)
	for _, a := range allowed {
		if strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func metaContentOf(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).Attr("content")
	return content
}

func extractHeadings(doc *goquery.Document, maxLevel, perLevelMax int) map[int][]string {
	headings := make(map[int][]string)
	for level := 1; level <= maxLevel; level++ {
		selector := fmt.Sprintf("h%d", level)
		var texts []string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(texts) >= perLevelMax {
				return false
			}
			if text := strings.TrimSpace(sel.Text()); text != "" {
				texts = append(texts, text)
			}
			return true
		})
		if len(texts) > 0 {
			headings[level] = texts
		}
	}
	return headings
}

func extractImageAlts(doc *goquery.Document, maxLength int) string {
	var b strings.Builder
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		alt := strings.TrimSpace(sel.AttrOr("alt", ""))
		if alt == "" {
			return true
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(alt)
		return b.Len() < maxLength
	})
	return b.String()
}

// extractLinks resolves and validates every <a href>, accumulating accepted
// links and their texts up to the configured caps. Rejections are silently
// skipped; total_links_count counts every href seen, accepted or not.
func (e *Extractor) extractLinks(
	ctx context.Context,
	doc *goquery.Document,
	base *urlx.URL,
) (links []string, linkTexts string, total int) {
	var textBuilder strings.Builder

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		total++

		resolved, err := e.urls.Join(base, href)
		if err != nil {
			return
		}

		if len(links) < e.cfg.MaxCrawledLinksPerPage && e.linkAdmitted(ctx, resolved) {
			links = append(links, resolved.Raw)

			text := strings.TrimSpace(sel.Text())
			if text != "" && textBuilder.Len() < e.cfg.Limits.LinkTextsMax {
				if textBuilder.Len() > 0 {
					textBuilder.WriteByte(' ')
				}
				textBuilder.WriteString(text)
			}
		}
	})

	return links, textBuilder.String(), total
}

func (e *Extractor) linkAdmitted(ctx context.Context, u *urlx.URL) bool {
	if !e.cfg.PrecheckRobotsAllowance {
		return true
	}

	allowed, err := e.robots.IsAllowed(ctx, u.Scheme, u.Host, u.Path, true)
	return err == nil && allowed
}

// snippetLadder is the ordered (quality, selector) table from which the
// first non-empty result wins.
var snippetLadder = []struct {
	quality  float64
	selector string
}{
	{1.00, "p"},
	{0.75, "b, strong, em"},
	{0.40, "i, u, big"},
	{0.15, "table"},
	{0.10, "span, div"},
	{0.05, "body"},
}

func extractSnippet(doc *goquery.Document, maxLength int) (string, float64) {
	for _, rung := range snippetLadder {
		var b strings.Builder
		doc.Find(rung.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return true
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
			return b.Len() < maxLength
		})
		if b.Len() > 0 {
			return b.String(), rung.quality
		}
	}
	return "", 0
}
