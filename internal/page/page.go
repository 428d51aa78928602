// Package page defines the immutable result of extracting one fetched page.
package page

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// LanguageMaxLength is the hard invariant on the language tag length; it is
// not configurable, unlike the other field maxima.
const LanguageMaxLength = 10

// Limits holds the field-specific maximum lengths enforced at construction.
// Every text field is whitespace-normalized and truncated to its maximum
// before the final strip.
type Limits struct {
	TitleMax          int
	DescriptionMax    int
	KeywordsMax       int
	AuthorMax         int
	HeadingMax        int
	ContentSnippetMax int
	ImageAltsMax      int
	LinkTextsMax      int
}

// DefaultLimits returns reasonable field maxima in the absence of explicit
// configuration.
func DefaultLimits() Limits {
	return Limits{
		TitleMax:          200,
		DescriptionMax:    500,
		KeywordsMax:       300,
		AuthorMax:         200,
		HeadingMax:        200,
		ContentSnippetMax: 1000,
		ImageAltsMax:      1000,
		LinkTextsMax:      2000,
	}
}

// Fields are the raw, not-yet-normalized values gathered by the extractor.
type Fields struct {
	OriginalURL           string
	OriginalCanonicalURL  string
	FinalURL              string
	FinalCanonicalURL     string
	WasRedirected         bool
	CrawlTimestamp        int64
	Language              string
	Title                 string
	Headings              map[int][]string
	Description           string
	Keywords              string
	Author                string
	ContentSnippet        string
	ContentSnippetQuality float64
	ImageAlts             string
	LinkTexts             string
	TotalLinksCount       int
}

// Record is an immutable, validated page record.
type Record struct {
	OriginalURL           string
	OriginalCanonicalURL  string
	FinalURL              string
	FinalCanonicalURL     string
	WasRedirected         bool
	CrawlTimestamp        int64
	Language              string
	Title                 string
	Headings              map[int][]string
	Description           string
	Keywords              string
	Author                string
	ContentSnippet        string
	ContentSnippetQuality float64
	ImageAlts             string
	LinkTexts             string
	TotalLinksCount       int
}

// Errors returned when an invariant is violated; construction fails with
// one of these rather than returning a partially valid Record.
var (
	ErrTitleEmpty          = errors.New("page: title is empty after normalization")
	ErrContentSnippetEmpty = errors.New("page: content snippet is empty after normalization")
	ErrLanguageTooLong     = fmt.Errorf("page: language tag exceeds %d characters", LanguageMaxLength)
	ErrQualityOutOfRange   = errors.New("page: content snippet quality must be in [0,1]")
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize collapses whitespace runs to a single space, truncates to max
// runes, then strips leading/trailing space left by the truncation.
func normalize(s string, max int) string {
	collapsed := strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if max > 0 {
		runes := []rune(collapsed)
		if len(runes) > max {
			collapsed = string(runes[:max])
		}
	}
	return strings.TrimSpace(collapsed)
}

func normalizeHeadings(headings map[int][]string, max int) map[int][]string {
	if headings == nil {
		return nil
	}

	out := make(map[int][]string, len(headings))
	for level, texts := range headings {
		normalized := make([]string, 0, len(texts))
		for _, text := range texts {
			if n := normalize(text, max); n != "" {
				normalized = append(normalized, n)
			}
		}
		out[level] = normalized
	}

	return out
}

// New normalizes fields and enforces §3 invariants, returning a construction
// error if any invariant is violated.
func New(f Fields, limits Limits) (*Record, error) {
	title := normalize(f.Title, limits.TitleMax)
	if title == "" {
		return nil, ErrTitleEmpty
	}

	snippet := normalize(f.ContentSnippet, limits.ContentSnippetMax)
	if snippet == "" {
		return nil, ErrContentSnippetEmpty
	}

	language := normalize(f.Language, 0)
	if len([]rune(language)) > LanguageMaxLength {
		return nil, ErrLanguageTooLong
	}

	if f.ContentSnippetQuality < 0 || f.ContentSnippetQuality > 1 {
		return nil, ErrQualityOutOfRange
	}

	return &Record{
		OriginalURL:           f.OriginalURL,
		OriginalCanonicalURL:  f.OriginalCanonicalURL,
		FinalURL:              f.FinalURL,
		FinalCanonicalURL:     f.FinalCanonicalURL,
		WasRedirected:         f.WasRedirected,
		CrawlTimestamp:        f.CrawlTimestamp,
		Language:              language,
		Title:                 title,
		Headings:              normalizeHeadings(f.Headings, limits.HeadingMax),
		Description:           normalize(f.Description, limits.DescriptionMax),
		Keywords:              normalize(f.Keywords, limits.KeywordsMax),
		Author:                normalize(f.Author, limits.AuthorMax),
		ContentSnippet:        snippet,
		ContentSnippetQuality: f.ContentSnippetQuality,
		ImageAlts:             normalize(f.ImageAlts, limits.ImageAltsMax),
		LinkTexts:             normalize(f.LinkTexts, limits.LinkTextsMax),
		TotalLinksCount:       f.TotalLinksCount,
	}, nil
}
