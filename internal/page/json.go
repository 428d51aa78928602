package page

import (
	"encoding/json"
	"strconv"
)

// jsonRecord mirrors Record with the exact key names the web index persists.
type jsonRecord struct {
	OriginalURL           string              `json:"original_url"`
	FinalURL              string              `json:"final_url"`
	OriginalCanonicalURL  string              `json:"original_canonical_url"`
	FinalCanonicalURL     string              `json:"final_canonical_url"`
	CrawlTimestamp        int64               `json:"crawl_timestamp"`
	Language              string              `json:"language"`
	Title                 string              `json:"title"`
	Headings              map[string][]string `json:"headings"`
	Description           string              `json:"description"`
	Keywords              string              `json:"keywords"`
	Author                string              `json:"author"`
	ContentSnippet        string              `json:"content_snippet"`
	ContentSnippetQuality float64             `json:"content_snippet_quality"`
	ImageAlts             string              `json:"image_alts"`
	LinkTexts             string              `json:"link_texts"`
	TotalLinksCount       int                 `json:"total_links_count"`
}

// MarshalJSON renders the web-index row shape from §6: headings map keys
// come out as strings ("1", "2", ...) since JSON object keys are always
// strings.
func (r *Record) MarshalJSON() ([]byte, error) {
	headings := make(map[string][]string, len(r.Headings))
	for level, texts := range r.Headings {
		headings[strconv.Itoa(level)] = texts
	}

	return json.Marshal(jsonRecord{
		OriginalURL:           r.OriginalURL,
		FinalURL:              r.FinalURL,
		OriginalCanonicalURL:  r.OriginalCanonicalURL,
		FinalCanonicalURL:     r.FinalCanonicalURL,
		CrawlTimestamp:        r.CrawlTimestamp,
		Language:              r.Language,
		Title:                 r.Title,
		Headings:              headings,
		Description:           r.Description,
		Keywords:              r.Keywords,
		Author:                r.Author,
		ContentSnippet:        r.ContentSnippet,
		ContentSnippetQuality: r.ContentSnippetQuality,
		ImageAlts:             r.ImageAlts,
		LinkTexts:             r.LinkTexts,
		TotalLinksCount:       r.TotalLinksCount,
	})
}
