package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webcrawler/internal/extract"
	"github.com/jonesrussell/webcrawler/internal/fetcher"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/urlx"
)

type fakeCrawledSet struct {
	set map[string]struct{}
}

func (f fakeCrawledSet) Contains(canonical string) bool {
	_, ok := f.set[canonical]
	return ok
}

func newEmptyCrawledSet() fakeCrawledSet {
	return fakeCrawledSet{set: map[string]struct{}{}}
}

func newExtractor() (*extract.Extractor, *urlx.Wrapper) {
	w := urlx.New(urlx.Config{MaxLength: 2048})
	r := robots.New(&http.Client{}, "TestBot/1.0", 0, nil, 0)
	f := fetcher.New(fetcher.Config{})
	return extract.New(w, r, f, extract.DefaultConfig()), w
}

func TestProcess_ProducesRecordForSimplePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html lang="en"><title>T</title><div>Hello</div></html>`))
		}
	}))
	defer server.Close()

	e, w := newExtractor()
	u, err := w.Parse(server.URL + "/")
	require.NoError(t, err)

	outcome := e.Process(context.Background(), u, newEmptyCrawledSet())
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Record)

	assert.Equal(t, "T", outcome.Record.Title)
	assert.Equal(t, "Hello", outcome.Record.ContentSnippet)
	assert.InDelta(t, 0.10, outcome.Record.ContentSnippetQuality, 0.0001)
}

func TestProcess_AbortsOnAlreadyCrawled(t *testing.T) {
	e, w := newExtractor()
	u, err := w.Parse("https://example.com/already-seen")
	require.NoError(t, err)

	crawled := fakeCrawledSet{set: map[string]struct{}{u.Canonical: {}}}

	outcome := e.Process(context.Background(), u, crawled)
	assert.ErrorIs(t, outcome.Err, extract.ErrAlreadyCrawled)
	assert.Nil(t, outcome.Record)
}

func TestProcess_AbortsOnRobotsDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><title>T</title><p>hi</p></html>`))
	}))
	defer server.Close()

	e, w := newExtractor()
	u, err := w.Parse(server.URL + "/blocked")
	require.NoError(t, err)

	outcome := e.Process(context.Background(), u, newEmptyCrawledSet())
	assert.ErrorIs(t, outcome.Err, extract.ErrRobotsDenied)
	assert.Equal(t, []string{u.Canonical}, outcome.FetchedURLs)
}

func TestProcess_AbortsOnMetaRobotsNoindex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta name="robots" content="noindex"></head><title>T</title><p>hi</p></html>`))
	}))
	defer server.Close()

	e, w := newExtractor()
	u, err := w.Parse(server.URL + "/")
	require.NoError(t, err)

	outcome := e.Process(context.Background(), u, newEmptyCrawledSet())
	assert.ErrorIs(t, outcome.Err, extract.ErrMetaRobots)
}

func TestProcess_LanguageGateRejectsDisallowedLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html lang="fr"><title>T</title><p>Text.</p></html>`))
	}))
	defer server.Close()

	cfg := extract.DefaultConfig()
	cfg.AllowedLanguages = []string{"en"}

	w := urlx.New(urlx.Config{MaxLength: 2048})
	r := robots.New(&http.Client{}, "TestBot/1.0", 0, nil, 0)
	f := fetcher.New(fetcher.Config{})
	e := extract.New(w, r, f, cfg)

	u, err := w.Parse(server.URL + "/")
	require.NoError(t, err)

	outcome := e.Process(context.Background(), u, newEmptyCrawledSet())
	assert.ErrorIs(t, outcome.Err, extract.ErrLanguageDenied)
}

func TestProcess_DiscoversLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><title>T</title><p>hi</p><a href="/other">Other</a></html>`))
	}))
	defer server.Close()

	e, w := newExtractor()
	u, err := w.Parse(server.URL + "/")
	require.NoError(t, err)

	outcome := e.Process(context.Background(), u, newEmptyCrawledSet())
	require.NoError(t, outcome.Err)
	require.Len(t, outcome.NewLinks, 1)
	assert.Equal(t, 1, outcome.Record.TotalLinksCount)
	assert.Equal(t, "Other", outcome.Record.LinkTexts)
}
