package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webcrawler/internal/extract"
	"github.com/jonesrussell/webcrawler/internal/fetcher"
	"github.com/jonesrussell/webcrawler/internal/logger"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/urlx"
	"github.com/jonesrussell/webcrawler/internal/worker"
)

type fakeCrawledSet struct{}

func (fakeCrawledSet) Contains(string) bool { return false }

func TestWorker_Run_ProcessesSliceSequentially(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><title>T</title><p>hi</p></html>`))
	}))
	defer server.Close()

	urls := urlx.New(urlx.Config{MaxLength: 2048})
	robotsCache := robots.New(&http.Client{}, "TestBot/1.0", 0, nil, 0)
	f := fetcher.New(fetcher.Config{})
	extractor := extract.New(urls, robotsCache, f, extract.DefaultConfig())

	u1, err := urls.Parse(server.URL + "/a")
	require.NoError(t, err)
	u2, err := urls.Parse(server.URL + "/b")
	require.NoError(t, err)

	w := worker.New(1, []*urlx.URL{u1, u2}, extractor, robotsCache, logger.NewNoOp())

	out := w.Run(context.Background(), fakeCrawledSet{})

	assert.Len(t, out.CrawledPages, 2)
	assert.ElementsMatch(t, []string{u1.Canonical, u2.Canonical}, out.NewCrawledURLs)
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	urls := urlx.New(urlx.Config{MaxLength: 2048})
	robotsCache := robots.New(&http.Client{}, "TestBot/1.0", 0, nil, 0)
	f := fetcher.New(fetcher.Config{})
	extractor := extract.New(urls, robotsCache, f, extract.DefaultConfig())

	u, err := urls.Parse("https://example.com/a")
	require.NoError(t, err)

	w := worker.New(1, []*urlx.URL{u}, extractor, robotsCache, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := w.Run(ctx, fakeCrawledSet{})
	assert.Empty(t, out.CrawledPages)
}
