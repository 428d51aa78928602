// Package worker processes one disjoint slice of the crawl queue.
//
// A worker owns its input slice and three output accumulators. It processes
// the slice sequentially — concurrency comes from the coordinator running
// several workers in parallel, never from concurrency within one worker.
package worker

import (
	"context"

	"github.com/jonesrussell/webcrawler/internal/extract"
	"github.com/jonesrussell/webcrawler/internal/logger"
	"github.com/jonesrussell/webcrawler/internal/page"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/urlx"
)

// Output collects a worker's three accumulators.
type Output struct {
	NewCrawledURLs []string       // every canonical URL actually fetched, success or not
	NewCrawlQueue  []string       // discovered links
	CrawledPages   []*page.Record // successful records
}

// Worker processes a disjoint slice of validated queue URLs.
type Worker struct {
	id        int
	slice     []*urlx.URL
	extractor *extract.Extractor
	robots    *robots.Cache
	log       logger.Interface
}

// New builds a Worker for the given slice.
func New(id int, slice []*urlx.URL, extractor *extract.Extractor, robotsCache *robots.Cache, log logger.Interface) *Worker {
	return &Worker{id: id, slice: slice, extractor: extractor, robots: robotsCache, log: log}
}

// Run processes the slice sequentially against crawled, sleeping between
// same-host fetches for the duration robots.txt's Crawl-delay requests.
func (w *Worker) Run(ctx context.Context, crawled extract.CrawledSet) Output {
	var out Output
	var lastHost string

	for _, u := range w.slice {
		if ctx.Err() != nil {
			return out
		}

		if u.Host == lastHost {
			sleepForCrawlDelay(ctx, w.robots.CrawlDelay(u.Host))
		}
		lastHost = u.Host

		outcome := w.extractor.Process(ctx, u, crawled)
		out.NewCrawledURLs = append(out.NewCrawledURLs, outcome.FetchedURLs...)

		if outcome.Err != nil {
			w.log.Debug("url aborted", "worker", w.id, "url", u.Raw, "error", outcome.Err)
			continue
		}

		out.NewCrawlQueue = append(out.NewCrawlQueue, outcome.NewLinks...)
		out.CrawledPages = append(out.CrawledPages, outcome.Record)
	}

	return out
}
