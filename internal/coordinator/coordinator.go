// Package coordinator runs the crawler's batch loop: slice the queue across
// workers, join them, deduplicate and merge their output into the shared
// state, and persist.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/webcrawler/internal/extract"
	"github.com/jonesrussell/webcrawler/internal/logger"
	"github.com/jonesrussell/webcrawler/internal/page"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/state"
	"github.com/jonesrussell/webcrawler/internal/store"
	"github.com/jonesrussell/webcrawler/internal/urlx"
	"github.com/jonesrussell/webcrawler/internal/worker"
)

// Config controls batch sizing and pacing.
type Config struct {
	Threads       int
	BatchSize     int
	MaxQueueSize  int
	BatchInterval time.Duration
}

// ErrQueueExhausted is the terminal condition that ends the main loop: the
// queue was empty at slice time, so zero workers were started.
var ErrQueueExhausted = errors.New("coordinator: crawl queue exhausted")

// Coordinator runs one batch at a time. It is not safe for concurrent use —
// only the main loop drives it.
type Coordinator struct {
	state     *state.State
	store     *store.Store
	urls      *urlx.Wrapper
	extractor *extract.Extractor
	robots    *robots.Cache
	cfg       Config
	log       logger.Interface
	runID     string
}

// New builds a Coordinator. The run ID identifies this process's crawl in
// logs.
func New(
	st *state.State,
	persist *store.Store,
	urls *urlx.Wrapper,
	extractor *extract.Extractor,
	robotsCache *robots.Cache,
	cfg Config,
	log logger.Interface,
) *Coordinator {
	return &Coordinator{
		state:     st,
		store:     persist,
		urls:      urls,
		extractor: extractor,
		robots:    robotsCache,
		cfg:       cfg,
		log:       log,
		runID:     uuid.NewString(),
	}
}

// RunBatch executes one full batch: prune, slice, spawn, join, dedup,
// merge, shuffle, truncate, persist. Returns ErrQueueExhausted when the
// queue was empty at slice time.
func (c *Coordinator) RunBatch(ctx context.Context) error {
	slices, err := c.pruneAndSlice()
	if err != nil {
		return err
	}

	if len(slices) == 0 {
		return ErrQueueExhausted
	}

	outputs := c.spawnAndJoin(ctx, slices)

	pages := c.dedupRecords(outputs)

	var newCrawledURLs, newQueue []string
	for _, out := range outputs {
		newCrawledURLs = append(newCrawledURLs, out.NewCrawledURLs...)
		newQueue = append(newQueue, out.NewCrawlQueue...)
	}

	c.state.Merge(newCrawledURLs, newQueue)

	queue := append([]string(nil), c.state.Queue()...)
	shuffle(queue)
	if len(queue) > c.cfg.MaxQueueSize {
		queue = queue[:c.cfg.MaxQueueSize]
	}
	c.state.SetQueue(queue)

	if err := c.persist(pages); err != nil {
		return fmt.Errorf("coordinator: persist: %w", err)
	}

	c.log.Info("batch complete",
		"run_id", c.runID,
		"workers", len(slices),
		"pages", len(pages),
		"crawled_total", c.state.Len(),
		"queue_size", len(queue),
	)

	return nil
}

// pruneAndSlice re-wraps every queue URL, drops those already crawled or
// unparseable, then carves the remainder into up to cfg.Threads slices of
// cfg.BatchSize URLs each. The sliced URLs are taken off the queue; the
// rest stay queued.
func (c *Coordinator) pruneAndSlice() ([][]*urlx.URL, error) {
	var pruned []*urlx.URL

	for _, raw := range c.state.Queue() {
		u, err := c.urls.Parse(raw)
		if err != nil {
			continue
		}
		if c.state.Contains(u.Canonical) {
			continue
		}
		pruned = append(pruned, u)
	}

	var slices [][]*urlx.URL
	for len(pruned) > 0 && len(slices) < c.cfg.Threads {
		n := c.cfg.BatchSize
		if n > len(pruned) {
			n = len(pruned)
		}
		slices = append(slices, pruned[:n])
		pruned = pruned[n:]
	}

	remaining := make([]string, 0, len(pruned))
	for _, u := range pruned {
		remaining = append(remaining, u.Raw)
	}
	c.state.SetQueue(remaining)

	return slices, nil
}

func (c *Coordinator) spawnAndJoin(ctx context.Context, slices [][]*urlx.URL) []worker.Output {
	outputs := make([]worker.Output, len(slices))

	var wg sync.WaitGroup
	for i, slice := range slices {
		wg.Add(1)
		go func(i int, slice []*urlx.URL) {
			defer wg.Done()
			w := worker.New(i, slice, c.extractor, c.robots, c.log.WithComponent(fmt.Sprintf("worker-%d", i)))
			outputs[i] = w.Run(ctx, c.state)
		}(i, slice)
	}
	wg.Wait()

	return outputs
}

// dedupRecords drops any record whose original or final canonical URL was
// already crawled before this batch, or collides with more than one record
// produced within this batch (redirect collisions).
func (c *Coordinator) dedupRecords(outputs []worker.Output) []*page.Record {
	counts := make(map[string]int)
	var all []*page.Record

	for _, out := range outputs {
		for _, rec := range out.CrawledPages {
			counts[rec.OriginalCanonicalURL]++
			if rec.FinalCanonicalURL != rec.OriginalCanonicalURL {
				counts[rec.FinalCanonicalURL]++
			}
			all = append(all, rec)
		}
	}

	var kept []*page.Record
	for _, rec := range all {
		if c.state.Contains(rec.OriginalCanonicalURL) || c.state.Contains(rec.FinalCanonicalURL) {
			continue
		}
		if counts[rec.OriginalCanonicalURL] > 1 || counts[rec.FinalCanonicalURL] > 1 {
			continue
		}
		kept = append(kept, rec)
	}

	return kept
}

func (c *Coordinator) persist(pages []*page.Record) error {
	if err := c.store.PersistCrawledURLs(c.state.CrawledURLs()); err != nil {
		return err
	}
	if err := c.store.PersistCrawlQueue(c.state.Queue()); err != nil {
		return err
	}
	return c.store.AppendPages(pages)
}

func shuffle(urls []string) {
	rand.Shuffle(len(urls), func(i, j int) {
		urls[i], urls[j] = urls[j], urls[i]
	})
}
