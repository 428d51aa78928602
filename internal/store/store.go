// Package store persists crawl state to CSV files: the crawled-URL set and
// pending queue are overwritten each batch; the web index is append-only.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/webcrawler/internal/page"
)

const (
	crawledURLsFile = "crawled_urls.csv"
	crawlQueueFile  = "crawl_queue.csv"
	webIndexFile    = "web_index.csv"
)

// Store reads and writes the crawler's CSV files under a single directory.
type Store struct {
	dir string
}

// New builds a Store rooted at dir. The directory is not created here;
// callers ensure it exists before the first persist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadCrawledURLs reads crawled_urls.csv. A missing file returns an empty
// slice, not an error — a fresh crawl has none yet.
func (s *Store) LoadCrawledURLs() ([]string, error) {
	return s.loadSingleColumn(crawledURLsFile)
}

// LoadCrawlQueue reads crawl_queue.csv, falling back to seedURLs when the
// file is missing or empty (a fresh crawl's seed set).
func (s *Store) LoadCrawlQueue(seedURLs []string) ([]string, error) {
	rows, err := s.loadSingleColumn(crawlQueueFile)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return append([]string(nil), seedURLs...), nil
	}
	return rows, nil
}

func (s *Store) loadSingleColumn(name string) ([]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", name, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", name, err)
	}

	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			values = append(values, row[0])
		}
	}

	return values, nil
}

// PersistCrawledURLs overwrites crawled_urls.csv.
func (s *Store) PersistCrawledURLs(urls []string) error {
	return s.overwriteSingleColumn(crawledURLsFile, urls)
}

// PersistCrawlQueue overwrites crawl_queue.csv.
func (s *Store) PersistCrawlQueue(urls []string) error {
	return s.overwriteSingleColumn(crawlQueueFile, urls)
}

func (s *Store) overwriteSingleColumn(name string, values []string) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("store: create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, v := range values {
		if err := w.Write([]string{v}); err != nil {
			return fmt.Errorf("store: write %s: %w", name, err)
		}
	}
	w.Flush()

	return w.Error()
}

// AppendPages appends each record as a JSON-encoded row to web_index.csv.
func (s *Store) AppendPages(records []*page.Record) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(s.dir, webIndexFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", webIndexFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("store: marshal record: %w", err)
		}
		if err := w.Write([]string{string(raw)}); err != nil {
			return fmt.Errorf("store: write %s: %w", webIndexFile, err)
		}
	}
	w.Flush()

	return w.Error()
}
