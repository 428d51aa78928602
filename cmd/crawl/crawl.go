// Package crawl wires the crawl command: configuration, logging, the
// canonicalizer/robots/fetcher/extractor stack, persisted state and the
// batch coordinator.
package crawl

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/webcrawler/internal/config"
	"github.com/jonesrussell/webcrawler/internal/coordinator"
	"github.com/jonesrussell/webcrawler/internal/extract"
	"github.com/jonesrussell/webcrawler/internal/fetcher"
	"github.com/jonesrussell/webcrawler/internal/logger"
	"github.com/jonesrussell/webcrawler/internal/logrelay"
	"github.com/jonesrussell/webcrawler/internal/page"
	"github.com/jonesrussell/webcrawler/internal/robots"
	"github.com/jonesrussell/webcrawler/internal/signalstop"
	"github.com/jonesrussell/webcrawler/internal/state"
	"github.com/jonesrussell/webcrawler/internal/store"
	"github.com/jonesrussell/webcrawler/internal/urlx"
)

// Command returns the "crawl" subcommand: load configuration, wire every
// component and run the batch loop until the queue is exhausted or a
// termination signal is received.
func Command(v *viper.Viper, cfgFile *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run the crawler until the queue is exhausted or stopped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}
			if *debug {
				cfg.Log.Level = logger.DebugLevel
				cfg.Log.Development = true
			}

			log, err := logger.New(&logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				Encoding:    cfg.Log.Encoding,
				OutputPaths: cfg.Log.OutputPaths,
			})
			if err != nil {
				return fmt.Errorf("crawl: build logger: %w", err)
			}

			if cfg.LogRelayAddr != "" {
				relay, err := logrelay.Listen(cfg.LogRelayAddr)
				if err != nil {
					return fmt.Errorf("crawl: start log relay: %w", err)
				}
				defer relay.Close()
				log.Info("log relay listening", "addr", relay.Addr())
			}

			c, err := build(cfg, log)
			if err != nil {
				return err
			}

			stop, unwatch := signalstop.Watch()
			defer unwatch()

			if err := c.Run(cmd.Context(), stop); err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			return nil
		},
	}
}

func build(cfg *config.Config, log logger.Interface) (*coordinator.Coordinator, error) {
	hostnameFilter, err := cfg.HostnameFilterRegexp()
	if err != nil {
		return nil, err
	}
	pathFilter, err := cfg.PathFilterRegexp()
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]struct{}, len(cfg.FilteredFileExtensions))
	for _, ext := range cfg.FilteredFileExtensions {
		extensions[ext] = struct{}{}
	}

	urls := urlx.New(urlx.Config{
		MaxLength:                 cfg.URLMaxLength,
		HostnameFilter:            hostnameFilter,
		PathFilter:                pathFilter,
		FilteredExtensions:        extensions,
		AllowMobile:               cfg.CrawlMobilePages,
		AllowedWikipediaLanguages: cfg.AllowedWikipediaLanguages,
	})

	robotsCache := robots.New(
		&http.Client{Timeout: cfg.HTTPRequestTimeout},
		cfg.RobotsTxtUserAgent,
		cfg.MaxRobotsCacheEntries,
		cfg.RobotsAlwaysAllowURLs,
		cfg.MaxRobotsFetchSize,
	)

	f := fetcher.New(fetcher.Config{
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.HTTPRequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		MaxBodyBytes:   cfg.MaxPageFetchSize,
		MaxRedirects:   cfg.MaxRedirects,
		AllowedTypes:   []string{"text/html"},
	})

	extractor := extract.New(urls, robotsCache, f, extract.Config{
		HeadingMaxLevel:         cfg.FieldMax.HeadingLevel,
		HeadingsPerLevelMax:     cfg.FieldMax.HeadingsPerLevel,
		MaxCrawledLinksPerPage:  cfg.FieldMax.CrawledLinksPerPage,
		PrecheckRobotsAllowance: cfg.PrecheckRobotsAllowance,
		AllowedLanguages:        cfg.AllowedLanguages,
		Limits: page.Limits{
			TitleMax:          cfg.FieldMax.Title,
			DescriptionMax:    cfg.FieldMax.Description,
			KeywordsMax:       cfg.FieldMax.Keywords,
			AuthorMax:         cfg.FieldMax.Author,
			HeadingMax:        cfg.FieldMax.Heading,
			ContentSnippetMax: cfg.FieldMax.ContentSnippet,
			ImageAltsMax:      cfg.FieldMax.ImageAlts,
			LinkTextsMax:      cfg.FieldMax.LinkTexts,
		},
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("crawl: create data dir %s: %w", cfg.DataDir, err)
	}
	persist := store.New(cfg.DataDir)

	crawledURLs, err := persist.LoadCrawledURLs()
	if err != nil {
		return nil, fmt.Errorf("crawl: load crawled urls: %w", err)
	}
	queue, err := persist.LoadCrawlQueue(cfg.StartURLs)
	if err != nil {
		return nil, fmt.Errorf("crawl: load crawl queue: %w", err)
	}

	st := state.New(crawledURLs, queue)

	c := coordinator.New(st, persist, urls, extractor, robotsCache, coordinator.Config{
		Threads:       cfg.CrawlerThreads,
		BatchSize:     cfg.CrawlThreadBatchSize,
		MaxQueueSize:  cfg.MaxCrawlQueueSize,
		BatchInterval: cfg.BatchInterval,
	}, log)

	log.Info("crawler configured",
		"data_dir", filepath.Clean(cfg.DataDir),
		"threads", cfg.CrawlerThreads,
		"batch_size", cfg.CrawlThreadBatchSize,
		"queue_size", len(queue),
		"crawled_so_far", len(crawledURLs),
	)

	return c, nil
}
