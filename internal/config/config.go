// Package config loads crawler configuration from defaults, an optional
// YAML file, environment variables and command-line flags, in that order
// of increasing precedence — the same layering the crawler's ancestor CLI
// used, via spf13/viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/webcrawler/internal/logger"
)

// Config holds every recognized crawler option from the startup-constants
// table: thread/batch sizing, byte caps, filters, field maxima and identity
// strings.
//
// RobotsAlwaysAllowURLs entries are compared with the request host only
// (e.g. "example.com"); an entry that carries a path never matches.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	CrawlerThreads       int           `mapstructure:"crawler_threads"`
	CrawlThreadBatchSize int           `mapstructure:"crawl_thread_batch_size"`
	MaxCrawlQueueSize    int           `mapstructure:"max_crawl_queue_size"`
	BatchInterval        time.Duration `mapstructure:"batch_interval"`

	MaxPageFetchSize      int64         `mapstructure:"max_page_fetch_size"`
	MaxRobotsFetchSize    int64         `mapstructure:"max_robots_fetch_size"`
	MaxRobotsCacheEntries int           `mapstructure:"max_robots_cache_entries"`
	HTTPRequestTimeout    time.Duration `mapstructure:"http_request_timeout"`
	MaxRedirects          int           `mapstructure:"max_redirects"`
	MaxRetries            int           `mapstructure:"max_retries"`

	HostnameFilter            string   `mapstructure:"hostname_filter"`
	PathFilter                string   `mapstructure:"path_filter"`
	FilteredFileExtensions    []string `mapstructure:"filtered_file_extensions"`
	CrawlMobilePages          bool     `mapstructure:"crawl_mobile_pages"`
	AllowedLanguages          []string `mapstructure:"allowed_languages"`
	AllowedWikipediaLanguages []string `mapstructure:"allowed_wikipedia_languages"`
	RobotsAlwaysAllowURLs     []string `mapstructure:"robots_txt_always_allow_urls"`
	PrecheckRobotsAllowance   bool     `mapstructure:"precheck_robots_allowance_of_crawled_links"`

	Proxies            []string `mapstructure:"proxies"`
	UserAgent          string   `mapstructure:"user_agent"`
	RobotsTxtUserAgent string   `mapstructure:"robots_txt_user_agent"`
	StartURLs          []string `mapstructure:"start_urls"`
	URLMaxLength       int      `mapstructure:"url_max_length"`

	LogRelayAddr string `mapstructure:"log_relay_addr"`

	FieldMax FieldMaxConfig `mapstructure:"field_max"`

	Log LogConfig `mapstructure:"logger"`
}

// FieldMaxConfig is the PAGE_*_MAX_LENGTH family.
type FieldMaxConfig struct {
	Title               int `mapstructure:"title"`
	Description         int `mapstructure:"description"`
	Keywords            int `mapstructure:"keywords"`
	Author              int `mapstructure:"author"`
	Heading             int `mapstructure:"heading"`
	ContentSnippet      int `mapstructure:"content_snippet"`
	ImageAlts           int `mapstructure:"image_alts"`
	LinkTexts           int `mapstructure:"link_texts"`
	HeadingLevel        int `mapstructure:"heading_level"`
	HeadingsPerLevel    int `mapstructure:"headings_per_level"`
	CrawledLinksPerPage int `mapstructure:"crawled_links_per_page"`
}

// LogConfig mirrors internal/logger.Config in viper-friendly tag shape.
type LogConfig struct {
	Level       logger.Level `mapstructure:"level"`
	Development bool         `mapstructure:"development"`
	Encoding    string       `mapstructure:"encoding"`
	OutputPaths []string     `mapstructure:"output_paths"`
}

// Load reads defaults, then the optional YAML file at path (if non-empty),
// then environment variables (CRAWLER_* etc., with "." replaced by "_"),
// into a Config. Flags must already be bound to v by the caller.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")

	v.SetDefault("crawler_threads", 4)
	v.SetDefault("crawl_thread_batch_size", 10)
	v.SetDefault("max_crawl_queue_size", 10000)
	v.SetDefault("batch_interval", "0s")

	v.SetDefault("max_page_fetch_size", 5*1024*1024)
	v.SetDefault("max_robots_fetch_size", 512*1024)
	v.SetDefault("max_robots_cache_entries", 1000)
	v.SetDefault("http_request_timeout", "30s")
	v.SetDefault("max_redirects", 10)
	v.SetDefault("max_retries", 3)

	v.SetDefault("hostname_filter", "")
	v.SetDefault("path_filter", "")
	v.SetDefault("filtered_file_extensions", []string{
		"pdf", "zip", "exe", "dmg", "mp3", "mp4", "avi", "mov", "jpg", "jpeg", "png", "gif",
	})
	v.SetDefault("crawl_mobile_pages", false)
	v.SetDefault("allowed_languages", []string{})
	v.SetDefault("allowed_wikipedia_languages", []string{})
	v.SetDefault("robots_txt_always_allow_urls", []string{})
	v.SetDefault("precheck_robots_allowance_of_crawled_links", false)

	v.SetDefault("proxies", []string{})
	v.SetDefault("user_agent", "webcrawler/1.0")
	v.SetDefault("robots_txt_user_agent", "webcrawler/1.0")
	v.SetDefault("start_urls", []string{})
	v.SetDefault("url_max_length", 2048)

	v.SetDefault("log_relay_addr", "")

	v.SetDefault("field_max", map[string]any{
		"title":                  200,
		"description":            500,
		"keywords":               300,
		"author":                 200,
		"heading":                200,
		"content_snippet":        1000,
		"image_alts":             1000,
		"link_texts":             2000,
		"heading_level":          6,
		"headings_per_level":     10,
		"crawled_links_per_page": 100,
	})

	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "console",
		"output_paths": []string{"stdout"},
	})
}

// HostnameFilterRegexp compiles HostnameFilter, returning nil if it is empty.
func (c *Config) HostnameFilterRegexp() (*regexp.Regexp, error) {
	return compileOptional(c.HostnameFilter)
}

// PathFilterRegexp compiles PathFilter, returning nil if it is empty.
func (c *Config) PathFilterRegexp() (*regexp.Regexp, error) {
	return compileOptional(c.PathFilter)
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("config: compile regex %q: %w", pattern, err)
	}
	return re, nil
}
