// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/extractor"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Listing    ListingConfig    `mapstructure:"listing"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ListingConfig locates the listing and the markup inside it.
type ListingConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	ForumID           string `mapstructure:"forum_id"`
	SiteRoot          string `mapstructure:"site_root"`
	ResourceBaseURL   string `mapstructure:"resource_base_url"`
	RowSelector       string `mapstructure:"row_selector"`
	TitleSelector     string `mapstructure:"title_selector"`
	PublisherSelector string `mapstructure:"publisher_selector"`
}

// CrawlConfig governs the page range and orchestration.
type CrawlConfig struct {
	StartPage    int           `mapstructure:"start_page"`
	EndPage      int           `mapstructure:"end_page"`
	Concurrency  int           `mapstructure:"concurrency"`
	MinPageDelay time.Duration `mapstructure:"min_page_delay"`
	MaxPageDelay time.Duration `mapstructure:"max_page_delay"`
	Warmup       bool          `mapstructure:"warmup"`
}

// HTTPConfig configures transport, retries and header profiles.
type HTTPConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout"`
	MaxRetries        int               `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration     `mapstructure:"retry_base_delay"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Burst             int               `mapstructure:"burst"`
	RespectRobots     bool              `mapstructure:"respect_robots"`
	PageHeaders       map[string]string `mapstructure:"page_headers"`
	ResourceHeaders   map[string]string `mapstructure:"resource_headers"`
}

// StorageConfig sets the CSV path and the optional Postgres mirror.
type StorageConfig struct {
	CSVPath  string         `mapstructure:"csv_path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the record mirror table.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// CheckpointConfig selects the commit threshold and publishers.
type CheckpointConfig struct {
	Threshold  int           `mapstructure:"threshold"`
	Publishers []string      `mapstructure:"publishers"`
	Git        GitConfig     `mapstructure:"git"`
	GCS        GCSConfig     `mapstructure:"gcs"`
	PubSub     PubSubConfig  `mapstructure:"pubsub"`
	Journal    JournalConfig `mapstructure:"journal"`
}

// GitConfig drives the git publisher.
type GitConfig struct {
	Dir        string `mapstructure:"dir"`
	RemotePush bool   `mapstructure:"remote_push"`
	LFS        bool   `mapstructure:"lfs"`
}

// GCSConfig names the snapshot bucket.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for checkpoint notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// JournalConfig points at the SQLite commit journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig enables the status/metrics HTTP server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig enables OpenTelemetry spans, exported to the log.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Publisher names accepted in checkpoint.publishers.
const (
	PublisherGit     = "git"
	PublisherGCS     = "gcs"
	PublisherPubSub  = "pubsub"
	PublisherJournal = "journal"
	PublisherLog     = "log"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

const defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp," +
	"image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"

// legacyEnv binds the bare environment names used by older deployments.
var legacyEnv = map[string]string{
	"listing.base_url": "FORUM_URL",
	"listing.forum_id": "FORUM_ID",
	"storage.csv_path": "CSV_FILE",
	"crawl.start_page": "START_PAGE",
	"crawl.end_page":   "END_PAGE",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// New returns a Viper instance with env bindings and defaults applied.
// Callers may bind CLI flags onto it before calling FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key, "CRAWLER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	setDefaults(v)
	return v
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.base_url", "https://forum.example.com/forum-1670/")
	v.SetDefault("listing.forum_id", "1670")
	v.SetDefault("listing.site_root", "")
	v.SetDefault("listing.resource_base_url", "https://files.example.com/torrent/files/")
	v.SetDefault("listing.row_selector", extractor.DefaultRowSelector)
	v.SetDefault("listing.title_selector", extractor.DefaultTitleSelector)
	v.SetDefault("listing.publisher_selector", extractor.DefaultPublisherSelector)
	v.SetDefault("crawl.start_page", 283)
	v.SetDefault("crawl.end_page", 1)
	v.SetDefault("crawl.concurrency", 5)
	v.SetDefault("crawl.min_page_delay", 500*time.Millisecond)
	v.SetDefault("crawl.max_page_delay", 1500*time.Millisecond)
	v.SetDefault("crawl.warmup", true)
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.max_retries", crawler.DefaultMaxRetries)
	v.SetDefault("http.retry_base_delay", crawler.DefaultRetryBaseDelay)
	v.SetDefault("http.requests_per_second", 0.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.page_headers", defaultPageHeaders())
	v.SetDefault("http.resource_headers", defaultResourceHeaders())
	v.SetDefault("storage.csv_path", "")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "listing_records")
	v.SetDefault("checkpoint.threshold", 1000)
	v.SetDefault("checkpoint.publishers", []string{PublisherGit})
	v.SetDefault("checkpoint.git.dir", ".")
	v.SetDefault("checkpoint.git.remote_push", true)
	v.SetDefault("checkpoint.git.lfs", true)
	v.SetDefault("checkpoint.gcs.bucket", "")
	v.SetDefault("checkpoint.gcs.prefix", "snapshots")
	v.SetDefault("checkpoint.pubsub.project_id", "")
	v.SetDefault("checkpoint.pubsub.topic_id", "")
	v.SetDefault("checkpoint.journal.path", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "listing-crawler")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

func defaultPageHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                defaultUserAgent,
		"Accept":                    defaultAccept,
		"Accept-Language":           "en,zh-CN;q=0.9,zh;q=0.8",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Ch-Ua":                 `"Chromium";v="135", "Not-A.Brand";v="8"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"macOS"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"DNT":                       "1",
	}
}

func defaultResourceHeaders() map[string]string {
	h := defaultPageHeaders()
	h["Sec-Fetch-Site"] = "none"
	h["Priority"] = "u=0, i"
	return h
}

// applyDerived fills values computed from other keys.
func (c *Config) applyDerived() {
	if c.Storage.CSVPath == "" {
		c.Storage.CSVPath = c.Listing.ForumID + ".csv"
	}
	if c.Listing.SiteRoot == "" {
		if root, err := crawler.SiteRoot(c.Listing.BaseURL); err == nil {
			c.Listing.SiteRoot = root
		}
	}
	for i, name := range c.Checkpoint.Publishers {
		c.Checkpoint.Publishers[i] = strings.ToLower(strings.TrimSpace(name))
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if _, err := crawler.NormalizeBaseURL(c.Listing.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("listing.base_url: %w", err))
	}
	if c.Listing.ResourceBaseURL == "" {
		errs = append(errs, errors.New("listing.resource_base_url must be set"))
	}
	if err := c.Range().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("crawl range: %w", err))
	}
	if c.Crawl.Concurrency <= 0 {
		errs = append(errs, errors.New("crawl.concurrency must be > 0"))
	}
	if c.Crawl.MinPageDelay < 0 || c.Crawl.MaxPageDelay < c.Crawl.MinPageDelay {
		errs = append(errs, errors.New("crawl.max_page_delay must be >= crawl.min_page_delay >= 0"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be > 0"))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, errors.New("http.max_retries must be >= 0"))
	}
	if c.HTTP.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("http.requests_per_second must be >= 0"))
	}
	if c.Storage.CSVPath == "" {
		errs = append(errs, errors.New("storage.csv_path must be set"))
	}
	if c.Checkpoint.Threshold <= 0 {
		errs = append(errs, errors.New("checkpoint.threshold must be > 0"))
	}
	for _, name := range c.Checkpoint.Publishers {
		switch name {
		case PublisherGit, PublisherLog:
		case PublisherGCS:
			if c.Checkpoint.GCS.Bucket == "" {
				errs = append(errs, errors.New("checkpoint.gcs.bucket must be set when the gcs publisher is enabled"))
			}
		case PublisherPubSub:
			if c.Checkpoint.PubSub.ProjectID == "" || c.Checkpoint.PubSub.TopicID == "" {
				errs = append(errs, errors.New("checkpoint.pubsub.project_id and topic_id must be set when the pubsub publisher is enabled"))
			}
		case PublisherJournal:
			if c.Checkpoint.Journal.Path == "" {
				errs = append(errs, errors.New("checkpoint.journal.path must be set when the journal publisher is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("checkpoint.publishers: unknown publisher %q", name))
		}
	}
	return errors.Join(errs...)
}

// Range returns the configured page range.
func (c Config) Range() crawler.CrawlRange {
	return crawler.CrawlRange{Start: c.Crawl.StartPage, End: c.Crawl.EndPage}
}

// PageProfile is the identity used for listing pages and the warm-up request.
func (c Config) PageProfile() crawler.Profile {
	h := headerSet(c.HTTP.PageHeaders)
	if h.Get("Referer") == "" && c.Listing.SiteRoot != "" {
		h.Set("Referer", c.Listing.SiteRoot)
	}
	return crawler.Profile{Name: "page", Headers: h}
}

// ResourceProfile is the identity used for resource downloads.
func (c Config) ResourceProfile() crawler.Profile {
	return crawler.Profile{Name: "resource", Headers: headerSet(c.HTTP.ResourceHeaders)}
}

// headerSet canonicalizes keys; Viper lowercases map keys on load.
func headerSet(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
