package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.StartPage != 283 || cfg.Crawl.EndPage != 1 {
		t.Fatalf("unexpected range %d..%d", cfg.Crawl.StartPage, cfg.Crawl.EndPage)
	}
	if cfg.Crawl.Concurrency != 5 {
		t.Fatalf("expected concurrency 5, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.MinPageDelay != 500*time.Millisecond || cfg.Crawl.MaxPageDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected page delay window %s..%s", cfg.Crawl.MinPageDelay, cfg.Crawl.MaxPageDelay)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", cfg.HTTP.Timeout)
	}
	if cfg.Storage.CSVPath != "1670.csv" {
		t.Fatalf("expected csv path derived from forum id, got %q", cfg.Storage.CSVPath)
	}
	if cfg.Listing.SiteRoot != "https://forum.example.com/" {
		t.Fatalf("expected derived site root, got %q", cfg.Listing.SiteRoot)
	}
	if cfg.Checkpoint.Threshold != 1000 {
		t.Fatalf("expected threshold 1000, got %d", cfg.Checkpoint.Threshold)
	}
	if len(cfg.Checkpoint.Publishers) != 1 || cfg.Checkpoint.Publishers[0] != PublisherGit {
		t.Fatalf("expected git publisher by default, got %v", cfg.Checkpoint.Publishers)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
listing:
  base_url: https://listing.test/forum-7
  forum_id: "7"
  resource_base_url: https://files.test/t/
crawl:
  start_page: 1
  end_page: 20
  concurrency: 3
  min_page_delay: 100ms
  max_page_delay: 200ms
  warmup: false
http:
  timeout: 3s
  max_retries: 5
  retry_base_delay: 50ms
  requests_per_second: 2.5
  page_headers:
    user-agent: test-agent
storage:
  csv_path: out/records.csv
checkpoint:
  threshold: 50
  publishers: [" Log ", journal]
  journal:
    path: journal.db
metrics:
  addr: ":9100"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Range().Descending() {
		t.Fatal("expected ascending range")
	}
	if cfg.Crawl.Concurrency != 3 || cfg.Crawl.Warmup {
		t.Fatalf("unexpected crawl config %+v", cfg.Crawl)
	}
	if cfg.HTTP.Timeout != 3*time.Second || cfg.HTTP.RetryBaseDelay != 50*time.Millisecond {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
	if cfg.HTTP.RequestsPerSecond != 2.5 {
		t.Fatalf("expected 2.5 rps, got %v", cfg.HTTP.RequestsPerSecond)
	}
	if cfg.Storage.CSVPath != "out/records.csv" {
		t.Fatalf("unexpected csv path %q", cfg.Storage.CSVPath)
	}
	if got := strings.Join(cfg.Checkpoint.Publishers, ","); got != "log,journal" {
		t.Fatalf("unexpected publishers %q", got)
	}
	if cfg.Metrics.Addr != ":9100" || cfg.Logging.Development {
		t.Fatalf("unexpected metrics/logging %+v %+v", cfg.Metrics, cfg.Logging)
	}
	if ua := cfg.PageProfile().Headers.Get("User-Agent"); ua != "test-agent" {
		t.Fatalf("expected page profile user agent override, got %q", ua)
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("FORUM_URL", "https://legacy.test/forum-9/")
	t.Setenv("FORUM_ID", "9")
	t.Setenv("START_PAGE", "12")
	t.Setenv("END_PAGE", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listing.BaseURL != "https://legacy.test/forum-9/" {
		t.Fatalf("unexpected base url %q", cfg.Listing.BaseURL)
	}
	if cfg.Storage.CSVPath != "9.csv" {
		t.Fatalf("unexpected csv path %q", cfg.Storage.CSVPath)
	}
	if cfg.Crawl.StartPage != 12 || cfg.Crawl.EndPage != 2 {
		t.Fatalf("unexpected range %d..%d", cfg.Crawl.StartPage, cfg.Crawl.EndPage)
	}
}

func TestPrefixedEnvironmentWinsOverLegacy(t *testing.T) {
	t.Setenv("CRAWLER_CRAWL_START_PAGE", "40")
	t.Setenv("START_PAGE", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.StartPage != 40 {
		t.Fatalf("expected prefixed env to win, got %d", cfg.Crawl.StartPage)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad base url", func(c *Config) { c.Listing.BaseURL = "ftp://x" }, "listing.base_url"},
		{"page zero", func(c *Config) { c.Crawl.EndPage = 0 }, "crawl range"},
		{"concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }, "crawl.concurrency"},
		{"delay window", func(c *Config) { c.Crawl.MaxPageDelay = 0 }, "max_page_delay"},
		{"timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"threshold", func(c *Config) { c.Checkpoint.Threshold = 0 }, "checkpoint.threshold"},
		{"unknown publisher", func(c *Config) { c.Checkpoint.Publishers = []string{"ftp"} }, "unknown publisher"},
		{"gcs bucket", func(c *Config) { c.Checkpoint.Publishers = []string{PublisherGCS} }, "gcs.bucket"},
		{"pubsub ids", func(c *Config) { c.Checkpoint.Publishers = []string{PublisherPubSub} }, "pubsub"},
		{"journal path", func(c *Config) { c.Checkpoint.Publishers = []string{PublisherJournal} }, "journal.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Checkpoint.Publishers = append([]string(nil), base.Checkpoint.Publishers...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestProfilesCanonicalizeHeaders(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	page := cfg.PageProfile()
	if page.Name != "page" {
		t.Fatalf("unexpected profile name %q", page.Name)
	}
	if page.Headers.Get("Sec-Fetch-Site") != "same-origin" {
		t.Fatalf("unexpected page Sec-Fetch-Site %q", page.Headers.Get("Sec-Fetch-Site"))
	}
	if page.Headers.Get("Referer") != "https://forum.example.com/" {
		t.Fatalf("expected referer defaulted to site root, got %q", page.Headers.Get("Referer"))
	}
	if _, ok := page.Headers["User-Agent"]; !ok {
		t.Fatalf("expected canonical header keys, got %v", page.Headers)
	}

	res := cfg.ResourceProfile()
	if res.Headers.Get("Sec-Fetch-Site") != "none" || res.Headers.Get("Priority") != "u=0, i" {
		t.Fatalf("unexpected resource headers %v", res.Headers)
	}
}
