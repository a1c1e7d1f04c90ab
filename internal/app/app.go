// Package app builds the crawl pipeline from configuration and owns the
// lifetime of every long-lived resource it opens.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/listing-crawler/internal/api"
	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
	"github.com/JakeFAU/listing-crawler/internal/clock/system"
	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/extractor"
	collyfetcher "github.com/JakeFAU/listing-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/listing-crawler/internal/hash/sha1"
	"github.com/JakeFAU/listing-crawler/internal/id/uuid"
	"github.com/JakeFAU/listing-crawler/internal/metrics"
	"github.com/JakeFAU/listing-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/listing-crawler/internal/progress"
	"github.com/JakeFAU/listing-crawler/internal/progress/sinks"
	gcspublisher "github.com/JakeFAU/listing-crawler/internal/publisher/gcs"
	gitpublisher "github.com/JakeFAU/listing-crawler/internal/publisher/git"
	"github.com/JakeFAU/listing-crawler/internal/publisher/journal"
	memorypublisher "github.com/JakeFAU/listing-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/listing-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/listing-crawler/internal/resolver"
	recordstorage "github.com/JakeFAU/listing-crawler/internal/storage"
	"github.com/JakeFAU/listing-crawler/internal/storage/csvstore"
	memorystorage "github.com/JakeFAU/listing-crawler/internal/storage/memory"
	"github.com/JakeFAU/listing-crawler/internal/storage/postgres"
	"github.com/JakeFAU/listing-crawler/internal/telemetry"
)

const closeTimeout = 10 * time.Second

// Options carries dependencies that tests and the CLI may override.
type Options struct {
	// DryRun keeps records in memory and publishes checkpoints to the log only.
	DryRun bool
	// Registerer receives the Prometheus collectors (default registerer when nil).
	Registerer prometheus.Registerer
	// GitRunner replaces the git binary.
	GitRunner gitpublisher.Runner
	// GCSOptions are passed to storage.NewClient.
	GCSOptions []option.ClientOption
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the wired crawl pipeline.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher crawler.Fetcher
	engine  *crawler.Engine
	sink    *checkpoint.Checkpointer
	records *memorystorage.RecordStore
	hub     *progress.Hub
	status  *sinks.StatusSink
	server  *api.Server
	closers []closer
}

// New wires every component named by cfg. On error, anything already opened
// is closed before returning.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeAll(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName, telemetry.NewLogExporter(logger.Named("trace")))
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.addCloser("tracer provider", tp.Shutdown)
	}

	a.fetcher = buildFetcher(cfg)

	res, err := resolver.New(a.fetcher, sha1.New(), cfg.ResourceProfile(), logger.Named("resolver"))
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	ext, err := extractor.New(extractor.Config{
		BaseURL:           cfg.Listing.BaseURL,
		ResourceBaseURL:   cfg.Listing.ResourceBaseURL,
		RowSelector:       cfg.Listing.RowSelector,
		TitleSelector:     cfg.Listing.TitleSelector,
		PublisherSelector: cfg.Listing.PublisherSelector,
	}, res, logger.Named("extractor"))
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	pages, err := crawler.NewPageProcessor(
		cfg.Listing.BaseURL,
		cfg.PageProfile(),
		a.fetcher,
		ext,
		crawler.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.HTTP.RetryBaseDelay),
		nil,
		logger.Named("pages"),
	)
	if err != nil {
		return nil, fmt.Errorf("init page processor: %w", err)
	}

	a.status = sinks.NewStatusSink()
	progressSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress")), a.status}
	if cfg.Metrics.Addr != "" {
		metrics.Init(opts.Registerer)
		promSink, err := sinks.NewPrometheusSink(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("init prometheus sink: %w", err)
		}
		progressSinks = append(progressSinks, promSink)
		a.server = api.NewServer(a.status, logger.Named("api"))
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")}, progressSinks...)
	a.addCloser("progress hub", a.hub.Close)
	reporter := progress.NewReporter(a.hub)

	store, publisher, err := a.buildPersistence(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.sink, err = checkpoint.New(
		checkpoint.Config{Threshold: cfg.Checkpoint.Threshold},
		store,
		publisher,
		system.New(),
		reporter,
		logger.Named("checkpoint"),
	)
	if err != nil {
		return nil, fmt.Errorf("init checkpointer: %w", err)
	}

	a.engine = crawler.NewEngine(
		crawler.EngineConfig{
			Concurrency:  cfg.Crawl.Concurrency,
			MinPageDelay: cfg.Crawl.MinPageDelay,
			MaxPageDelay: cfg.Crawl.MaxPageDelay,
		},
		pages,
		a.sink,
		nil,
		uuid.New(),
		reporter,
		logger.Named("engine"),
	)
	return a, nil
}

func buildFetcher(cfg config.Config) crawler.Fetcher {
	var fetcher crawler.Fetcher = collyfetcher.New(collyfetcher.Config{
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
	})
	var limiter *ratelimit.Limiter
	if cfg.HTTP.RequestsPerSecond > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		})
	}
	return ratelimit.Wrap(fetcher, limiter)
}

// buildPersistence opens the record store and the checkpoint publishers.
func (a *App) buildPersistence(ctx context.Context, opts Options) (checkpoint.Store, checkpoint.Publisher, error) {
	logger := a.logger
	if opts.DryRun {
		a.records = memorystorage.NewRecordStore()
		logger.Info("dry run: records kept in memory, checkpoints only logged")
		return a.records, checkpoint.Multi{memorypublisher.New(), checkpoint.NewLogPublisher(logger.Named("publisher"))}, nil
	}

	cpCfg := a.cfg.Checkpoint
	var (
		publishers checkpoint.Multi
		git        *gitpublisher.Publisher
	)
	for _, name := range cpCfg.Publishers {
		switch name {
		case config.PublisherGit:
			git = gitpublisher.New(gitpublisher.Config{
				Dir:        cpCfg.Git.Dir,
				RemotePush: cpCfg.Git.RemotePush,
				LFS:        cpCfg.Git.LFS,
			}, opts.GitRunner, logger.Named("git"))
			publishers = append(publishers, git)
		case config.PublisherGCS:
			client, err := storage.NewClient(ctx, opts.GCSOptions...)
			if err != nil {
				return nil, nil, fmt.Errorf("init gcs client: %w", err)
			}
			a.addCloser("gcs client", func(context.Context) error { return client.Close() })
			pub, err := gcspublisher.New(client, gcspublisher.Config{Bucket: cpCfg.GCS.Bucket, Prefix: cpCfg.GCS.Prefix}, logger.Named("gcs"))
			if err != nil {
				return nil, nil, fmt.Errorf("init gcs publisher: %w", err)
			}
			publishers = append(publishers, pub)
		case config.PublisherPubSub:
			pub, err := pubsubpublisher.New(ctx, cpCfg.PubSub.ProjectID, cpCfg.PubSub.TopicID)
			if err != nil {
				return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
			}
			a.addCloser("pubsub publisher", func(context.Context) error { return pub.Close() })
			publishers = append(publishers, pub)
		case config.PublisherJournal:
			j, err := journal.Open(ctx, cpCfg.Journal.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("init journal: %w", err)
			}
			a.addCloser("journal", func(context.Context) error { return j.Close() })
			publishers = append(publishers, j)
		case config.PublisherLog:
			publishers = append(publishers, checkpoint.NewLogPublisher(logger.Named("publisher")))
		default:
			return nil, nil, fmt.Errorf("unknown checkpoint publisher %q", name)
		}
	}
	if len(publishers) == 0 {
		publishers = append(publishers, checkpoint.NewLogPublisher(logger.Named("publisher")))
	}

	var onCreate csvstore.CreateHook
	if git != nil && cpCfg.Git.LFS {
		onCreate = git.TrackLFS
	}
	csv, err := csvstore.Open(ctx, a.cfg.Storage.CSVPath, onCreate, logger.Named("csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	a.addCloser("csv store", func(context.Context) error { return csv.Close() })

	var mirrors []checkpoint.Store
	if pg := a.cfg.Storage.Postgres; pg.DSN != "" {
		mirror, err := postgres.New(ctx, postgres.Config{DSN: pg.DSN, Table: pg.Table})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres mirror: %w", err)
		}
		a.addCloser("postgres mirror", func(context.Context) error { mirror.Close(); return nil })
		mirrors = append(mirrors, mirror)
	}
	return recordstorage.NewTee(csv, logger.Named("storage"), mirrors...), publishers, nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run warms up the session, starts the status server when configured, and
// crawls the configured range. It returns the number of records persisted.
func (a *App) Run(ctx context.Context) (int, error) {
	if a.server != nil {
		serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.server.ListenAndServe(serverCtx, a.cfg.Metrics.Addr); err != nil {
				a.logger.Error("status server failed", zap.Error(err))
			}
		}()
		a.addCloser("status server", func(context.Context) error {
			stopServer()
			<-done
			return nil
		})
	}

	if a.cfg.Crawl.Warmup {
		Warmup(ctx, a.fetcher, a.cfg.Listing.SiteRoot, a.cfg.PageProfile(), a.logger)
	}

	total, err := a.engine.Run(ctx, a.cfg.Range())
	a.logger.Info("records saved",
		zap.Int("records", total),
		zap.String("store", a.storePath()),
	)
	return total, err
}

func (a *App) storePath() string {
	if a.records != nil {
		return a.records.Path()
	}
	return a.cfg.Storage.CSVPath
}

// Checkpoints returns the checkpointer state after a run.
func (a *App) Checkpoints() checkpoint.State {
	return a.sink.State()
}

// Status returns the latest progress snapshot.
func (a *App) Status() sinks.Snapshot {
	return a.status.Snapshot()
}

// DryRunRecords returns the records held in memory by a dry run, or nil.
func (a *App) DryRunRecords() []crawler.PageRecord {
	if a.records == nil {
		return nil
	}
	return a.records.Records()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	return a.closeAll(ctx)
}

func (a *App) closeAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Warmup GETs the site root with the page profile so the session picks up
// cookies before the crawl. Failure is only logged.
func Warmup(ctx context.Context, fetcher crawler.Fetcher, siteRoot string, profile crawler.Profile, logger *zap.Logger) {
	if siteRoot == "" {
		return
	}
	if _, err := fetcher.Fetch(ctx, crawler.FetchRequest{URL: siteRoot, Profile: profile}); err != nil {
		logger.Warn("session warm-up failed", zap.String("url", siteRoot), zap.Error(err))
		return
	}
	logger.Info("session initialized", zap.String("url", siteRoot))
}
