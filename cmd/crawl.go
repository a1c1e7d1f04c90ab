package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/app"
)

type crawlOptions struct {
	dryRun bool
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured page range",
		Long: `Crawls listing pages from --start to --end (descending when start >= end),
appending records to the CSV store in page order and publishing a checkpoint
every checkpoint.threshold records plus a final one at the end.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.Int("start", 0, "first page to crawl (overrides crawl.start_page)")
	flags.Int("end", 0, "last page to crawl (overrides crawl.end_page)")
	flags.Int("concurrency", 0, "concurrent page workers (overrides crawl.concurrency)")
	flags.String("output", "", "CSV store path (overrides storage.csv_path)")
	flags.String("metrics-addr", "", "serve /metrics and /v1/status on this address")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "keep records in memory and only log checkpoints")

	bindFlag(root.v, cmd, "crawl.start_page", "start")
	bindFlag(root.v, cmd, "crawl.end_page", "end")
	bindFlag(root.v, cmd, "crawl.concurrency", "concurrency")
	bindFlag(root.v, cmd, "storage.csv_path", "output")
	bindFlag(root.v, cmd, "metrics.addr", "metrics-addr")
	return cmd
}

func runCrawl(cmd *cobra.Command, root *rootOptions, opts *crawlOptions) error {
	ctx := cmd.Context()
	logger := root.logger

	a, err := app.New(ctx, root.cfg, logger, app.Options{DryRun: opts.dryRun})
	if err != nil {
		return fmt.Errorf("initialize crawler: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("failed to close resources", zap.Error(cerr))
		}
	}()

	total, err := a.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("crawl interrupted; final checkpoint attempted", zap.Int("records", total))
	case err != nil:
		return fmt.Errorf("run crawler: %w", err)
	}

	state := a.Checkpoints()
	fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d records (%d checkpoints, %d pending)\n",
		total, state.Commits, state.Pending)
	return nil
}
