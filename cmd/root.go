// Package cmd defines and implements the CLI commands for the listing-crawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/logging"
)

// rootOptions is shared by every subcommand. PersistentPreRunE fills cfg
// and logger before any RunE executes.
type rootOptions struct {
	configPath string
	v          *viper.Viper
	cfg        config.Config
	logger     *zap.Logger
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "listing-crawler",
		Short: "Crawls a paginated listing site into a checkpointed CSV.",
		Long: `listing-crawler walks a range of listing pages with a bounded worker pool,
extracts one record per row, resolves each row's resource into a magnet link,
and appends the records in page order to a CSV that is checkpointed (git,
GCS, Pub/Sub, SQLite journal) every N records.`,
		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.configPath != "" {
				opts.v.SetConfigFile(opts.configPath)
				if err := opts.v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			cfg, err := config.FromViper(opts.v)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, logging.WithLevel(cfg.Logging.Level))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				_ = logging.Sync(opts.logger)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd(opts))
	cmd.AddCommand(newLinksCmd(opts))
	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run, which
// still writes its final checkpoint.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}

// bindFlag ties a flag to a config key; a flag only wins when it was set.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}
