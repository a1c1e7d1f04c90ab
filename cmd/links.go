package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/listing-crawler/internal/links"
)

type linksOptions struct {
	dir          string
	output       string
	resourceBase string
}

// newLinksCmd creates the 'links' subcommand.
func newLinksCmd(root *rootOptions) *cobra.Command {
	opts := &linksOptions{}
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Collects resource download URLs from crawled CSV files",
		Long: `Scans every *.csv in --dir (ordered as 1677.csv, 1677_0.csv, 1677_7.csv, ...),
and for each row holding a magnet link appends the resource download URL
built from the row's topic id to --out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base := opts.resourceBase
			if base == "" {
				base = root.cfg.Listing.ResourceBaseURL
			}
			scanner, err := links.NewScanner(links.Config{
				Dir:             opts.dir,
				Output:          opts.output,
				ResourceBaseURL: base,
			}, root.logger.Named("links"))
			if err != nil {
				return err
			}
			report, err := scanner.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan links: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, f := range report.Files {
				if f.Err != nil {
					fmt.Fprintf(out, "%s: error: %v\n", f.Name, f.Err)
					continue
				}
				fmt.Fprintf(out, "%s: %d torrent links\n", f.Name, f.Links)
			}
			fmt.Fprintf(out, "\nTotal: %d torrent links appended to %s\n", report.Total(), report.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "directory holding the CSV files")
	cmd.Flags().StringVar(&opts.output, "out", links.DefaultOutput, "file the URLs are appended to")
	cmd.Flags().StringVar(&opts.resourceBase, "resource-base", "", "resource base URL (default listing.resource_base_url)")
	return cmd
}
