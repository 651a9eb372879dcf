package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/crawler"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one crawl and
// exports the result.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the register and exports the summary table",
		Long: `Walks the provider directory from --start, assembles one record per local
authority with a matching SEND inspection report, and writes the configured
exports. With --lightweight only the identifier, name and report link are
collected and no documents are downloaded.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	flags := cmd.Flags()
	flags.Int("start", 0, "directory offset to start from")
	flags.Int("max-results", 0, "stop before a page starting at or beyond this offset (0 = no limit; default from config)")
	flags.Bool("lightweight", false, "collect identity fields only")
	flags.Bool("single-page", false, "read only the first directory page")
	flags.Bool("persist-documents", false, "store downloaded reports with the storage provider")
	flags.Int("concurrency", 1, "providers visited in parallel")
	flags.StringSlice("format", nil, "export formats: csv, xlsx, json")
	flags.String("export-dir", "", "directory for export files")
	flags.String("lookup", "", "local authority lookup CSV, or a directory holding one")
	flags.String("addr", "", "serve status and metrics on this address while crawling")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	opts, err := crawlOptions(cmd, cfg.Crawl.MaxResults, cfg.Crawl.CaptureText)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		srv := newAPIServer(cmd.Context(), appInstance, false)
		stop := startHTTPServer(cfg.Metrics.Addr, srv.Handler(), logger)
		defer stop()
	}

	report, err := appInstance.Run(cmd.Context(), opts)
	for _, path := range report.Exports {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("crawl interrupted; partial results exported",
			zap.Int("records", len(report.Result.Records)))
		return nil
	case err != nil:
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", report.Result.RunID),
		zap.Int("records", report.Result.Counters.Records),
		zap.Int("unmatched", report.Result.Counters.Unmatched),
		zap.Int("skipped", report.Result.Counters.Skipped),
	)
	return nil
}

func crawlOptions(cmd *cobra.Command, maxResults int, captureText bool) (crawler.Options, error) {
	flags := cmd.Flags()
	start, err := flags.GetInt("start")
	if err != nil {
		return crawler.Options{}, err
	}
	if start < 0 {
		return crawler.Options{}, errors.New("--start must be >= 0")
	}
	if flags.Changed("max-results") {
		if maxResults, err = flags.GetInt("max-results"); err != nil {
			return crawler.Options{}, err
		}
		if maxResults < 0 {
			return crawler.Options{}, errors.New("--max-results must be >= 0")
		}
	}
	lightweight, err := flags.GetBool("lightweight")
	if err != nil {
		return crawler.Options{}, err
	}
	return crawler.Options{
		Start:       inspection.PageState{Start: start},
		MaxResults:  maxResults,
		CaptureText: captureText && !lightweight,
	}, nil
}
