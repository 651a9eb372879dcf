// Package cmd defines and implements the CLI commands for the inspection-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/app"
	"github.com/data-to-insight/inspection-crawler/internal/config"
	"github.com/data-to-insight/inspection-crawler/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspection-crawler",
		Short: "Collects local area SEND inspection outcomes from the inspection register.",
		Long: `inspection-crawler walks the inspection register's provider directory,
picks each local authority's latest area SEND inspection report, extracts the
outcome and key dates, and exports a summary table.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExtractCmd())
	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// applyFlagOverrides copies explicitly set command flags onto cfg. Flags a
// command does not define are ignored.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	var err error
	if changed("single-page") {
		var single bool
		if single, err = flags.GetBool("single-page"); err != nil {
			return err
		}
		cfg.Crawl.Paginate = !single
	}
	if changed("persist-documents") {
		if cfg.Crawl.PersistDocuments, err = flags.GetBool("persist-documents"); err != nil {
			return err
		}
	}
	if changed("concurrency") {
		if cfg.Crawl.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if changed("format") {
		if cfg.Export.Formats, err = flags.GetStringSlice("format"); err != nil {
			return err
		}
	}
	if changed("export-dir") {
		if cfg.Export.Dir, err = flags.GetString("export-dir"); err != nil {
			return err
		}
	}
	if changed("lookup") {
		if cfg.Export.LookupPath, err = flags.GetString("lookup"); err != nil {
			return err
		}
	}
	if changed("addr") {
		if cfg.Metrics.Addr, err = flags.GetString("addr"); err != nil {
			return err
		}
	}
	return nil
}
