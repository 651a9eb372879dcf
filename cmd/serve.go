package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/api"
	"github.com/data-to-insight/inspection-crawler/internal/app"
	"github.com/data-to-insight/inspection-crawler/internal/crawler"
)

const (
	defaultServeAddr = ":8080"
	shutdownTimeout  = 10 * time.Second
)

// newServeCmd creates the 'serve' subcommand, which runs the operator API
// until interrupted. Crawls are started with POST /v1/runs.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the operator API and starts crawls on request",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand,
	}
	cmd.Flags().String("addr", "", "listen address (default from metrics.addr, else "+defaultServeAddr+")")
	cmd.Flags().Bool("persist-documents", false, "store downloaded reports with the storage provider")
	cmd.Flags().Int("concurrency", 1, "providers visited in parallel")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	addr := appInstance.Config().Metrics.Addr
	if addr == "" {
		addr = defaultServeAddr
	}
	logger := appInstance.Logger()

	srv := newAPIServer(cmd.Context(), appInstance, true)
	stop := startHTTPServer(addr, srv.Handler(), logger)

	<-cmd.Context().Done()
	logger.Info("shutdown initiated")
	stop()
	srv.Wait()
	logger.Info("shutdown complete")
	return nil
}

// newAPIServer wires the API to the app. The run trigger is attached only
// when withTrigger is set.
func newAPIServer(ctx context.Context, a *app.App, withTrigger bool) *api.Server {
	cfg := api.Config{
		Status:     a.Engine(),
		IDs:        a.IDs(),
		MaxResults: a.Config().Crawl.MaxResults,
		Logger:     a.Logger(),
	}
	if records := a.Records(); records != nil {
		cfg.Runs = records
	}
	if withTrigger {
		cfg.Trigger = func(ctx context.Context, opts crawler.Options) error {
			_, err := a.Run(ctx, opts)
			return err
		}
	}
	return api.NewServer(ctx, cfg)
}

// startHTTPServer serves handler in the background and returns a function
// that shuts it down.
func startHTTPServer(addr string, handler http.Handler, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
}
