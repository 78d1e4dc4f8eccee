package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/tagmanager/internal/analytics"
	"github.com/gyaneshwarpardhi/tagmanager/internal/api"
	"github.com/gyaneshwarpardhi/tagmanager/internal/provider"
)

type serveOptions struct {
	addr       string
	containers string
	sink       string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve container configs and receive analytics hits",
		Long: `Serve published container documents at GET /api/config/{containerId} and
accept engine telemetry at POST /api/analytics/track. The containers
directory is watched and reloaded on change.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.containers, "containers", "", "containers directory (overrides server.containers_dir)")
	cmd.Flags().StringVar(&opts.sink, "analytics-sink", "", "log, kafka or redis (overrides server.analytics_sink)")
	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *serveOptions) error {
	settings, err := rootOpts.loadSettings()
	if err != nil {
		return err
	}
	conf := settings.Server
	if opts.addr != "" {
		conf.Addr = opts.addr
	}
	if opts.containers != "" {
		conf.ContainersDir = opts.containers
	}
	if opts.sink != "" {
		conf.AnalyticsSink = opts.sink
	}
	logger := slog.Default()

	store, err := provider.NewStore(conf.ContainersDir, logger)
	if err != nil {
		return err
	}
	logger.Info("containers loaded", "dir", conf.ContainersDir, "ids", store.IDs())

	stopWatch, err := store.Watch()
	if err != nil {
		logger.Warn("containers watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	recorder, err := analytics.New(conf, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	srv := &http.Server{
		Addr:         conf.Addr,
		Handler:      api.New(store, recorder, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errC := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", conf.Addr, "analytics_sink", recorder.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	select {
	case err := <-errC:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down…")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	logger.Info("goodbye")
	return nil
}
