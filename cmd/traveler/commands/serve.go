package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/internal/tracestore"
)

type serveOptions struct {
	trace   string
	dataset string
	addr    string
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a trace file over the HTTP query API",
		Long: `Load an NDJSON trace file (optionally LZ4-compressed) into memory and
serve the histogram, intervals, traceForward and utilizationHistogram
endpoints. Queries answer 503 until the file finished loading.

/healthz, /readyz and /metrics (Prometheus) are served on the same address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.trace, "trace", "", "trace file to serve")
	cmd.Flags().StringVar(&opts.dataset, flagDataset, "", "dataset id of the trace (default: service.dataset)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default: server.host:server.port)")

	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	env, err := setup(cmd, observability.ModeServe)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, loaded, err := startServer(ctx, env, opts)
	if err != nil {
		return err
	}

	go func() {
		if loadErr := <-loaded; loadErr != nil {
			env.logger.ErrorContext(ctx, "serve: trace unavailable", "path", opts.trace, "error", loadErr)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", opts.trace, srv.Addr())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// startServer begins loading the trace and serving it. The returned channel
// reports the load result.
func startServer(ctx context.Context, env *commandEnv, opts serveOptions) (*observability.Server, <-chan error, error) {
	metricsHandler, meter, err := observability.PrometheusHandler()
	if err != nil {
		return nil, nil, err
	}

	red, err := observability.NewREDMetrics(meter)
	if err != nil {
		return nil, nil, err
	}

	addr := opts.addr
	if addr == "" {
		addr = env.cfg.Server.Addr()
	}

	store := tracestore.New(env.logger)
	loaded := store.LoadAsync(ctx, env.dataset(opts.dataset), opts.trace)

	app := observability.HTTPMiddleware(env.providers.Tracer, env.logger, red,
		traceapi.NewServer(store, env.logger).Handler())

	srv, err := observability.NewServer(observability.ServerOptions{
		Addr:    addr,
		App:     app,
		Metrics: metricsHandler,
		Checks:  []observability.ReadyCheck{storeReady(store)},
		Logger:  env.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	env.logger.InfoContext(ctx, "serve: listening", "addr", srv.Addr(), "datasets", store.IDs())

	return srv, loaded, nil
}

func storeReady(store *tracestore.Store) observability.ReadyCheck {
	return func(context.Context) error {
		if !store.Ready() {
			return fmt.Errorf("datasets: %w", traceapi.ErrStillLoading)
		}

		return nil
	}
}
