package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/config"
	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/pkg/version"
)

const (
	flagConfig    = "config"
	flagVerbose   = "verbose"
	flagDataset   = "dataset"
	flagBegin     = "begin"
	flagEnd       = "end"
	flagRows      = "rows"
	flagNoColor   = "no-color"
	shutdownGrace = 5 * time.Second
)

// ErrQueryFailed is returned when a command's query ends in an error status.
var ErrQueryFailed = errors.New("query failed")

// commandEnv is what every command needs once configuration is loaded.
type commandEnv struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
}

func (e *commandEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err := e.providers.Shutdown(ctx)
	if err != nil {
		e.logger.Warn("observability shutdown failed", "error", err)
	}
}

// setup loads the configuration and initializes observability for mode.
// Logs always go to the command's stderr.
func setup(cmd *cobra.Command, mode observability.AppMode) (*commandEnv, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		path = ""
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	obs := observability.FromSettings(cfg, mode, cmd.ErrOrStderr())
	obs.Version = version.Version
	obs.Verbose, _ = cmd.Flags().GetBool(flagVerbose)

	providers, err := observability.Init(obs)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &commandEnv{cfg: cfg, providers: providers, logger: providers.Logger}, nil
}

func (e *commandEnv) dataset(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return e.cfg.Service.Dataset
}

func (e *commandEnv) client() (*traceapi.HTTPClient, error) {
	return traceapi.NewHTTPClient(e.cfg.Service.URL,
		traceapi.WithLogger(e.logger),
		traceapi.WithRequestTimeout(e.cfg.Service.Timeout),
	)
}

func (e *commandEnv) cacheMetrics() (*observability.CacheMetrics, error) {
	return observability.NewCacheMetrics(e.providers.Meter)
}

func (e *commandEnv) cacheOptions(metrics *observability.CacheMetrics) intervalcache.Options {
	return intervalcache.Options{
		RenderCutoff:     e.cfg.Cache.RenderCutoff,
		ThrottleInterval: e.cfg.Cache.ThrottleInterval,
		Tracer:           e.providers.Tracer,
		Metrics:          metrics,
		Logger:           e.logger,
	}
}

// defaultBins is the bin count one chart row of the configured width holds.
func (e *commandEnv) defaultBins() int {
	return max(1, int(e.cfg.Render.Width/e.cfg.Render.PixelsPerBin))
}
