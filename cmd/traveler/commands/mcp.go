package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/mcp"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the configured query service as tools that AI agents
can discover and invoke:
  - traveler_window: Interval summary of one time window
  - traveler_utilization: Binned utilization of one primitive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer env.close()

			client, err := env.client()
			if err != nil {
				return err
			}

			red, err := observability.NewREDMetrics(env.providers.Meter)
			if err != nil {
				return err
			}

			metrics, err := env.cacheMetrics()
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Client:           client,
				Dataset:          env.cfg.Service.Dataset,
				Cache:            env.cacheOptions(metrics),
				UtilCacheEntries: env.cfg.Cache.UtilCacheEntries,
				LabelMinBins:     env.cfg.Render.LabelMinBins,
				Logger:           env.logger,
				Metrics:          red,
				CacheMetrics:     metrics,
				Tracer:           env.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}

	return cmd
}
