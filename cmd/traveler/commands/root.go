// Package commands implements the traveler CLI subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/pkg/version"
)

// NewRootCommand builds the traveler command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "traveler",
		Short: "Traveler - execution trace timeline explorer",
		Long: `Traveler explores large execution traces through a virtualized timeline.

Commands:
  serve     Serve a trace file over the HTTP query API
  window    Fetch and summarize the intervals of one time window
  util      Aggregate the utilization of one primitive
  overview  Print the merged utilization histogram of a primitive
  mcp       Start the MCP server on stdio
  config    Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default: .traveler.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().BoolP(flagVerbose, "v", false, "verbose output")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewWindowCommand())
	rootCmd.AddCommand(NewUtilCommand())
	rootCmd.AddCommand(NewOverviewCommand())
	rootCmd.AddCommand(NewMCPCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
