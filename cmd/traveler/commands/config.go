package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/config"
)

// NewConfigCommand creates the config subcommand.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after applying defaults, the config file and
TRAVELER_* environment variables. The output is a valid config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString(flagConfig)
			if err != nil {
				path = ""
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}

			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	}
}
