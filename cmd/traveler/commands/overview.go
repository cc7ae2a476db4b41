package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/report"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

type overviewOptions struct {
	dataset   string
	primitive string
	mode      string
	begin     float64
	end       float64
	bins      int
	rows      int
}

// NewOverviewCommand creates the overview subcommand.
func NewOverviewCommand() *cobra.Command {
	var opts overviewOptions

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print the merged utilization histogram of a primitive",
		Long: `Ask the service for the utilization of one primitive summed over every
location it runs on. The interval mode reports the mean number of active
intervals per bin; the metric mode reports the accumulated active time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOverview(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, flagDataset, "", "dataset id (default: service.dataset)")
	cmd.Flags().StringVar(&opts.primitive, "primitive", "", "primitive name")
	cmd.Flags().StringVar(&opts.mode, "mode", string(traceapi.ModeInterval), "interval or metric")
	cmd.Flags().Float64Var(&opts.begin, flagBegin, 0, "start of the time window")
	cmd.Flags().Float64Var(&opts.end, flagEnd, 0, "end of the time window")
	cmd.Flags().IntVar(&opts.bins, "bins", 0, "number of bins (default: render.width / render.pixels_per_bin)")
	cmd.Flags().IntVar(&opts.rows, flagRows, 0, "maximum table rows (0 prints all)")

	_ = cmd.MarkFlagRequired("primitive")
	_ = cmd.MarkFlagRequired(flagEnd)

	return cmd
}

func runOverview(cmd *cobra.Command, opts overviewOptions) error {
	mode, err := traceapi.ParseUtilMode(opts.mode)
	if err != nil {
		return err
	}

	env, err := setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer env.close()

	client, err := env.client()
	if err != nil {
		return err
	}

	bins := opts.bins
	if bins <= 0 {
		bins = env.defaultBins()
	}

	layout := aggregate.Bins{DomainBegin: opts.begin, DomainEnd: opts.end, Count: bins}

	err = layout.Validate()
	if err != nil {
		return err
	}

	series, err := client.MergedUtilization(cmd.Context(), env.dataset(opts.dataset), opts.primitive,
		mode, bins, opts.begin, opts.end)
	if err != nil {
		return fmt.Errorf("merged utilization of %s: %w", opts.primitive, err)
	}

	column := "Mean active"
	if mode == traceapi.ModeMetric {
		column = "Active time"
	}

	err = report.WriteSeries(cmd.OutOrStdout(), layout, series, column, report.TableOptions{MaxRows: opts.rows})
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}
