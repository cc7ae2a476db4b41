package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/report"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	"github.com/Sumatoshi-tech/traveler/internal/timeline"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

type windowOptions struct {
	dataset   string
	begin     float64
	end       float64
	locations []string
	save      string
	rows      int
	noColor   bool
}

// NewWindowCommand creates the window subcommand.
func NewWindowCommand() *cobra.Command {
	var opts windowOptions

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Fetch and summarize the intervals of one time window",
		Long: `Run one timeline refresh against the configured query service and print
a per-location summary of the committed intervals.

Windows holding more intervals than cache.render_cutoff print a request to
narrow the window instead of data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWindow(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, flagDataset, "", "dataset id (default: service.dataset)")
	cmd.Flags().Float64Var(&opts.begin, flagBegin, 0, "start of the time window")
	cmd.Flags().Float64Var(&opts.end, flagEnd, 0, "end of the time window")
	cmd.Flags().StringSliceVar(&opts.locations, "locations", nil, "ordered location list (default: every location)")
	cmd.Flags().StringVar(&opts.save, "save", "", "write the committed intervals to FILE (.lz4 compresses)")
	cmd.Flags().IntVar(&opts.rows, flagRows, 0, "maximum table rows (0 prints all)")
	cmd.Flags().BoolVar(&opts.noColor, flagNoColor, false, "disable colored status output")

	_ = cmd.MarkFlagRequired(flagEnd)

	return cmd
}

func runWindow(cmd *cobra.Command, opts windowOptions) error {
	env, err := setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer env.close()

	client, err := env.client()
	if err != nil {
		return err
	}

	metrics, err := env.cacheMetrics()
	if err != nil {
		return err
	}

	cfg := env.cfg

	view, err := timeline.NewView(cmd.Context(), client, timeline.Options{
		Dataset:           env.dataset(opts.dataset),
		TimeLimits:        viewport.Window{Begin: opts.begin, End: opts.end},
		Locations:         opts.locations,
		Width:             cfg.Render.Width,
		Height:            cfg.Render.Height,
		MinTimeWidth:      cfg.Viewport.MinWidth,
		PixelsPerBin:      cfg.Render.PixelsPerBin,
		BandHeight:        cfg.Render.BandHeight,
		TimeSpillover:     cfg.Viewport.TimeSpillover,
		LocationSpillover: cfg.Viewport.LocationSpillover,
		Debounce:          cfg.Render.DebounceInterval,
		Logger:            env.logger,
		Cache:             env.cacheOptions(metrics),
	})
	if err != nil {
		return err
	}
	defer view.Close()

	st, err := view.Settle(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	committed := view.Cache().Committed()

	fmt.Fprintln(out, report.FormatStatus(st, !opts.noColor))

	if st.Phase == intervalcache.PhaseError {
		return fmt.Errorf("%w: %s", ErrQueryFailed, st.Message)
	}

	err = report.WriteWindow(out, committed, report.TableOptions{MaxRows: opts.rows})
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	if opts.save != "" {
		err = snapshot.SaveFile(opts.save, committed)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Saved %s intervals to %s\n", humanize.Comma(int64(committed.Len())), opts.save)
	}

	return nil
}
