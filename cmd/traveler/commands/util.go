package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/report"
	"github.com/Sumatoshi-tech/traveler/internal/timeline"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

const htmlFilePerm = 0o600

type utilOptions struct {
	dataset string
	node    string
	name    string
	begin   float64
	end     float64
	bins    int
	html    string
	rows    int
}

// NewUtilCommand creates the util subcommand.
func NewUtilCommand() *cobra.Command {
	var opts utilOptions

	cmd := &cobra.Command{
		Use:   "util",
		Short: "Aggregate the utilization of one primitive",
		Long: `Select a primitive node, fetch its children for the time window and bin
them into a merged utilization series: the number of simultaneously active
locations per bin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUtil(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, flagDataset, "", "dataset id (default: service.dataset)")
	cmd.Flags().StringVar(&opts.node, "node", "", "primitive node id")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (default: the node id)")
	cmd.Flags().Float64Var(&opts.begin, flagBegin, 0, "start of the time window")
	cmd.Flags().Float64Var(&opts.end, flagEnd, 0, "end of the time window")
	cmd.Flags().IntVar(&opts.bins, "bins", 0, "number of bins (default: render.width / render.pixels_per_bin)")
	cmd.Flags().StringVar(&opts.html, "html", "", "also write an HTML chart to FILE")
	cmd.Flags().IntVar(&opts.rows, flagRows, 0, "maximum table rows (0 prints all)")

	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired(flagEnd)

	return cmd
}

func runUtil(cmd *cobra.Command, opts utilOptions) error {
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

	dataset := env.dataset(opts.dataset)

	bins := opts.bins
	if bins <= 0 {
		bins = env.defaultBins()
	}

	name := opts.name
	if name == "" {
		name = opts.node
	}

	source := aggregate.NewCachedSource(aggregate.ServiceSource{Client: client, Dataset: dataset},
		env.cfg.Cache.UtilCacheEntries, metrics)

	agg := aggregate.New(source, env.logger)
	agg.SetLabelMinBins(env.cfg.Render.LabelMinBins)

	view := timeline.NewUtilizationView(client, dataset, agg, env.logger)

	res, err := view.Select(cmd.Context(), name, opts.node, viewport.Window{Begin: opts.begin, End: opts.end}, bins)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	err = report.WriteUtilization(out, res, report.TableOptions{MaxRows: opts.rows})
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	if opts.html == "" {
		return nil
	}

	err = writeUtilizationHTML(opts.html, name, res)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", opts.html)

	return nil
}

func writeUtilizationHTML(path, name string, res *aggregate.Result) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, htmlFilePerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return report.WriteUtilizationHTML(f, name+" utilization", res)
}
