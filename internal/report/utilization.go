package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
)

const (
	barLength       = 20
	chartWidth      = "100%"
	chartHeight     = "500px"
	mergedSeries    = "merged"
	lineWidth       = 2
	lineWidthThin   = 1
	labelChartTitle = "Labelled children"
)

// WriteUtilization prints the merged series of res, one row per bin, with
// a bar scaled to the number of locations.
func WriteUtilization(w io.Writer, res *aggregate.Result, opts TableOptions) error {
	footer := fmt.Sprintf("%d bins over %d locations, %d labels",
		len(res.Merged), len(res.Locations), len(res.Labels))

	return writeSeries(w, res.Bins, res.Merged, res.Bound(), "Active", footer, opts)
}

// WriteSeries prints a service-side utilization series laid out by bins.
// Bars are scaled to the largest value.
func WriteSeries(w io.Writer, bins aggregate.Bins, series []float64, column string, opts TableOptions) error {
	bound := 0.0
	for _, v := range series {
		bound = max(bound, v)
	}

	footer := fmt.Sprintf("%d bins of %s, peak %s",
		len(series), formatTime(bins.Size()), humanize.FtoaWithDigits(bound, timeDigits))

	return writeSeries(w, bins, series, bound, column, footer, opts)
}

func writeSeries(
	w io.Writer, bins aggregate.Bins, series []float64, bound float64, column, footer string, opts TableOptions,
) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Bin", "Begin", column, "Load"})

	rows := len(series)
	if opts.MaxRows > 0 && rows > opts.MaxRows {
		rows = opts.MaxRows
	}

	for i := range rows {
		v := series[i]
		tbl.AppendRow(table.Row{i, formatTime(bins.Begin(i)), humanize.FtoaWithDigits(v, timeDigits), loadBar(v, bound)})
	}

	tbl.AppendFooter(table.Row{footer})

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

// WriteUtilizationHTML renders res as a standalone echarts page: the merged
// series plus one line per location.
func WriteUtilizationHTML(w io.Writer, title string, res *aggregate.Result) error {
	labels := make([]string, len(res.Merged))
	for i := range labels {
		labels[i] = formatTime(res.Bins.Begin(i))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d locations", len(res.Locations))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Active locations", Max: res.Bound()}),
	)
	line.SetXAxis(labels)

	line.AddSeries(mergedSeries, lineData(res.Merged),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)

	for _, loc := range res.Locations {
		line.AddSeries(loc, lineData(res.PerLocation[loc]),
			charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidthThin, Type: "dashed"}),
		)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(line)

	if len(res.Labels) > 0 {
		page.AddCharts(labelChart(res))
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render utilization page: %w", err)
	}

	return nil
}

// labelChart plots the width in bins of every labelled child.
func labelChart(res *aggregate.Result) *charts.Bar {
	names := make([]string, len(res.Labels))
	data := make([]opts.BarData, len(res.Labels))

	for i, l := range res.Labels {
		names[i] = l.Name + "@" + l.Location
		data[i] = opts.BarData{Value: l.EndBin - l.StartBin + 1}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: labelChartTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Bins"}),
	)
	bar.SetXAxis(names).AddSeries("bins", data)

	return bar
}

func lineData(series []float64) []opts.LineData {
	data := make([]opts.LineData, len(series))
	for i, v := range series {
		data[i] = opts.LineData{Value: v}
	}

	return data
}

func loadBar(v, bound float64) string {
	if bound <= 0 {
		return ""
	}

	filled := int(max(0, min(v/bound, 1)) * barLength)

	return strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)
}
