// Package report renders view results as terminal tables and HTML charts.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
)

const (
	timeDigits = 3
	msgNoData  = "No intervals in view"
)

// LocationRow summarizes the intervals of one location.
type LocationRow struct {
	Location   string  `json:"location"`
	Intervals  int     `json:"intervals"`
	Primitives int     `json:"primitives"`
	Busy       float64 `json:"busy"`
	First      float64 `json:"first"`
	Last       float64 `json:"last"`
}

// Summarize returns one row per location of s, in location order.
func Summarize(s *snapshot.Snapshot) []LocationRow {
	groups := s.ByLocation()
	rows := make([]LocationRow, 0, len(groups))

	for _, loc := range s.Locations() {
		ivs := groups[loc]
		row := LocationRow{Location: loc, Intervals: len(ivs), First: ivs[0].Enter, Last: ivs[0].Leave}
		primitives := make(map[string]struct{})

		for _, iv := range ivs {
			row.Busy += iv.Duration()
			row.First = min(row.First, iv.Enter)
			row.Last = max(row.Last, iv.Leave)
			primitives[iv.Primitive] = struct{}{}
		}

		row.Primitives = len(primitives)
		rows = append(rows, row)
	}

	return rows
}

// TableOptions controls table output.
type TableOptions struct {
	// MaxRows truncates the table; zero prints every row.
	MaxRows int
	// Color enables ANSI colors in status lines.
	Color bool
}

// WriteWindow prints the per-location summary of s.
func WriteWindow(w io.Writer, s *snapshot.Snapshot, opts TableOptions) error {
	rows := Summarize(s)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, msgNoData)

		return err
	}

	shown := rows
	if opts.MaxRows > 0 && len(shown) > opts.MaxRows {
		shown = shown[:opts.MaxRows]
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Location", "Intervals", "Primitives", "Busy", "First", "Last"})

	for _, row := range shown {
		tbl.AppendRow(table.Row{
			row.Location,
			humanize.Comma(int64(row.Intervals)),
			row.Primitives,
			formatTime(row.Busy),
			formatTime(row.First),
			formatTime(row.Last),
		})
	}

	footer := fmt.Sprintf("Total: %s intervals on %d locations", humanize.Comma(int64(s.Len())), len(rows))
	if len(shown) < len(rows) {
		footer += fmt.Sprintf(" (%d shown)", len(shown))
	}

	tbl.AppendFooter(table.Row{footer})

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

// FormatStatus renders a status line, colored by phase when useColor is set.
func FormatStatus(st intervalcache.Status, useColor bool) string {
	var c *color.Color

	switch {
	case st.NarrowWindow:
		c = color.New(color.FgYellow)
	case st.Phase == intervalcache.PhaseReady:
		c = color.New(color.FgGreen)
	case st.Phase == intervalcache.PhaseLoading:
		c = color.New(color.FgYellow)
	case st.Phase == intervalcache.PhaseError:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.Reset)
	}

	if useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	line := strings.ToUpper(st.Phase.String())
	if st.Message != "" {
		line += ": " + st.Message
	}

	return c.Sprint(line)
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	return tbl
}

func formatTime(v float64) string {
	return humanize.FtoaWithDigits(v, timeDigits)
}
