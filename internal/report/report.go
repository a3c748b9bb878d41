// Package report renders resolution results as console tables.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/tphakala/imagefinder/internal/imageprovider"
	"github.com/tphakala/imagefinder/internal/resolver"
)

// Style picks rounded box drawing for terminals and plain ASCII otherwise
func Style(w io.Writer) table.Style {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return table.StyleRounded
	}
	return table.StyleDefault
}

// Summary writes the per-source totals of a run.
func Summary(w io.Writer, res *resolver.Result) error {
	counts := res.Map.CountBySource()

	tw := newWriter(w)
	tw.SetTitle("Run " + res.RunID)
	tw.AppendHeader(table.Row{"Result", "Items"})
	tw.AppendRows([]table.Row{
		{"Supplier site", counts[imageprovider.KindPrimarySite.String()]},
		{"Wikimedia, scientific name", counts[imageprovider.KindFallbackScientific.String()]},
		{"Wikimedia, common name", counts[imageprovider.KindFallbackCommon.String()]},
		{"Not found", counts[resolver.SourceNone]},
	})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Total", res.Map.Len()})
	tw.AppendRow(table.Row{"Failures", res.Failures()})
	tw.AppendRow(table.Row{"Duration", res.Duration.Round(time.Millisecond).String()})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// Outcomes writes every probe outcome of a run, one row per target.
func Outcomes(w io.Writer, res *resolver.Result) error {
	tw := newWriter(w)
	tw.AppendHeader(table.Row{"#", "Kind", "Result", "Target", "Image / error"})
	for i, o := range res.Outcomes {
		detail := o.ImageURL
		if o.Err != nil {
			detail = o.Err.Error()
		}
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), o.Kind.String(), o.Result.String(), o.URL, detail})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: 80},
		{Number: 5, WidthMax: 80},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func newWriter(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(Style(w))
	return tw
}
