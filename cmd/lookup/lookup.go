package lookup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/report"
	"github.com/tphakala/imagefinder/internal/resolver"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

// Command creates the lookup command, which resolves a single item.
func Command(_ *viper.Viper, rt *runtimectx.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <identifier> <genus> <species> [common names]",
		Short: "Resolve the image URL of a single item",
		Long: `Resolve one item the same way resolve does for a catalog and print the
chosen image URL followed by every probe outcome. Common names are comma
separated; several arguments are joined with commas.`,
		Example: `  imagefinder lookup X123 Echinacea purpurea "Purple Coneflower, Eastern Purple Coneflower"`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), rt, RecordFromArgs(args), cmd.OutOrStdout())
		},
	}

	return cmd
}

// RecordFromArgs builds a catalog record from command arguments
func RecordFromArgs(args []string) catalog.Record {
	rec := catalog.Record{
		Identifier: strings.TrimSpace(args[0]),
		Genus:      strings.TrimSpace(args[1]),
		Species:    strings.TrimSpace(args[2]),
		Row:        1,
	}
	if len(args) > 3 {
		rec.CommonNames = catalog.SplitCommonNames(strings.Join(args[3:], ","))
	}
	rec.Fields = []string{rec.Identifier, rec.Genus, rec.Species, strings.Join(rec.CommonNames, ", ")}
	return rec
}

// Run resolves rec and prints the result.
func Run(ctx context.Context, rt *runtimectx.Context, rec catalog.Record, stdout io.Writer) error {
	engine, err := resolver.NewEngineFromSettings(rt.Settings, rt.Client, rt.Metrics.Resolver, nil)
	if err != nil {
		return err
	}

	res, err := engine.Resolve(ctx, []catalog.Record{rec})
	if err != nil {
		return err
	}

	r, _ := res.Map.Get(rec.Identifier)
	if r.Found {
		if _, err := fmt.Fprintf(stdout, "%s: %s (%s)\n\n", r.Identifier, r.URL, r.SourceLabel()); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(stdout, "%s: no image found\n\n", r.Identifier); err != nil {
			return err
		}
	}

	return report.Outcomes(stdout, res)
}
