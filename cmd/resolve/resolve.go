package resolve

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/report"
	"github.com/tphakala/imagefinder/internal/resolver"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

// outputSuffix is appended to the input file name when no output is given
const outputSuffix = "_images"

// Command creates the resolve command, which resolves every item of a catalog.
func Command(v *viper.Viper, rt *runtimectx.Context) *cobra.Command {
	var output string
	var noSummary bool

	cmd := &cobra.Command{
		Use:   "resolve <input.xlsx|input.csv>",
		Short: "Resolve image URLs for a catalog",
		Long: `Probe the supplier site for every item of the catalog, search Wikimedia
Commons for items the supplier has no image for, and write the catalog back
out with an image URL column.`,
		Args: cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			if noSummary {
				rt.Settings.Output.Summary = false
			}
			if output == "" {
				output = DefaultOutputPath(args[0])
			}
			return Run(cmd.Context(), rt, args[0], output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, .csv or .xlsx (default: <input>_images.csv)")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "Do not print the run summary table")
	setupFlags(cmd, v)

	return cmd
}

// setupFlags configures flags that override configuration keys.
func setupFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Int("primary-workers", conf.DefaultPrimaryWorkers, "Concurrent supplier site probes")
	cmd.Flags().Int("fallback-workers", conf.DefaultFallbackWorkers, "Concurrent Wikimedia searches")
	cmd.Flags().Duration("timeout", conf.DefaultTimeout, "Per-request timeout")
	cmd.Flags().String("duplicates", conf.DuplicatesError, "Duplicate item numbers: error or last")
	cmd.Flags().String("fallback-mode", conf.FallbackModeParallel, "Fallback searches: parallel or sequential")
	cmd.Flags().String("sheet", "", "Sheet to read from an .xlsx catalog (default: first sheet)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")

	bindings := map[string]string{
		"resolver.primaryworkers":  "primary-workers",
		"resolver.fallbackworkers": "fallback-workers",
		"resolver.timeout":         "timeout",
		"catalog.duplicates":       "duplicates",
		"resolver.fallbackmode":    "fallback-mode",
		"catalog.sheet":            "sheet",
		"metrics.textfile":         "metrics-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			GetLogger().Error("Failed to bind flag", logger.String("flag", flag), logger.Error(err))
		}
	}
}

// DefaultOutputPath derives the output file from the input file:
// "catalog.xlsx" becomes "catalog_images.csv" in the same directory.
func DefaultOutputPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + outputSuffix + ".csv"
}

// Run reads the catalog at input, resolves it and writes the result to output.
func Run(ctx context.Context, rt *runtimectx.Context, input, output string, stdout io.Writer) error {
	s := rt.Settings
	log := GetLogger()

	cat, err := catalog.Read(input, ReadOptions(s))
	if err != nil {
		return err
	}

	engine, err := resolver.NewEngineFromSettings(s, rt.Client, rt.Metrics.Resolver, rt.Metrics.Resolver)
	if err != nil {
		return err
	}

	res, err := engine.Resolve(ctx, cat.Records)
	if err != nil {
		return err
	}

	if err := catalog.Write(output, cat.Header, s.Output.Column, res.Map.Rows(cat.Records)); err != nil {
		return err
	}
	log.Info("Catalog resolved",
		logger.String("run_id", res.RunID),
		logger.String("input", input),
		logger.String("output", output),
		logger.Int("failures", res.Failures()))

	if s.Metrics.Textfile != "" {
		// Metrics are secondary output; a failed export does not fail the run
		if err := rt.Metrics.WriteTextfile(s.Metrics.Textfile); err != nil {
			log.Warn("Failed to write metrics textfile", logger.Error(err))
		}
	}

	if s.Output.Summary {
		if err := report.Summary(stdout, res); err != nil {
			return fmt.Errorf("failed to print summary: %w", err)
		}
		if _, err := fmt.Fprintf(stdout, "Results written to %s\n", output); err != nil {
			return err
		}
	}

	return nil
}

// ReadOptions maps catalog settings to reader options
func ReadOptions(s *conf.Settings) catalog.ReadOptions {
	return catalog.ReadOptions{
		Sheet: s.Catalog.Sheet,
		Columns: catalog.Columns{
			Identifier:  s.Catalog.Columns.Identifier,
			Genus:       s.Catalog.Columns.Genus,
			Species:     s.Catalog.Columns.Species,
			CommonNames: s.Catalog.Columns.CommonNames,
		},
		Duplicates: catalog.DuplicatePolicy(s.Catalog.Duplicates),
	}
}

// GetLogger returns the resolve command logger
func GetLogger() logger.Logger {
	return logger.Global().Module("resolve")
}
