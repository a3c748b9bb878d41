package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/imagefinder/internal/conf"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

// Command creates the config parent command
func Command(_ *viper.Viper, rt *runtimectx.Context) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the imagefinder configuration file",
	}

	configCmd.AddCommand(InitCommand(), ShowCommand(rt))

	return configCmd
}

// InitCommand writes the default configuration file. It runs without
// loading settings so it works when the existing file is broken.
func InitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Long:  "Write the default configuration to path, or to ~/.config/imagefinder/config.yaml when no path is given.",
		Args:  cobra.MaximumNArgs(1),
		Annotations: map[string]string{
			runtimectx.SkipSetupAnnotation: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				var err error
				if path, err = conf.DefaultConfigFile(); err != nil {
					return err
				}
			}

			if err := conf.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

// ShowCommand prints the effective settings after defaults, config file,
// environment and flags are applied.
func ShowCommand(rt *runtimectx.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return WriteSettings(cmd.OutOrStdout(), rt.Settings)
		},
	}
}

// WriteSettings encodes settings as YAML. The Sentry DSN is masked.
func WriteSettings(w io.Writer, settings *conf.Settings) error {
	masked := *settings
	if masked.Telemetry.SentryDSN != "" {
		masked.Telemetry.SentryDSN = "********"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}
