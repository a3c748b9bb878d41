package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/imagefinder/cmd/config"
	"github.com/tphakala/imagefinder/cmd/lookup"
	"github.com/tphakala/imagefinder/cmd/resolve"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(rt *runtimectx.Context) *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "imagefinder",
		Short:        "Find product images for a plant catalog",
		Long:         "Resolves an image URL for every item of a seed catalog, first on the supplier site and then on Wikimedia Commons.",
		SilenceUsage: true,
		Version:      rt.BuildInfo.Version(),
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		// Flag names are static; a bind failure is a programming error
		panic(err)
	}

	subcommands := []*cobra.Command{
		resolve.Command(v, rt),
		lookup.Command(v, rt),
		configcmd.Command(v, rt),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, skip := cmd.Annotations[runtimectx.SkipSetupAnnotation]; skip {
			return nil
		}
		return rt.Setup(v, configFile)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file (default: search ~/.config/imagefinder and /etc/imagefinder)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
