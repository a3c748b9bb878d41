package main

import (
	"fmt"
	"os"

	"github.com/tphakala/imagefinder/cmd"
	"github.com/tphakala/imagefinder/internal/buildinfo"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

// buildDate and version are set at build time with -ldflags
var (
	buildDate string
	version   string
)

func main() {
	rt := runtimectx.New(buildinfo.NewContext(version, buildDate))

	rootCmd := cmd.RootCommand(rt)
	err := rootCmd.Execute()

	if closeErr := rt.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
