package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imagefinder/internal/buildinfo"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

func TestRootCommand_Subcommands(t *testing.T) {
	rootCmd := RootCommand(runtimectx.New(buildinfo.NewContext("v0.1.0", "")))

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"resolve", "lookup", "config"})
	assert.Equal(t, "v0.1.0", rootCmd.Version)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("debug"))
}

func TestRootCommand_ConfigInitSkipsSetup(t *testing.T) {
	rt := runtimectx.New(buildinfo.NewContext("", ""))
	rootCmd := RootCommand(rt)

	path := filepath.Join(t.TempDir(), "config.yaml")
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"config", "init", path})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Nil(t, rt.Settings, "settings are not loaded for config init")
	assert.NoError(t, rt.Close())
}

func TestRootCommand_ConfigShowLoadsSettings(t *testing.T) {
	rt := runtimectx.New(buildinfo.NewContext("", ""))
	rootCmd := RootCommand(rt)

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("resolver:\n  primaryworkers: 9\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", configFile, "config", "show"})
	require.NoError(t, rootCmd.Execute())
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.Settings)
	assert.Equal(t, 9, rt.Settings.Resolver.PrimaryWorkers)
	assert.Contains(t, out.String(), "primaryworkers: 9")
}

func TestRootCommand_InvalidConfigFails(t *testing.T) {
	rt := runtimectx.New(buildinfo.NewContext("", ""))
	rootCmd := RootCommand(rt)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "show"})
	assert.Error(t, rootCmd.Execute())
}
