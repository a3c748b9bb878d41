package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a config.yaml in a temp dir and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	settings, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultSupplierBaseURL, settings.Supplier.BaseURL)
	assert.Equal(t, DefaultSupplierPathTemplate, settings.Supplier.PathTemplate)
	assert.Equal(t, DefaultMediaSearchBaseURL, settings.MediaSearch.BaseURL)
	assert.Equal(t, DefaultMediaSearchPath, settings.MediaSearch.SearchPath)
	assert.Equal(t, []string{"search-result", "gallery"}, settings.MediaSearch.Strategies)
	assert.Equal(t, []string{".png", ".jpg", ".jpeg", ".pdf"}, settings.MediaSearch.Extensions)
	assert.Equal(t, 25, settings.Resolver.PrimaryWorkers)
	assert.Equal(t, 50, settings.Resolver.FallbackWorkers)
	assert.Equal(t, 30*time.Second, settings.Resolver.Timeout)
	assert.Equal(t, FallbackModeParallel, settings.Resolver.FallbackMode)
	assert.True(t, settings.Resolver.Cache.Enabled)
	assert.Equal(t, "Item No.", settings.Catalog.Columns.Identifier)
	assert.Equal(t, "Common Names", settings.Catalog.Columns.CommonNames)
	assert.Equal(t, DuplicatesError, settings.Catalog.Duplicates)
	assert.Equal(t, "image_url", settings.Output.Column)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoad_EmbeddedConfigMatchesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	data, err := DefaultConfigYAML()
	require.NoError(t, err)

	fromFile, err := Load(viper.New(), writeConfig(t, string(data)))
	require.NoError(t, err)

	fromDefaults, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, fromDefaults.Supplier, fromFile.Supplier)
	assert.Equal(t, fromDefaults.MediaSearch, fromFile.MediaSearch)
	assert.Equal(t, fromDefaults.Resolver, fromFile.Resolver)
	assert.Equal(t, fromDefaults.Catalog, fromFile.Catalog)
	assert.Equal(t, fromDefaults.Output, fromFile.Output)
}

func TestLoad_FileOverridesAndNormalization(t *testing.T) {
	path := writeConfig(t, `
supplier:
  baseurl: "https://shop.example.com/ "
mediasearch:
  extensions: [PNG, ".JPG"]
  strategies: [" Gallery "]
resolver:
  primaryworkers: 5
  timeout: 5s
  fallbackmode: Sequential
catalog:
  duplicates: LAST
  columns:
    identifier: Art.-Nr.
`)

	settings, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", settings.Supplier.BaseURL)
	assert.Equal(t, []string{".png", ".jpg"}, settings.MediaSearch.Extensions)
	assert.Equal(t, []string{"gallery"}, settings.MediaSearch.Strategies)
	assert.Equal(t, 5, settings.Resolver.PrimaryWorkers)
	assert.Equal(t, 50, settings.Resolver.FallbackWorkers, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, settings.Resolver.Timeout)
	assert.Equal(t, FallbackModeSequential, settings.Resolver.FallbackMode)
	assert.Equal(t, DuplicatesLast, settings.Catalog.Duplicates)
	assert.Equal(t, "Art.-Nr.", settings.Catalog.Columns.Identifier)
	assert.Equal(t, "Genus", settings.Catalog.Columns.Genus)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMAGEFINDER_RESOLVER_FALLBACKWORKERS", "8")
	t.Setenv("IMAGEFINDER_MEDIASEARCH_BASEURL", "https://media.example.org")

	settings, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8, settings.Resolver.FallbackWorkers)
	assert.Equal(t, "https://media.example.org", settings.MediaSearch.BaseURL)
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMAGEFINDER_RESOLVER_PRIMARYWORKERS", "zero")

	_, err := Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAGEFINDER_RESOLVER_PRIMARYWORKERS")
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
resolver:
  primaryworkers: 0
  fallbackmode: eventually
`)

	_, err := Load(viper.New(), path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	require.NoError(t, WriteDefaultConfig(path, false))

	written, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	embedded, err := DefaultConfigYAML()
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	require.Error(t, WriteDefaultConfig(path, false), "existing file is kept")
	require.NoError(t, WriteDefaultConfig(path, true))
}

func TestGetDefaultConfigPaths(t *testing.T) {
	if runtime.GOOS == osWindows {
		t.Skip("home directory layout differs on Windows")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(home, ".config", "imagefinder"), paths[0])

	require.NoError(t, os.MkdirAll(paths[0], 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(paths[0], ConfigFileName), []byte("debug: true\n"), 0o600))

	paths, err = GetDefaultConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, ".config", "imagefinder")}, paths)

	file, err := DefaultConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "imagefinder", ConfigFileName), file)
}
