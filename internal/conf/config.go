// config.go: settings struct for imagefinder and functions to load and write it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ConfigFileName is the name of the configuration file searched in the
// default config paths
const ConfigFileName = "config.yaml"

// Fallback modes for the media search wave
const (
	FallbackModeParallel   = "parallel"   // scientific and common searches in one wave
	FallbackModeSequential = "sequential" // common searches only for identifiers the scientific wave missed
)

// Duplicate identifier policies
const (
	DuplicatesError = "error" // abort before any probing
	DuplicatesLast  = "last"  // later row replaces the earlier one
)

// SupplierSettings locate product images on the supplier's own site.
type SupplierSettings struct {
	BaseURL      string // scheme and host of the supplier site
	PathTemplate string // image path, %s is replaced by the lowercased identifier
}

// MediaSearchSettings configure the fallback media search service.
type MediaSearchSettings struct {
	BaseURL    string   // scheme and host of the search service
	SearchPath string   // search endpoint path, the query goes into ?search=
	Strategies []string // extraction strategies in the order they are tried
	Extensions []string // accepted image path extensions
}

// CacheSettings control the per-run outcome cache.
type CacheSettings struct {
	Enabled bool
	TTL     time.Duration
}

// ResolverSettings control probing concurrency and HTTP behavior.
type ResolverSettings struct {
	PrimaryWorkers  int           // cap for the supplier probe wave
	FallbackWorkers int           // cap for the media search wave
	Timeout         time.Duration // per-request timeout
	UserAgent       string        // empty means built from version info
	FallbackMode    string        // parallel or sequential
	Cache           CacheSettings
}

// ColumnSettings name the catalog header cells.
type ColumnSettings struct {
	Identifier  string
	Genus       string
	Species     string
	CommonNames string
}

// CatalogSettings describe the input spreadsheet.
type CatalogSettings struct {
	Sheet      string // xlsx sheet, empty for the first sheet
	Columns    ColumnSettings
	Duplicates string // error or last
}

// OutputSettings describe the result file and console summary.
type OutputSettings struct {
	Column  string // name of the appended image URL column
	Summary bool   // print the run summary table
}

// MetricsSettings configure the Prometheus textfile export.
type MetricsSettings struct {
	Textfile string // empty disables the export
}

// TelemetrySettings configure optional error reporting.
type TelemetrySettings struct {
	SentryDSN   string
	Environment string
}

// Settings is the complete imagefinder configuration.
type Settings struct {
	Debug       bool
	Supplier    SupplierSettings
	MediaSearch MediaSearchSettings
	Resolver    ResolverSettings
	Catalog     CatalogSettings
	Output      OutputSettings
	Metrics     MetricsSettings
	Telemetry   TelemetrySettings
	Logging     logger.LoggingConfig
}

// Load reads defaults, the configuration file and environment overrides into
// a Settings struct and validates it. An empty configFile searches the
// default config paths; a missing file there is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	normalizeSettings(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// initViper registers defaults and environment bindings and reads the
// configuration file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-env").
			Build()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			GetLogger().Debug("No config file found, using defaults")
			return nil
		}
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Context("config_file", configFile).
			Build()
	}

	GetLogger().Debug("Loaded config file", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// normalizeSettings trims user input that is compared literally later
func normalizeSettings(s *Settings) {
	s.Supplier.BaseURL = strings.TrimRight(strings.TrimSpace(s.Supplier.BaseURL), "/")
	s.MediaSearch.BaseURL = strings.TrimRight(strings.TrimSpace(s.MediaSearch.BaseURL), "/")
	s.Resolver.FallbackMode = strings.ToLower(strings.TrimSpace(s.Resolver.FallbackMode))
	s.Catalog.Duplicates = strings.ToLower(strings.TrimSpace(s.Catalog.Duplicates))

	for i, ext := range s.MediaSearch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.MediaSearch.Extensions[i] = ext
	}
	for i, name := range s.MediaSearch.Strategies {
		s.MediaSearch.Strategies[i] = strings.ToLower(strings.TrimSpace(name))
	}
}

// DefaultConfigYAML returns the embedded default configuration file.
func DefaultConfigYAML() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, ConfigFileName)
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// WriteDefaultConfig writes the embedded default configuration to path.
// An existing file is only replaced when overwrite is set.
func WriteDefaultConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("config file already exists: %s", path).
				Category(errors.CategoryConflict).
				Context("operation", "write-default-config").
				Build()
		}
	}

	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FileError(fmt.Errorf("error creating config directory: %w", err), path)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config is not secret
		return errors.FileError(fmt.Errorf("error writing config file: %w", err), path)
	}

	GetLogger().Info("Created default config file", logger.String("path", path))
	return nil
}
