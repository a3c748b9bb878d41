// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with flag definitions and tests
const (
	DefaultSupplierBaseURL      = "https://www.jelitto.com"
	DefaultSupplierPathTemplate = "/out/pictures/master/product/1/%s.jpg"
	DefaultMediaSearchBaseURL   = "https://commons.wikimedia.org"
	DefaultMediaSearchPath      = "/w/index.php"
	DefaultPrimaryWorkers       = 25
	DefaultFallbackWorkers      = 50
	DefaultTimeout              = 30 * time.Second
	DefaultOutputColumn         = "image_url"
)

// DefaultStrategies lists extraction strategies in the order they are tried
var DefaultStrategies = []string{"search-result", "gallery"}

// DefaultExtensions lists the accepted image path extensions
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".pdf"}

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("supplier.baseurl", DefaultSupplierBaseURL)
	v.SetDefault("supplier.pathtemplate", DefaultSupplierPathTemplate)

	v.SetDefault("mediasearch.baseurl", DefaultMediaSearchBaseURL)
	v.SetDefault("mediasearch.searchpath", DefaultMediaSearchPath)
	v.SetDefault("mediasearch.strategies", DefaultStrategies)
	v.SetDefault("mediasearch.extensions", DefaultExtensions)

	v.SetDefault("resolver.primaryworkers", DefaultPrimaryWorkers)
	v.SetDefault("resolver.fallbackworkers", DefaultFallbackWorkers)
	v.SetDefault("resolver.timeout", DefaultTimeout)
	v.SetDefault("resolver.useragent", "")
	v.SetDefault("resolver.fallbackmode", FallbackModeParallel)
	v.SetDefault("resolver.cache.enabled", true)
	v.SetDefault("resolver.cache.ttl", time.Hour)

	v.SetDefault("catalog.sheet", "")
	v.SetDefault("catalog.columns.identifier", "Item No.")
	v.SetDefault("catalog.columns.genus", "Genus")
	v.SetDefault("catalog.columns.species", "Species")
	v.SetDefault("catalog.columns.commonnames", "Common Names")
	v.SetDefault("catalog.duplicates", DuplicatesError)

	v.SetDefault("output.column", DefaultOutputColumn)
	v.SetDefault("output.summary", true)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("telemetry.sentrydsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/imagefinder.log")
	v.SetDefault("logging.fileoutput.level", "debug")
}
