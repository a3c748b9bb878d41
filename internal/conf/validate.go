// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every
// problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateSupplierSettings,
		validateMediaSearchSettings,
		validateResolverSettings,
		validateCatalogSettings,
		validateOutputSettings,
		validateLoggingSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSupplierSettings(s *Settings) []string {
	var errs []string

	if err := validateBaseURL(s.Supplier.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("supplier.baseurl: %v", err))
	}

	tmpl := s.Supplier.PathTemplate
	switch {
	case strings.Count(tmpl, "%s") != 1 || strings.Count(tmpl, "%") != 1:
		errs = append(errs, fmt.Sprintf("supplier.pathtemplate must contain exactly one %%s placeholder, got %q", tmpl))
	case !strings.HasPrefix(tmpl, "/"):
		errs = append(errs, fmt.Sprintf("supplier.pathtemplate must start with '/', got %q", tmpl))
	}

	return errs
}

func validateMediaSearchSettings(s *Settings) []string {
	var errs []string
	ms := &s.MediaSearch

	if err := validateBaseURL(ms.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("mediasearch.baseurl: %v", err))
	}
	if !strings.HasPrefix(ms.SearchPath, "/") {
		errs = append(errs, fmt.Sprintf("mediasearch.searchpath must start with '/', got %q", ms.SearchPath))
	}

	if len(ms.Strategies) == 0 {
		errs = append(errs, "mediasearch.strategies must list at least one strategy")
	}
	for _, name := range ms.Strategies {
		if name == "" {
			errs = append(errs, "mediasearch.strategies contains an empty name")
		}
	}

	if len(ms.Extensions) == 0 {
		errs = append(errs, "mediasearch.extensions must list at least one extension")
	}
	for _, ext := range ms.Extensions {
		if len(ext) < 2 {
			errs = append(errs, fmt.Sprintf("mediasearch.extensions contains invalid extension %q", ext))
		}
	}

	return errs
}

func validateResolverSettings(s *Settings) []string {
	var errs []string
	r := &s.Resolver

	if r.PrimaryWorkers < 1 || r.PrimaryWorkers > maxWorkers {
		errs = append(errs, fmt.Sprintf("resolver.primaryworkers must be between 1 and %d, got %d", maxWorkers, r.PrimaryWorkers))
	}
	if r.FallbackWorkers < 1 || r.FallbackWorkers > maxWorkers {
		errs = append(errs, fmt.Sprintf("resolver.fallbackworkers must be between 1 and %d, got %d", maxWorkers, r.FallbackWorkers))
	}
	if r.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("resolver.timeout must be positive, got %s", r.Timeout))
	}
	if r.FallbackMode != FallbackModeParallel && r.FallbackMode != FallbackModeSequential {
		errs = append(errs, fmt.Sprintf("resolver.fallbackmode must be %q or %q, got %q",
			FallbackModeParallel, FallbackModeSequential, r.FallbackMode))
	}
	if r.Cache.Enabled && r.Cache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("resolver.cache.ttl must be positive when the cache is enabled, got %s", r.Cache.TTL))
	}

	return errs
}

func validateCatalogSettings(s *Settings) []string {
	var errs []string
	c := &s.Catalog

	required := map[string]string{
		"identifier": c.Columns.Identifier,
		"genus":      c.Columns.Genus,
		"species":    c.Columns.Species,
	}
	for _, key := range []string{"identifier", "genus", "species"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Sprintf("catalog.columns.%s must not be empty", key))
		}
	}

	if c.Duplicates != DuplicatesError && c.Duplicates != DuplicatesLast {
		errs = append(errs, fmt.Sprintf("catalog.duplicates must be %q or %q, got %q",
			DuplicatesError, DuplicatesLast, c.Duplicates))
	}

	return errs
}

func validateOutputSettings(s *Settings) []string {
	if strings.TrimSpace(s.Output.Column) == "" {
		return []string{"output.column must not be empty"}
	}
	return nil
}

func validateLoggingSettings(s *Settings) []string {
	var errs []string
	check := func(key, level string) {
		if level == "" {
			return
		}
		if err := validateEnvLogLevel(level); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	check("logging.defaultlevel", s.Logging.DefaultLevel)
	if s.Logging.Console != nil {
		check("logging.console.level", s.Logging.Console.Level)
	}
	if s.Logging.FileOutput != nil {
		check("logging.fileoutput.level", s.Logging.FileOutput.Level)
	}
	for module, level := range s.Logging.ModuleLevels {
		check("logging.modulelevels."+module, level)
	}

	return errs
}

// validateBaseURL accepts absolute http(s) URLs without a path
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing in %q", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("base URL must not carry a path, got %q", raw)
	}
	return nil
}
