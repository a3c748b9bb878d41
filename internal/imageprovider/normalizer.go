package imageprovider

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/conf"
)

// NormalizerConfig locates the supplier site and the media search endpoint.
// Zero fields take the defaults from conf.
type NormalizerConfig struct {
	SupplierBaseURL string
	PathTemplate    string // must contain a single %s
	MediaBaseURL    string
	SearchPath      string
}

// Normalizer derives probe targets from catalog records. It holds no
// mutable state; all methods are pure.
type Normalizer struct {
	supplierBase string
	pathTemplate string
	searchURL    string
}

// NewNormalizer creates a Normalizer from cfg.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.SupplierBaseURL == "" {
		cfg.SupplierBaseURL = conf.DefaultSupplierBaseURL
	}
	if cfg.PathTemplate == "" {
		cfg.PathTemplate = conf.DefaultSupplierPathTemplate
	}
	if cfg.MediaBaseURL == "" {
		cfg.MediaBaseURL = conf.DefaultMediaSearchBaseURL
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = conf.DefaultMediaSearchPath
	}

	return &Normalizer{
		supplierBase: strings.TrimRight(cfg.SupplierBaseURL, "/"),
		pathTemplate: cfg.PathTemplate,
		searchURL:    strings.TrimRight(cfg.MediaBaseURL, "/") + cfg.SearchPath,
	}
}

// NormalizerConfigFromSettings maps loaded settings onto a NormalizerConfig
func NormalizerConfigFromSettings(s *conf.Settings) NormalizerConfig {
	return NormalizerConfig{
		SupplierBaseURL: s.Supplier.BaseURL,
		PathTemplate:    s.Supplier.PathTemplate,
		MediaBaseURL:    s.MediaSearch.BaseURL,
		SearchPath:      s.MediaSearch.SearchPath,
	}
}

// PrimaryTarget returns the supplier image URL for rec: the lowercased
// identifier substituted into the path template.
func (n *Normalizer) PrimaryTarget(rec catalog.Record) ProbeTarget {
	id := url.PathEscape(strings.ToLower(strings.TrimSpace(rec.Identifier)))
	return ProbeTarget{
		Identifier: rec.Identifier,
		URL:        n.supplierBase + fmt.Sprintf(n.pathTemplate, id),
		Kind:       KindPrimarySite,
	}
}

// FallbackScientificTarget returns a media search for the lowercased
// "genus species" pair. The space is sent as %20, never as +.
func (n *Normalizer) FallbackScientificTarget(rec catalog.Record) ProbeTarget {
	genus := norm.NFC.String(strings.TrimSpace(rec.Genus))
	species := norm.NFC.String(strings.TrimSpace(rec.Species))
	query := strings.ToLower(genus + " " + species)

	return ProbeTarget{
		Identifier: rec.Identifier,
		URL:        n.searchURL + "?search=" + escapeKeepSpaces(query),
		Kind:       KindFallbackScientific,
	}
}

// FallbackCommonTarget returns a media search for the first common name,
// its words joined with +. ok is false when the record has no common name.
func (n *Normalizer) FallbackCommonTarget(rec catalog.Record) (target ProbeTarget, ok bool) {
	if len(rec.CommonNames) == 0 {
		return ProbeTarget{}, false
	}

	words := strings.Fields(norm.NFC.String(rec.CommonNames[0]))
	if len(words) == 0 {
		return ProbeTarget{}, false
	}
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}

	return ProbeTarget{
		Identifier: rec.Identifier,
		URL:        n.searchURL + "?search=" + strings.Join(words, "+"),
		Kind:       KindFallbackCommon,
	}, true
}

// escapeKeepSpaces query-escapes s with spaces as %20. QueryEscape turns a
// literal + into %2B, so every remaining + came from a space.
func escapeKeepSpaces(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
