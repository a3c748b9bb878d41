package imageprovider

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/tphakala/imagefinder/internal/errors"
)

// ExtractionStrategy finds a candidate media URL on a search results page.
type ExtractionStrategy interface {
	// Name identifies the strategy in config and logs
	Name() string
	// Extract returns the first candidate, ok is false when nothing matches
	Extract(doc *goquery.Document) (candidate string, ok bool)
}

// SelectorStrategy returns the attribute Attr of the first element matching
// the CSS selector Selector that carries a non-empty value for it.
type SelectorStrategy struct {
	StrategyName string
	Selector     string
	Attr         string

	matcher cascadia.Selector
}

// NewSelectorStrategy compiles selector once for reuse across pages.
func NewSelectorStrategy(name, selector, attr string) (*SelectorStrategy, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid selector %q for strategy %q: %w", selector, name, err)).
			Component("imageprovider").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &SelectorStrategy{StrategyName: name, Selector: selector, Attr: attr, matcher: m}, nil
}

func (s *SelectorStrategy) Name() string { return s.StrategyName }

func (s *SelectorStrategy) Extract(doc *goquery.Document) (string, bool) {
	var sel *goquery.Selection
	if s.matcher != nil {
		sel = doc.FindMatcher(s.matcher)
	} else {
		sel = doc.Find(s.Selector)
	}

	var candidate string
	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if v, ok := el.Attr(s.Attr); ok && strings.TrimSpace(v) != "" {
			candidate = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return candidate, candidate != ""
}

// Built-in strategy names
const (
	StrategySearchResult = "search-result"
	StrategyGallery      = "gallery"
)

// builtinStrategies maps names to selector and attribute
var builtinStrategies = map[string][2]string{
	// first anchor of a search result listing
	StrategySearchResult: {"li.mw-search-result a", "href"},
	// first image of a results gallery
	StrategyGallery: {"ul.gallery img", "src"},
}

// DefaultStrategies returns the built-in strategies in their default order.
func DefaultStrategies() []ExtractionStrategy {
	strategies, _ := StrategiesByName([]string{StrategySearchResult, StrategyGallery})
	return strategies
}

// StrategiesByName returns the built-in strategies for names, in the given
// order. Unknown names are an error.
func StrategiesByName(names []string) ([]ExtractionStrategy, error) {
	strategies := make([]ExtractionStrategy, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		def, ok := builtinStrategies[key]
		if !ok {
			return nil, errors.Newf("unknown extraction strategy %q", name).
				Component("imageprovider").
				Category(errors.CategoryConfiguration).
				Context("known", []string{StrategySearchResult, StrategyGallery}).
				Build()
		}
		s, err := NewSelectorStrategy(key, def[0], def[1])
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
