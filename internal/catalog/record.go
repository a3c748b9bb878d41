// Package catalog reads supplier price lists into records and writes the
// resolved image URLs back out as CSV or XLSX.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tphakala/imagefinder/internal/logger"
)

// Record is one catalog row. Records are never modified after reading.
type Record struct {
	Identifier  string   // supplier item number in its original spelling
	Genus       string   // trimmed
	Species     string   // trimmed
	CommonNames []string // comma separated names in source order, possibly empty
	Fields      []string // original row values, padded to the header width
	Row         int      // 1-based source row, header included
}

// Key returns the identity used to compare identifiers
func (r Record) Key() string {
	return Key(r.Identifier)
}

// Key folds an identifier for comparison, so "x123" and "X123" are the
// same item. Case folding is Unicode aware.
func Key(identifier string) string {
	// A Caser is stateful, so each call gets its own
	return cases.Fold().String(strings.TrimSpace(identifier))
}

// SplitCommonNames splits a common names cell on commas, dropping empty
// entries and surrounding whitespace.
func SplitCommonNames(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}

	parts := strings.Split(cell, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// GetLogger returns the catalog module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("catalog")
}
