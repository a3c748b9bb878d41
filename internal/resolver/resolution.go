package resolver

import (
	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/imageprovider"
	"github.com/tphakala/imagefinder/internal/logger"
)

// SourceNone labels identifiers without an image in summaries
const SourceNone = "none"

// Resolution is the final answer for one identifier. Source is meaningful
// only when Found is true.
type Resolution struct {
	Identifier string
	URL        string
	Source     imageprovider.ProbeKind
	Found      bool
}

// SourceLabel returns the source name, or SourceNone
func (r Resolution) SourceLabel() string {
	if !r.Found {
		return SourceNone
	}
	return r.Source.String()
}

// ResolutionMap holds one Resolution per input identifier. Lookups use the
// case-folded identifier key. It is not safe for concurrent use; each wave
// is merged by a single caller after the wave completes.
type ResolutionMap struct {
	entries map[string]*Resolution
	order   []string // keys in input order
}

// NewResolutionMap creates a "no URL found" entry for every record. Records
// sharing a key collapse to one entry.
func NewResolutionMap(records []catalog.Record) *ResolutionMap {
	m := &ResolutionMap{
		entries: make(map[string]*Resolution, len(records)),
		order:   make([]string, 0, len(records)),
	}
	for _, rec := range records {
		key := rec.Key()
		if _, ok := m.entries[key]; ok {
			continue
		}
		m.entries[key] = &Resolution{Identifier: rec.Identifier}
		m.order = append(m.order, key)
	}
	return m
}

// ApplyPrimary records confirmed supplier probes. Outcomes of other kinds
// are ignored.
func (m *ResolutionMap) ApplyPrimary(outcomes []imageprovider.ProbeOutcome) {
	for i := range outcomes {
		o := &outcomes[i]
		if o.Kind != imageprovider.KindPrimarySite {
			GetLogger().Debug("Ignoring non-primary outcome in primary merge",
				logger.String("identifier", o.Identifier),
				logger.String("kind", o.Kind.String()))
			continue
		}
		m.apply(o)
	}
}

// ApplyFallback overlays confirmed media search results on entries without
// a supplier image. Per identifier the scientific name result beats the
// common name result, whatever order the outcomes arrive in. It may be
// called once per fallback wave.
func (m *ResolutionMap) ApplyFallback(outcomes []imageprovider.ProbeOutcome) {
	for i := range outcomes {
		o := &outcomes[i]
		if o.Kind == imageprovider.KindPrimarySite {
			GetLogger().Debug("Ignoring primary outcome in fallback merge",
				logger.String("identifier", o.Identifier))
			continue
		}
		m.apply(o)
	}
}

// apply sets the entry for o when o is confirmed and ranks above what the
// entry already holds. Equal kinds keep the smaller URL so the result does
// not depend on arrival order.
func (m *ResolutionMap) apply(o *imageprovider.ProbeOutcome) {
	entry, ok := m.entries[catalog.Key(o.Identifier)]
	if !ok {
		GetLogger().Debug("Ignoring outcome for unknown identifier",
			logger.String("identifier", o.Identifier),
			logger.String("kind", o.Kind.String()))
		return
	}
	if !o.Confirmed() {
		return
	}

	switch {
	case !entry.Found:
	case o.Kind.Outranks(entry.Source):
	case o.Kind == entry.Source && o.ImageURL < entry.URL:
	default:
		return
	}

	entry.URL = o.ImageURL
	entry.Source = o.Kind
	entry.Found = true
}

// Merge builds the map for records from both waves.
func Merge(records []catalog.Record, primary, fallback []imageprovider.ProbeOutcome) *ResolutionMap {
	m := NewResolutionMap(records)
	m.ApplyPrimary(primary)
	m.ApplyFallback(fallback)
	return m
}

// Get returns the resolution for identifier, matched case-insensitively.
func (m *ResolutionMap) Get(identifier string) (Resolution, bool) {
	entry, ok := m.entries[catalog.Key(identifier)]
	if !ok {
		return Resolution{}, false
	}
	return *entry, true
}

// Found reports whether identifier already has an image URL
func (m *ResolutionMap) Found(identifier string) bool {
	r, ok := m.Get(identifier)
	return ok && r.Found
}

// Len returns the number of entries
func (m *ResolutionMap) Len() int {
	return len(m.entries)
}

// Resolutions returns every entry in input order.
func (m *ResolutionMap) Resolutions() []Resolution {
	out := make([]Resolution, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, *m.entries[key])
	}
	return out
}

// Sources lists the probe kinds in priority order
func Sources() []imageprovider.ProbeKind {
	return []imageprovider.ProbeKind{
		imageprovider.KindPrimarySite,
		imageprovider.KindFallbackScientific,
		imageprovider.KindFallbackCommon,
	}
}

// CountBySource counts entries per source label, including SourceNone.
func (m *ResolutionMap) CountBySource() map[string]int {
	counts := map[string]int{SourceNone: 0}
	for _, kind := range Sources() {
		counts[kind.String()] = 0
	}
	for _, entry := range m.entries {
		counts[entry.SourceLabel()]++
	}
	return counts
}

// Rows pairs each record with its resolved URL for the catalog writer.
func (m *ResolutionMap) Rows(records []catalog.Record) []catalog.ResultRow {
	rows := make([]catalog.ResultRow, 0, len(records))
	for _, rec := range records {
		r, _ := m.Get(rec.Identifier)
		rows = append(rows, catalog.ResultRow{Record: rec, ImageURL: r.URL})
	}
	return rows
}
