package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
)

// Precondition failures. Each aborts a run before any probing starts.
var (
	ErrUnsupportedFormat   = errors.NewStd("unsupported catalog format")
	ErrMissingColumn       = errors.NewStd("required column missing")
	ErrEmptyIdentifier     = errors.NewStd("empty identifier")
	ErrDuplicateIdentifier = errors.NewStd("duplicate identifier")
	ErrNoRows              = errors.NewStd("catalog has no header row")
)

// DuplicatePolicy decides what happens when two rows share an identifier
type DuplicatePolicy string

const (
	// DuplicatesError rejects the catalog.
	DuplicatesError DuplicatePolicy = "error"
	// DuplicatesLast keeps the later row at the position of the earlier one.
	DuplicatesLast DuplicatePolicy = "last"
)

// Columns names the header cells holding each record field. Header cells
// are matched after trimming, ignoring case.
type Columns struct {
	Identifier  string
	Genus       string
	Species     string
	CommonNames string // optional
}

// DefaultColumns matches the supplier's price list export
var DefaultColumns = Columns{
	Identifier:  "Item No.",
	Genus:       "Genus",
	Species:     "Species",
	CommonNames: "Common Names",
}

// ReadOptions control how a catalog is read
type ReadOptions struct {
	Sheet      string // xlsx sheet, empty for the first
	Columns    Columns
	Duplicates DuplicatePolicy
}

// Catalog is the parsed input: its header and one record per identifier
type Catalog struct {
	Header     []string
	Records    []Record
	Duplicates int // rows replaced under DuplicatesLast
}

// Read loads a catalog from a .csv or .xlsx file.
func Read(path string, opts ReadOptions) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path is the user's input file
	if err != nil {
		return nil, errors.FileError(fmt.Errorf("failed to open catalog: %w", err), path)
	}
	defer func() { _ = f.Close() }()

	var cat *Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		cat, err = ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		cat, err = ReadXLSX(f, opts)
	default:
		return nil, errors.New(fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, ext)).
			Component("catalog").
			Category(errors.CategoryValidation).
			FileContext(path).
			Build()
	}
	if err != nil {
		return nil, err
	}

	GetLogger().Info("Catalog loaded",
		logger.String("path", path),
		logger.Int("records", len(cat.Records)),
		logger.Int("duplicates_replaced", cat.Duplicates))
	return cat, nil
}

// ReadCSV parses a CSV catalog with a header row.
func ReadCSV(r io.Reader, opts ReadOptions) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to parse CSV catalog: %w", err)).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return parseRows(rows, opts)
}

// ReadXLSX parses an Excel workbook. The configured sheet is used, or the
// first sheet when none is configured.
func ReadXLSX(r io.Reader, opts ReadOptions) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open workbook: %w", err)).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Build()
	}
	defer func() { _ = f.Close() }()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New(ErrNoRows).
				Component("catalog").
				Category(errors.CategoryFileParsing).
				Build()
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read sheet %q: %w", sheet, err)).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Context("sheet", sheet).
			Build()
	}
	return parseRows(rows, opts)
}

// columnIndexes holds the position of each record field in the header
type columnIndexes struct {
	identifier, genus, species, commonNames int
}

// parseRows turns raw rows into records, enforcing the catalog
// preconditions.
func parseRows(rows [][]string, opts ReadOptions) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, errors.New(ErrNoRows).
			Component("catalog").
			Category(errors.CategoryValidation).
			Build()
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
	}

	cols, err := locateColumns(header, opts.Columns)
	if err != nil {
		return nil, err
	}

	policy := opts.Duplicates
	if policy == "" {
		policy = DuplicatesError
	}

	cat := &Catalog{Header: header}
	seen := make(map[string]int) // key -> index in cat.Records

	for i, raw := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(raw) {
			continue
		}

		rec := buildRecord(raw, len(header), cols, rowNum)
		if rec.Identifier == "" {
			return nil, errors.New(fmt.Errorf("%w in row %d", ErrEmptyIdentifier, rowNum)).
				Component("catalog").
				Category(errors.CategoryValidation).
				Context("row", rowNum).
				Build()
		}

		key := rec.Key()
		prev, dup := seen[key]
		if !dup {
			seen[key] = len(cat.Records)
			cat.Records = append(cat.Records, rec)
			continue
		}

		earlier := cat.Records[prev]
		if policy != DuplicatesLast {
			return nil, errors.New(fmt.Errorf("%w %q in rows %d and %d", ErrDuplicateIdentifier, rec.Identifier, earlier.Row, rowNum)).
				Component("catalog").
				Category(errors.CategoryConflict).
				Context("identifier", rec.Identifier).
				Build()
		}

		GetLogger().Warn("Duplicate identifier, keeping the later row",
			logger.String("identifier", rec.Identifier),
			logger.Int("replaced_row", earlier.Row),
			logger.Int("row", rowNum))
		cat.Records[prev] = rec
		cat.Duplicates++
	}

	return cat, nil
}

func locateColumns(header []string, want Columns) (columnIndexes, error) {
	if want.Identifier == "" && want.Genus == "" && want.Species == "" {
		want = DefaultColumns
	}

	find := func(name string) int {
		name = strings.TrimSpace(name)
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}

	cols := columnIndexes{
		identifier:  find(want.Identifier),
		genus:       find(want.Genus),
		species:     find(want.Species),
		commonNames: find(want.CommonNames),
	}

	var missing []string
	if cols.identifier < 0 {
		missing = append(missing, want.Identifier)
	}
	if cols.genus < 0 {
		missing = append(missing, want.Genus)
	}
	if cols.species < 0 {
		missing = append(missing, want.Species)
	}
	if len(missing) > 0 {
		return cols, errors.New(fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(quoteAll(missing), ", "))).
			Component("catalog").
			Category(errors.CategoryValidation).
			Context("header", strings.Join(header, "|")).
			Build()
	}

	if cols.commonNames < 0 {
		GetLogger().Info("No common names column, common-name search disabled",
			logger.String("column", want.CommonNames))
	}

	return cols, nil
}

func buildRecord(raw []string, width int, cols columnIndexes, row int) Record {
	fields := make([]string, max(width, len(raw)))
	copy(fields, raw)

	cell := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	return Record{
		Identifier:  cell(cols.identifier),
		Genus:       cell(cols.genus),
		Species:     cell(cols.species),
		CommonNames: SplitCommonNames(cell(cols.commonNames)),
		Fields:      fields[:width:width],
		Row:         row,
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return quoted
}
