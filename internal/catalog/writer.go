package catalog

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
)

// outputSheet is the sheet name of written workbooks
const outputSheet = "Image URLs"

// ResultRow pairs a record with its resolved image URL; empty means none found
type ResultRow struct {
	Record   Record
	ImageURL string
}

// SortRows orders rows by identifier key, then by raw identifier so the
// output is deterministic for keys that fold to the same value.
func SortRows(rows []ResultRow) {
	slices.SortStableFunc(rows, func(a, b ResultRow) int {
		return cmp.Or(
			strings.Compare(a.Record.Key(), b.Record.Key()),
			strings.Compare(a.Record.Identifier, b.Record.Identifier),
		)
	})
}

// Write sorts rows and writes them with header plus the image URL column.
// The format follows the path extension (.csv or .xlsx). The file is
// replaced atomically.
func Write(path string, header []string, column string, rows []ResultRow) error {
	var encode func(io.Writer, []string, string, []ResultRow) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		encode = WriteCSV
	case ".xlsx":
		encode = WriteXLSX
	default:
		return errors.New(fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, ext)).
			Component("catalog").
			Category(errors.CategoryValidation).
			Build()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".imagefinder-*"+filepath.Ext(path))
	if err != nil {
		return errors.FileError(fmt.Errorf("failed to create output file: %w", err), path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := encode(tmp, header, column, rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(fmt.Errorf("failed to close output file: %w", err), path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.FileError(fmt.Errorf("failed to move output into place: %w", err), path)
	}

	GetLogger().Info("Results written",
		logger.String("path", path),
		logger.Int("rows", len(rows)))
	return nil
}

// WriteCSV writes sorted rows as CSV.
func WriteCSV(w io.Writer, header []string, column string, rows []ResultRow) error {
	SortRows(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(slices.Clone(header), column)); err != nil {
		return csvError(err)
	}
	for _, row := range rows {
		if err := cw.Write(append(slices.Clone(row.Record.Fields), row.ImageURL)); err != nil {
			return csvError(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return csvError(err)
	}
	return nil
}

func csvError(err error) error {
	return errors.New(fmt.Errorf("failed to write CSV: %w", err)).
		Component("catalog").
		Category(errors.CategoryFileIO).
		Build()
}

// WriteXLSX writes sorted rows as a single sheet workbook. Image URLs are
// written as hyperlinks.
func WriteXLSX(w io.Writer, header []string, column string, rows []ResultRow) error {
	SortRows(rows)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", outputSheet); err != nil {
		return xlsxError(err)
	}

	headerRow := make([]any, 0, len(header)+1)
	for _, h := range header {
		headerRow = append(headerRow, h)
	}
	headerRow = append(headerRow, column)
	if err := f.SetSheetRow(outputSheet, "A1", &headerRow); err != nil {
		return xlsxError(err)
	}

	urlCol := len(header) + 1
	for i, row := range rows {
		rowNum := i + 2
		values := make([]any, 0, len(row.Record.Fields)+1)
		for _, v := range row.Record.Fields {
			values = append(values, v)
		}
		values = append(values, row.ImageURL)

		start, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return xlsxError(err)
		}
		if err := f.SetSheetRow(outputSheet, start, &values); err != nil {
			return xlsxError(err)
		}

		if row.ImageURL != "" {
			cell, err := excelize.CoordinatesToCellName(urlCol, rowNum)
			if err != nil {
				return xlsxError(err)
			}
			if err := f.SetCellHyperLink(outputSheet, cell, row.ImageURL, "External"); err != nil {
				return xlsxError(err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return xlsxError(err)
	}
	return nil
}

func xlsxError(err error) error {
	return errors.New(fmt.Errorf("failed to write workbook: %w", err)).
		Component("catalog").
		Category(errors.CategoryFileIO).
		Build()
}
