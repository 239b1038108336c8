package sources

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/xuri/excelize/v2"
)

// xlsxParser reads the first (or configured) sheet of a workbook
type xlsxParser struct {
	sheet string
}

func (p *xlsxParser) Parse(ctx context.Context, path string, cols Columns) ([]records.Record, int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	sheet, err := p.pickSheet(f)
	if err != nil {
		return nil, 0, err
	}

	date1904 := false
	if props, propsErr := f.GetWorkbookProps(); propsErr == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open sheet %s: %w", sheet, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, 0, ErrNoHeader
	}

	header, err := rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	proj, err := newProjection(header, cols)
	if err != nil {
		return nil, 0, err
	}

	parseTS := func(raw string) (time.Time, error) {
		return cellTimestamp(raw, date1904)
	}

	var (
		recs    []records.Record
		skipped int
	)

	for n := 0; rows.Next(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		// Raw values keep date cells as serial numbers regardless of their display format.
		row, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", n+2, err)
		}

		if blank(row) {
			continue
		}

		rec, ok := proj.project(row, parseTS)
		if !ok {
			skipped++

			continue
		}

		recs = append(recs, rec)
	}

	if err := rows.Error(); err != nil {
		return nil, 0, err
	}

	return recs, skipped, nil
}

func (p *xlsxParser) pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheet
	}

	if p.sheet == "" {
		return sheets[0], nil
	}

	for _, s := range sheets {
		if s == p.sheet {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoSheet, p.sheet)
}

// cellTimestamp accepts either an Excel serial date or a textual timestamp
func cellTimestamp(raw string, date1904 bool) (time.Time, error) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ParseTimestamp(raw)
	}

	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrBadTimestamp, raw, err)
	}

	// Serial fractions carry float noise below the millisecond.
	return normalize(t.Round(time.Millisecond)), nil
}
