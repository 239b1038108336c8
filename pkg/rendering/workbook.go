package rendering

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethpandaops/tlareport/pkg/aggregate"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	DailySheet  = "Daily Trend"
	WeeklySheet = "Weekly Trend"
)

//nolint:gochecknoglobals // fixed header
var rateHeader = []interface{}{"Monitor Name", "UUT", "Shift", "Rate", "Fails", "Tested SNs", "SN", "Golden Image", "Defect Image", "Description"}

// WorkbookWriter writes the report as plain tables: the rate table and,
// when present, one sheet per trend granularity
type WorkbookWriter struct {
	log  logrus.FieldLogger
	path string
}

// NewWorkbookWriter creates a writer for path
func NewWorkbookWriter(log logrus.FieldLogger, path string) *WorkbookWriter {
	return &WorkbookWriter{
		log:  log.WithField("component", "workbook"),
		path: path,
	}
}

// Name identifies the renderer
func (w *WorkbookWriter) Name() string {
	return "workbook"
}

// TopSheet names the rate table sheet after the number of ranked categories
func TopSheet(n int) string {
	return fmt.Sprintf("Top %d Syndroms", n)
}

// Render writes the workbook, replacing any previous one
func (w *WorkbookWriter) Render(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r == nil || r.Result == nil {
		return ErrNoReport
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := TopSheet(len(r.Result.Top))
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	refs := make(map[string]int, len(r.References))
	for i, ref := range r.References {
		refs[ref.Category] = i
	}

	rows := [][]interface{}{rateHeader}
	for _, rate := range r.Result.Rates {
		row := []interface{}{
			rate.Category,
			rate.DeviceType,
			string(rate.Shift),
			rate.Rate.String(),
			rate.Failures,
			rate.Tested,
			strings.Join(rate.Serials, ", "),
			"", "", "",
		}

		if i, ok := refs[rate.Category]; ok {
			row[7], row[8], row[9] = r.References[i].GoldenImage, r.References[i].DefectImage, r.References[i].Description
		}

		rows = append(rows, row)
	}

	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}

	for _, trend := range []struct {
		sheet string
		data  *aggregate.Trend
	}{
		{sheet: DailySheet, data: r.Result.Daily},
		{sheet: WeeklySheet, data: r.Result.Weekly},
	} {
		if trend.data == nil {
			continue
		}

		if _, err := f.NewSheet(trend.sheet); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", trend.sheet, err)
		}

		if err := writeRows(f, trend.sheet, trendRows(trend.data)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.log.WithFields(logrus.Fields{"path": w.path, "rows": len(rows) - 1}).Info("Wrote report workbook")

	return nil
}

// trendRows lays a trend out with one row per bucket and one column per category
func trendRows(t *aggregate.Trend) [][]interface{} {
	header := []interface{}{"Period"}
	for _, c := range t.Categories {
		header = append(header, c)
	}

	rows := [][]interface{}{header}

	for _, b := range t.Buckets {
		row := []interface{}{b.Label}
		for _, c := range t.Categories {
			row = append(row, t.Rate(c, b.Label))
		}

		rows = append(rows, row)
	}

	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}

		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	return nil
}
