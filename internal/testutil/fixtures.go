package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Header is the column layout written by the fixture writers
//
//nolint:gochecknoglobals // fixed header for fixtures
var Header = []string{"StartDateTime", "Station", "Syndrom", "SyndromStatus", "UUT", "SerialNumber"}

// TimestampLayout is the textual timestamp format used in csv fixtures
const TimestampLayout = "2006-01-02 15:04:05.000000"

// WriteCSV writes recs as a csv source and returns its path
func WriteCSV(t *testing.T, dir, name string, recs []records.Record) string {
	t.Helper()

	path := filepath.Join(dir, name)

	fh, err := os.Create(path) //nolint:gosec // test path
	require.NoError(t, err)

	w := csv.NewWriter(fh)
	require.NoError(t, w.Write(Header))

	for _, r := range recs {
		require.NoError(t, w.Write([]string{
			r.Timestamp.Format(TimestampLayout),
			"ST-1",
			r.Category,
			r.Status,
			r.DeviceType,
			r.Serial,
		}))
	}

	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, fh.Close())

	return path
}

// WriteXLSX writes recs as a workbook source with real date cells and returns its path
func WriteXLSX(t *testing.T, dir, name string, recs []records.Record) string {
	t.Helper()

	path := filepath.Join(dir, name)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))

	for i, r := range recs {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)

		row := []interface{}{r.Timestamp, "ST-1", r.Category, r.Status, r.DeviceType, r.Serial}
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}

	require.NoError(t, f.SaveAs(path))

	return path
}

// Touch moves a file's modification time forward by d
func Touch(t *testing.T, path string, d time.Duration) {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)

	mtime := info.ModTime().Add(d)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// Generate builds n records starting at start, one every step. Every
// failEvery-th record fails with category; the rest pass.
func Generate(start time.Time, n int, step time.Duration, category string, failEvery int) []records.Record {
	recs := make([]records.Record, 0, n)

	for i := 0; i < n; i++ {
		status := "PASS"
		syndrom := ""
		if failEvery > 0 && i%failEvery == 0 {
			status = "FAIL"
			syndrom = category
		}

		recs = append(recs, records.Record{
			Timestamp:  start.Add(time.Duration(i) * step),
			Category:   syndrom,
			Status:     status,
			DeviceType: fmt.Sprintf("UUT-%d", i%2),
			Serial:     fmt.Sprintf("SN%06d", i),
		})
	}

	return recs
}

// Date parses a "2006-01-02 15:04:05" fixture timestamp in UTC
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}

	return t
}
