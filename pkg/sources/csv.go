package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethpandaops/tlareport/pkg/records"
)

// csvParser reads comma separated exports with a header row
type csvParser struct{}

func (p *csvParser) Parse(ctx context.Context, path string, cols Columns) ([]records.Record, int, error) {
	fh, err := os.Open(path) //nolint:gosec // discovered source path
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = fh.Close() }()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, ErrNoHeader
		}

		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	proj, err := newProjection(header, cols)
	if err != nil {
		return nil, 0, err
	}

	var (
		recs    []records.Record
		skipped int
	)

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}

		if blank(row) {
			continue
		}

		rec, ok := proj.project(row, ParseTimestamp)
		if !ok {
			skipped++

			continue
		}

		recs = append(recs, rec)
	}

	return recs, skipped, nil
}
