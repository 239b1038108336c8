package sources

import "errors"

// Source-specific errors
var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrMissingColumn     = errors.New("missing essential column")
	ErrNoHeader          = errors.New("source has no header row")
	ErrNoSheet           = errors.New("workbook sheet not found")
	ErrBadTimestamp      = errors.New("unparseable timestamp")
)
