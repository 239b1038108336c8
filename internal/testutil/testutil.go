// Package testutil provides test utilities for tlareport, including:
//   - source fixture writers for csv and xlsx files (fixtures.go)
//   - miniredis helpers for the extents store and schedule tracker (miniredis.go)
//
// None of the helpers need Docker or network access.
package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// Logger returns a logger that stays quiet unless a test fails badly
func Logger(t *testing.T) *logrus.Logger {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}
