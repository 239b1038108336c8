// Package lists reads the newline-delimited operator lists: excluded
// categories and report recipients
package lists

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Set is an unordered collection of list entries
type Set map[string]struct{}

// NewSet builds a set from entries
func NewSet(entries ...string) Set {
	s := make(Set, len(entries))
	for _, e := range entries {
		s[e] = struct{}{}
	}

	return s
}

// Has reports whether v is in the set
func (s Set) Has(v string) bool {
	_, ok := s[v]

	return ok
}

// Sorted returns the entries in ascending order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)

	return out
}

// Read returns the trimmed, non-blank, non-comment lines of path. A missing
// file yields no entries and no error.
func Read(path string) ([]string, error) {
	fh, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to open list %s: %w", path, err)
	}
	defer fh.Close()

	var entries []string

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entries = append(entries, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}

	return entries, nil
}

// LoadExclusions reads the set of categories left out of ranking
func LoadExclusions(path string) (Set, error) {
	entries, err := Read(path)
	if err != nil {
		return nil, err
	}

	return NewSet(entries...), nil
}

// LoadRecipients reads notification addresses. Entries without an "@" are
// dropped and returned separately so callers can report them.
func LoadRecipients(path string) (recipients, rejected []string, err error) {
	entries, err := Read(path)
	if err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		if !strings.Contains(e, "@") {
			rejected = append(rejected, e)

			continue
		}

		recipients = append(recipients, e)
	}

	return recipients, rejected, nil
}
