package selection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
)

var (
	// ErrAborted is returned when input ends before a selection is made
	ErrAborted = errors.New("selection aborted")
)

// Prompter asks the operator for date windows on a line based terminal.
// Invalid answers are reported and the question is asked again.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	now func() time.Time
}

// NewPrompter creates a prompter reading answers from in
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
		now: time.Now,
	}
}

// SelectWindow lists the available sources and asks for one of four modes:
// a single listed date, a typed range, the latest date or all data
func (p *Prompter) SelectWindow(purpose string, extents []sources.Extent) (records.Window, error) {
	if len(extents) == 0 {
		return records.Window{}, ErrNoData
	}

	p.printf("\nAvailable date ranges for %s:\n", purpose)
	for i, e := range extents {
		p.printf("%d. %s - %s\n", i+1, e.File.Name, e.DateRange())
	}

	p.printf("\nOptions:\n1. Single date\n2. Date range\n3. Latest date\n4. All available data\n")

	for {
		choice, err := p.ask("\nEnter your choice (1-4): ")
		if err != nil {
			return records.Window{}, err
		}

		var w records.Window

		switch choice {
		case "1":
			w, err = p.single(extents)
		case "2":
			w, err = p.dateRange()
		case "3":
			w, err = Latest(extents)
			if err == nil {
				p.printf("Using latest date: %s\n", w.Start.Format(DateLayout))
			}
		case "4":
			w, err = All(extents)
			if err == nil {
				p.printf("Using all data from %s\n", w)
			}
		default:
			p.printf("Invalid choice. Please enter 1-4.\n")

			continue
		}

		if errors.Is(err, ErrAborted) {
			return records.Window{}, err
		}

		if err != nil {
			p.printf("Invalid input: %v. Please try again.\n", err)

			continue
		}

		return w, nil
	}
}

// Confirm asks a yes/no question; anything but y or yes is a no
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.ask(question + " (y/n): ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *Prompter) single(extents []sources.Extent) (records.Window, error) {
	dates := sources.BoundaryDates(extents)

	p.printf("\nAvailable dates:\n")
	for i, d := range dates {
		p.printf("%d. %s\n", i+1, d.Format(DateLayout))
	}

	answer, err := p.ask("Enter date number: ")
	if err != nil {
		return records.Window{}, err
	}

	n, err := strconv.Atoi(answer)
	if err != nil {
		return records.Window{}, fmt.Errorf("not a number: %q", answer)
	}

	if n < 1 || n > len(dates) {
		return records.Window{}, fmt.Errorf("date number must be between 1 and %d", len(dates))
	}

	return records.SingleDay(dates[n-1]), nil
}

func (p *Prompter) dateRange() (records.Window, error) {
	p.printf("\nEnter dates (%s):\n", "YYYY-MM-DD")

	start, err := p.ask("Start date: ")
	if err != nil {
		return records.Window{}, err
	}

	end, err := p.ask("End date: ")
	if err != nil {
		return records.Window{}, err
	}

	if end == "" {
		end = start
	}

	return parseRange(start, end, p.now())
}

// ask prints a prompt and returns the trimmed answer. End of input aborts.
func (p *Prompter) ask(prompt string) (string, error) {
	p.printf("%s", prompt)

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}

		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}

		return "", fmt.Errorf("%w: %w", ErrAborted, err)
	}

	return strings.TrimSpace(line), nil
}

func (p *Prompter) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}
