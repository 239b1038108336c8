package selection

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/tlareport/internal/testutil"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extents() []sources.Extent {
	return []sources.Extent{
		{
			File:   sources.File{Name: "week1.xlsx"},
			Bounds: sources.Bounds{Min: testutil.Date("2024-01-01 08:00:00"), Max: testutil.Date("2024-01-03 17:00:00"), Rows: 10},
		},
		{
			File:   sources.File{Name: "week2.csv"},
			Bounds: sources.Bounds{Min: testutil.Date("2024-01-05 06:00:00"), Max: testutil.Date("2024-01-06 23:00:00"), Rows: 4},
		},
	}
}

func day(s string) time.Time {
	return testutil.Date(s + " 00:00:00")
}

func assertWindow(t *testing.T, w records.Window, start, end string) {
	t.Helper()

	assert.True(t, day(start).Equal(w.Start), "start %s != %s", w.Start, start)
	assert.True(t, day(end).Equal(w.End), "end %s != %s", w.End, end)
}

func prompter(input string) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	p := NewPrompter(strings.NewReader(input), out)
	p.now = func() time.Time { return testutil.Date("2024-03-10 12:00:00") }

	return p, out
}

func TestSelectWindow_Modes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		start string
		end   string
	}{
		{name: "single with retries", input: "x\n1\n9\n1\n2\n", start: "2024-01-03", end: "2024-01-03"},
		{name: "range after invalid range", input: "2\n2024-01-10\n2024-01-02\n2\n2024-01-02\n2024-01-04\n", start: "2024-01-02", end: "2024-01-04"},
		{name: "range with blank end", input: "2\n2024-01-02\n\n", start: "2024-01-02", end: "2024-01-02"},
		{name: "latest", input: "3\n", start: "2024-01-06", end: "2024-01-06"},
		{name: "all", input: "4\n", start: "2024-01-01", end: "2024-01-06"},
		{name: "no trailing newline", input: "3", start: "2024-01-06", end: "2024-01-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := prompter(tt.input)

			w, err := p.SelectWindow("main report", extents())
			require.NoError(t, err)
			assertWindow(t, w, tt.start, tt.end)
		})
	}
}

func TestSelectWindow_ReportsInvalidInput(t *testing.T) {
	p, out := prompter("7\n2\nbanana\n2024-01-02\n3\n")

	_, err := p.SelectWindow("main report", extents())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "1. week1.xlsx - 2024-01-01 to 2024-01-03")
	assert.Contains(t, text, "Invalid choice. Please enter 1-4.")
	assert.Contains(t, text, "Invalid input:")
	assert.Contains(t, text, "Using latest date: 2024-01-06")
}

func TestSelectWindow_Aborted(t *testing.T) {
	for _, input := range []string{"", "1\n", "2\n2024-01-01\n"} {
		p, _ := prompter(input)

		_, err := p.SelectWindow("main report", extents())
		assert.ErrorIs(t, err, ErrAborted, "input %q", input)
	}
}

func TestSelectWindow_NoData(t *testing.T) {
	p, _ := prompter("1\n")

	_, err := p.SelectWindow("main report", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestConfirm(t *testing.T) {
	p, _ := prompter("Y\nnah\n")

	ok, err := p.Confirm("Do you want to generate trend charts?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Confirm("Once more?")
	assert.ErrorIs(t, err, ErrAborted)
}

func TestParseDate(t *testing.T) {
	now := testutil.Date("2024-03-10 12:00:00")

	tests := []struct {
		in   string
		want string
	}{
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "yesterday", want: "2024-03-09"},
		{in: "3 days ago", want: "2024-03-07"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in, now)
			require.NoError(t, err)
			assert.True(t, day(tt.want).Equal(d), "got %s", d)
		})
	}
}

func TestParseDate_RejectsMalformedDates(t *testing.T) {
	now := testutil.Date("2024-03-10 12:00:00")

	for _, in := range []string{
		"",
		"banana",
		"2024-02-30",
		"2024-13-01",
		"2023-02-29",
		"2024/02/31",
		"2024/02/01",
		"13/45/2024",
		"01.02.2024",
		"20240201",
		"99",
		"5",
	} {
		t.Run(in, func(t *testing.T) {
			d, err := ParseDate(in, now)
			assert.ErrorIs(t, err, ErrInvalidDate, "parsed as %s", d)
		})
	}
}

func TestSelectWindow_RetriesImpossibleDate(t *testing.T) {
	p, out := prompter("2\n2024-01-02\n2024-02-30\n2\n2024-01-02\n2024-01-03\n")

	w, err := p.SelectWindow("main report", extents())
	require.NoError(t, err)

	assertWindow(t, w, "2024-01-02", "2024-01-03")
	assert.Contains(t, out.String(), `Invalid input: end: invalid date "2024-02-30"`)
}

func TestResolve(t *testing.T) {
	now := testutil.Date("2024-03-10 12:00:00")

	tests := []struct {
		name    string
		opts    Options
		start   string
		end     string
		wantErr error
	}{
		{name: "single start", opts: Options{Start: "2024-01-02"}, start: "2024-01-02", end: "2024-01-02"},
		{name: "range", opts: Options{Start: "2024-01-02", End: "2024-01-05"}, start: "2024-01-02", end: "2024-01-05"},
		{name: "latest", opts: Options{Latest: true}, start: "2024-01-06", end: "2024-01-06"},
		{name: "all", opts: Options{All: true}, start: "2024-01-01", end: "2024-01-06"},
		{name: "end without start", opts: Options{End: "2024-01-05"}, wantErr: ErrStartRequired},
		{name: "conflicting", opts: Options{Latest: true, All: true}, wantErr: ErrConflictingFlags},
		{name: "reversed", opts: Options{Start: "2024-01-05", End: "2024-01-02"}, wantErr: records.ErrInvalidWindow},
		{name: "bad date", opts: Options{Start: "banana"}, wantErr: ErrInvalidDate},
		{name: "impossible date", opts: Options{Start: "2024-01-02", End: "2024-02-30"}, wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.opts.Interactive())

			w, err := Resolve(&tt.opts, extents(), now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assertWindow(t, w, tt.start, tt.end)
		})
	}
}

func TestResolveTrend(t *testing.T) {
	now := testutil.Date("2024-03-10 12:00:00")
	report := records.SingleDay(day("2024-01-06"))

	w, err := ResolveTrend(&Options{}, report, now)
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = ResolveTrend(&Options{TrendDays: 7}, report, now)
	require.NoError(t, err)
	require.NotNil(t, w)
	assertWindow(t, *w, "2023-12-31", "2024-01-06")

	w, err = ResolveTrend(&Options{TrendStart: "2024-01-01", TrendEnd: "2024-01-04"}, report, now)
	require.NoError(t, err)
	require.NotNil(t, w)
	assertWindow(t, *w, "2024-01-01", "2024-01-04")

	_, err = ResolveTrend(&Options{TrendDays: 3, TrendStart: "2024-01-01"}, report, now)
	assert.ErrorIs(t, err, ErrConflictingTrend)

	_, err = ResolveTrend(&Options{TrendEnd: "2024-01-04"}, report, now)
	assert.ErrorIs(t, err, ErrStartRequired)
}
