// Package aggregate ranks failure categories and computes per-shift rates and
// daily and weekly trends over a set of records
package aggregate

import (
	"errors"
	"sort"
	"time"

	"github.com/ethpandaops/tlareport/pkg/lists"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/shift"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidTopN is returned when fewer than one category is requested
	ErrInvalidTopN = errors.New("topN must be at least 1")
)

// Config controls ranking
type Config struct {
	TopN        int    `yaml:"topN" default:"3" validate:"min=1"`
	ExcludeFile string `yaml:"excludeFile" default:"exclude_syndroms.txt"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TopN < 1 {
		return ErrInvalidTopN
	}

	return nil
}

// Count is a category with its number of failures
type Count struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// GroupRate is the failure rate of one category for one device type and shift
type GroupRate struct {
	Category   string      `json:"category" yaml:"category"`
	DeviceType string      `json:"device_type" yaml:"device_type"`
	Shift      shift.Label `json:"shift" yaml:"shift"`
	Failures   int         `json:"failures" yaml:"failures"`
	Tested     int         `json:"tested" yaml:"tested"`
	Rate       Rate        `json:"rate" yaml:"rate"`
	Serials    []string    `json:"serials,omitempty" yaml:"serials,omitempty"`
}

// SummaryRow places both shift rates of a (category, device type) side by side
type SummaryRow struct {
	Category   string `json:"category" yaml:"category"`
	DeviceType string `json:"device_type" yaml:"device_type"`
	First      Rate   `json:"first_shift" yaml:"first_shift"`
	Second     Rate   `json:"second_shift" yaml:"second_shift"`
}

// Result is the full aggregation of one report window
type Result struct {
	Records  int          `json:"records" yaml:"records"`
	Failures int          `json:"failures" yaml:"failures"`
	Excluded int          `json:"excluded" yaml:"excluded"`
	Top      []Count      `json:"top" yaml:"top"`
	Rates    []GroupRate  `json:"rates" yaml:"rates"`
	Summary  []SummaryRow `json:"summary" yaml:"summary"`
	Daily    *Trend       `json:"daily,omitempty" yaml:"daily,omitempty"`
	Weekly   *Trend       `json:"weekly,omitempty" yaml:"weekly,omitempty"`
}

// Categories returns the ranked category names
func (r *Result) Categories() []string {
	out := make([]string, 0, len(r.Top))
	for _, c := range r.Top {
		out = append(out, c.Category)
	}

	return out
}

// Engine runs the aggregation pipeline with a fixed configuration
type Engine struct {
	log        logrus.FieldLogger
	topN       int
	classifier *shift.Classifier
	exclude    lists.Set
}

// NewEngine creates an aggregation engine
func NewEngine(log logrus.FieldLogger, cfg *Config, classifier *shift.Classifier, exclude lists.Set) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if exclude == nil {
		exclude = lists.Set{}
	}

	return &Engine{
		log:        log.WithField("component", "aggregate"),
		topN:       cfg.TopN,
		classifier: classifier,
		exclude:    exclude,
	}, nil
}

// Aggregate ranks the failures of recs and computes per-shift rates for the
// top categories. recs is every record of the report window, passing or not.
func (e *Engine) Aggregate(recs []records.Record) *Result {
	failures := Failures(recs)
	kept := Exclude(failures, e.exclude)
	top := Rank(kept, e.topN)

	ts := make([]time.Time, len(recs))
	for i := range recs {
		ts[i] = recs[i].Timestamp
	}

	rates := GroupRates(recs, e.classifier.ClassifyAll(ts), top)

	e.log.WithFields(logrus.Fields{
		"records":  len(recs),
		"failures": len(failures),
		"excluded": len(failures) - len(kept),
		"top":      len(top),
	}).Debug("Aggregated records")

	return &Result{
		Records:  len(recs),
		Failures: len(failures),
		Excluded: len(failures) - len(kept),
		Top:      top,
		Rates:    rates,
		Summary:  Summarize(rates),
	}
}

// AddTrends computes daily and weekly trends of the ranked categories over
// recs, which may cover a different window than the ranking
func (e *Engine) AddTrends(res *Result, recs []records.Record) {
	categories := res.Categories()

	res.Daily = Trends(recs, categories, Daily)
	res.Weekly = Trends(recs, categories, Weekly)
}

// Failures keeps records whose status is not a pass
func Failures(recs []records.Record) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for i := range recs {
		if recs[i].IsFailure() {
			out = append(out, recs[i])
		}
	}

	return out
}

// Exclude drops records whose category is in the set
func Exclude(recs []records.Record, exclude lists.Set) []records.Record {
	if len(exclude) == 0 {
		return recs
	}

	out := make([]records.Record, 0, len(recs))
	for i := range recs {
		if !exclude.Has(recs[i].Category) {
			out = append(out, recs[i])
		}
	}

	return out
}

// Rank counts failures per category and returns the n largest. Ties are
// broken by ascending category name.
func Rank(failures []records.Record, n int) []Count {
	counts := make(map[string]int)
	for i := range failures {
		counts[failures[i].Category]++
	}

	ranked := make([]Count, 0, len(counts))
	for category, c := range counts {
		ranked = append(ranked, Count{Category: category, Count: c})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}

		return ranked[i].Category < ranked[j].Category
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

type group struct {
	deviceType string
	shift      shift.Label
}

// GroupRates computes, for each ranked category and each device type that
// failed with it, the failure rate in both shifts: failing records divided by
// the distinct serials tested on that device type in that shift. labels holds
// the shift of each record in recs.
func GroupRates(recs []records.Record, labels []shift.Label, top []Count) []GroupRate {
	tested := make(map[group]map[string]struct{})
	failed := make(map[string]map[group][]string)

	ranked := make(map[string]bool, len(top))
	for _, c := range top {
		ranked[c.Category] = true
		failed[c.Category] = make(map[group][]string)
	}

	deviceTypes := make(map[string]map[string]struct{})

	for i := range recs {
		r := &recs[i]
		g := group{deviceType: r.DeviceType, shift: labels[i]}

		if tested[g] == nil {
			tested[g] = make(map[string]struct{})
		}
		tested[g][r.Serial] = struct{}{}

		if !r.IsFailure() || !ranked[r.Category] {
			continue
		}

		failed[r.Category][g] = append(failed[r.Category][g], r.Serial)

		if deviceTypes[r.Category] == nil {
			deviceTypes[r.Category] = make(map[string]struct{})
		}
		deviceTypes[r.Category][r.DeviceType] = struct{}{}
	}

	var out []GroupRate

	for _, c := range top {
		for _, dt := range sortedKeys(deviceTypes[c.Category]) {
			for _, s := range shift.Labels {
				g := group{deviceType: dt, shift: s}
				serials := failed[c.Category][g]

				out = append(out, GroupRate{
					Category:   c.Category,
					DeviceType: dt,
					Shift:      s,
					Failures:   len(serials),
					Tested:     len(tested[g]),
					Rate:       NewRate(len(serials), len(tested[g])),
					Serials:    distinct(serials),
				})
			}
		}
	}

	return out
}

// Summarize pivots group rates into one row per (category, device type)
func Summarize(rates []GroupRate) []SummaryRow {
	var (
		out   []SummaryRow
		index = make(map[[2]string]int)
	)

	for _, r := range rates {
		key := [2]string{r.Category, r.DeviceType}

		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, SummaryRow{Category: r.Category, DeviceType: r.DeviceType})
		}

		switch r.Shift {
		case shift.First:
			out[i].First = r.Rate
		case shift.Second:
			out[i].Second = r.Rate
		}
	}

	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

func distinct(serials []string) []string {
	if len(serials) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(serials))
	out := make([]string, 0, len(serials))

	for _, s := range serials {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}
