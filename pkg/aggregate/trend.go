package aggregate

import (
	"sort"
	"time"

	"github.com/ethpandaops/tlareport/pkg/records"
)

// Granularity is the bucket size of a trend
type Granularity string

const (
	// Daily buckets by calendar date
	Daily Granularity = "daily"
	// Weekly buckets by ISO week starting on Monday
	Weekly Granularity = "weekly"
)

const dateLayout = "2006-01-02"

// Bucket is one period of a trend with the total records it holds
type Bucket struct {
	Label string    `json:"label" yaml:"label"`
	Start time.Time `json:"start" yaml:"start"`
	Total int       `json:"total" yaml:"total"`
}

// TrendPoint is the share of a bucket's records carrying one category
type TrendPoint struct {
	Category string  `json:"category" yaml:"category"`
	Bucket   string  `json:"bucket" yaml:"bucket"`
	Count    int     `json:"count" yaml:"count"`
	Rate     float64 `json:"rate" yaml:"rate"`
}

// Trend holds a point for every (category, bucket) pair
type Trend struct {
	Granularity Granularity  `json:"granularity" yaml:"granularity"`
	Categories  []string     `json:"categories" yaml:"categories"`
	Buckets     []Bucket     `json:"buckets" yaml:"buckets"`
	Points      []TrendPoint `json:"points" yaml:"points"`
}

// BucketOf returns the start and label of the bucket containing t. Weekly
// labels read "monday/sunday".
func BucketOf(t time.Time, g Granularity) (time.Time, string) {
	day := records.Day(t)

	if g == Weekly {
		offset := (int(day.Weekday()) + 6) % 7
		monday := day.AddDate(0, 0, -offset)

		return monday, monday.Format(dateLayout) + "/" + monday.AddDate(0, 0, 6).Format(dateLayout)
	}

	return day, day.Format(dateLayout)
}

// Trends computes, per bucket, the count of records in each category divided
// by all records in the bucket. Every category gets a point in every bucket
// present in recs; categories absent from a bucket get a rate of 0.
func Trends(recs []records.Record, categories []string, g Granularity) *Trend {
	type counts struct {
		bucket Bucket
		per    map[string]int
	}

	buckets := make(map[string]*counts)

	for i := range recs {
		start, label := BucketOf(recs[i].Timestamp, g)

		c, ok := buckets[label]
		if !ok {
			c = &counts{bucket: Bucket{Label: label, Start: start}, per: make(map[string]int)}
			buckets[label] = c
		}

		c.bucket.Total++
		c.per[recs[i].Category]++
	}

	trend := &Trend{Granularity: g, Categories: categories}

	for _, c := range buckets {
		trend.Buckets = append(trend.Buckets, c.bucket)
	}

	sort.Slice(trend.Buckets, func(i, j int) bool {
		return trend.Buckets[i].Start.Before(trend.Buckets[j].Start)
	})

	for _, category := range categories {
		for _, b := range trend.Buckets {
			n := buckets[b.Label].per[category]

			trend.Points = append(trend.Points, TrendPoint{
				Category: category,
				Bucket:   b.Label,
				Count:    n,
				Rate:     percent(n, b.Total),
			})
		}
	}

	return trend
}

// Rate returns the rate of category in bucket, 0 when either is unknown
func (t *Trend) Rate(category, bucket string) float64 {
	for _, p := range t.Points {
		if p.Category == category && p.Bucket == bucket {
			return p.Rate
		}
	}

	return 0
}

// Series returns the points of one category in bucket order
func (t *Trend) Series(category string) []TrendPoint {
	var out []TrendPoint
	for _, p := range t.Points {
		if p.Category == category {
			out = append(out, p)
		}
	}

	return out
}
