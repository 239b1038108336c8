package shift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05.999999", "2024-05-06 "+clock)
	if err != nil {
		panic(err)
	}

	return t
}

func newDefault(t *testing.T) *Classifier {
	t.Helper()

	c, err := NewClassifier(DefaultBoundary)
	require.NoError(t, err)

	return c
}

func TestClassify_Boundaries(t *testing.T) {
	c := newDefault(t)

	tests := []struct {
		clock string
		want  Label
	}{
		{"00:00:00", First},
		{"08:15:00", First},
		{"15:29:59.999999", First},
		{"15:30:00", Second},
		{"20:00:00", Second},
		{"23:59:59", Second},
		{"23:59:59.999999", Second},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(at(tt.clock)))
		})
	}
}

func TestClassify_CoversEveryMinute(t *testing.T) {
	c := newDefault(t)

	base := at("00:00:00")
	for i := 0; i < 24*60; i++ {
		label := c.Classify(base.Add(time.Duration(i) * time.Minute))
		assert.Contains(t, Labels, label)
	}
}

func TestClassify_Malformed(t *testing.T) {
	c := newDefault(t)

	assert.Equal(t, Unknown, c.Classify(time.Time{}))
	assert.Equal(t, Unknown, c.ClassifyClock(24, 0, 0, 0))
	assert.Equal(t, Unknown, c.ClassifyClock(10, 60, 0, 0))
	assert.Equal(t, Unknown, c.ClassifyClock(10, 0, -1, 0))
	assert.Equal(t, Unknown, c.ClassifyClock(10, 0, 0, int(time.Second)))
}

func TestClassifyAll_MatchesScalar(t *testing.T) {
	c := newDefault(t)

	column := []time.Time{
		at("00:00:00"),
		at("15:29:59.999999"),
		at("15:30:00"),
		at("23:59:59"),
		{},
	}

	labels := c.ClassifyAll(column)
	require.Len(t, labels, len(column))

	for i := range column {
		assert.Equal(t, c.Classify(column[i]), labels[i])
	}
}

func TestNewClassifier_CustomBoundary(t *testing.T) {
	boundary, err := ParseBoundary("06:00")
	require.NoError(t, err)

	c, err := NewClassifier(boundary)
	require.NoError(t, err)

	assert.Equal(t, First, c.Classify(at("05:59:59")))
	assert.Equal(t, Second, c.Classify(at("06:00:00")))

	_, err = NewClassifier(0)
	assert.ErrorIs(t, err, ErrInvalidBoundary)

	_, err = ParseBoundary("25:00")
	assert.ErrorIs(t, err, ErrInvalidBoundary)
}
