package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewRejectsStartAfterEnd(t *testing.T) {
	_, err := New(day("2024-01-05"), day("2024-01-01"))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestSingleDayRange(t *testing.T) {
	dr, err := New(day("2024-01-01"), day("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, dr.Days())
}

func TestDaysInclusive(t *testing.T) {
	dr, err := Parse("2024-01-01", "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Days())
}

func TestDaysCountsRangesLongerThanADuration(t *testing.T) {
	dr, err := Parse("2026-01-01", "9999-12-31")
	require.NoError(t, err)
	assert.Equal(t, 2912443, dr.Days())

	leap, err := Parse("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 3, leap.Days())
}

func TestNewNormalizesToDay(t *testing.T) {
	start := time.Date(2024, 3, 10, 17, 45, 0, 0, time.UTC)
	dr, err := New(start, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-10"), dr.Start)
	assert.Equal(t, 1, dr.Days())
}

func TestOverlapsSharesBoundaryDay(t *testing.T) {
	a := Must(day("2024-01-01"), day("2024-01-05"))
	b := Must(day("2024-01-05"), day("2024-01-07"))
	c := Must(day("2024-01-06"), day("2024-01-07"))

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
}

func TestContains(t *testing.T) {
	window := Must(day("2024-01-01"), day("2024-01-31"))
	assert.True(t, window.Contains(Must(day("2024-01-01"), day("2024-01-31"))))
	assert.False(t, window.Contains(Must(day("2023-12-31"), day("2024-01-02"))))
	assert.True(t, window.ContainsDate(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
}

func TestEndsBefore(t *testing.T) {
	dr := Must(day("2024-01-01"), day("2024-01-03"))
	assert.False(t, dr.EndsBefore(day("2024-01-03")))
	assert.True(t, dr.EndsBefore(time.Date(2024, 1, 4, 0, 0, 1, 0, time.UTC)))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("2024-13-01", "2024-01-02")
	require.ErrorIs(t, err, ErrInvalidDate)
}
