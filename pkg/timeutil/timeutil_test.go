package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBoundaries(t *testing.T) {
	// 20:30 UTC is already the next day in UTC+5.
	ts := time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)

	start := StartOfDay(ts)
	end := EndOfDay(ts)

	assert.Equal(t, 15, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 15, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, SameDay(start, end))
}

func TestMonthBoundaries(t *testing.T) {
	ts := Date(2026, 2, 10)

	assert.Equal(t, Date(2026, 2, 1), StartOfMonth(ts))
	assert.Equal(t, 28, EndOfMonth(ts).Day())

	m, y := MonthYear(ts)
	assert.Equal(t, 2, m)
	assert.Equal(t, 2026, y)
}

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2026-07-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", FormatDate(d))

	_, err = ParseDate("01/07/2026")
	assert.Error(t, err)
}
