package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormats(t *testing.T) {
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"2026-03-15",
		"15/03/2026",
		"15-03-2026",
		"2026/03/15",
		"2026-03-15T10:30:00Z",
	} {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "  ", "not-a-date", "32/13/2026"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "monday", WeekdayName(time.Monday))
	assert.Equal(t, "sunday", WeekdayName(time.Sunday))
}
