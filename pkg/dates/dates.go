package dates

import (
	"fmt"
	"strings"
	"time"
)

// DayOnly is the canonical wire format for calendar dates.
const DayOnly = "2006-01-02"

var layouts = []string{
	DayOnly,
	time.RFC3339,
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	// Month-first as a last resort. The day-first layouts above are
	// tried earlier, so this only matches values whose day exceeds 12.
	"01/02/2006",
}

// Parse accepts the date formats found in spreadsheets and legacy payloads,
// trying ISO first and Brazilian day-first forms before anything else.
// The result is truncated to midnight UTC.
func Parse(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return Truncate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Truncate drops the time-of-day component, keeping the date in UTC.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current date truncated to midnight UTC.
func Today() time.Time {
	return Truncate(time.Now().UTC())
}

// WeekdayName maps a Go weekday to the lowercase name stored on courses.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}
