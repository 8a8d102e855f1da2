package models

import (
	"time"

	"github.com/lib/pq"
)

// DefaultClassDays is the weekday schedule assumed when a course does
// not declare one.
var DefaultClassDays = []string{"monday", "tuesday", "wednesday", "thursday"}

// Course represents a curriculum offered by the institution. ClassDays
// holds lowercase weekday names and is inherited by every class under
// the course when computing pending attendance.
type Course struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	TotalHours int            `db:"total_hours" json:"total_hours"`
	ClassDays  pq.StringArray `db:"class_days" json:"class_days"`
	Active     bool           `db:"active" json:"active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduledDays returns the course weekdays, falling back to Mon-Fri
// when the course never declared a schedule.
func (c Course) ScheduledDays() []string {
	if len(c.ClassDays) > 0 {
		return c.ClassDays
	}
	return []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
