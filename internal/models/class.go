package models

import (
	"time"

	"github.com/lib/pq"
)

// ClassKind categorizes a cohort by who runs it: instructors run
// regular cohorts, pedagogues run extension cohorts.
type ClassKind string

const (
	ClassKindRegular   ClassKind = "regular"
	ClassKindExtension ClassKind = "extension"
)

// KindForRole derives the class kind from the responsible user's role.
func KindForRole(role UserRole) ClassKind {
	if role == RolePedagogue {
		return ClassKindExtension
	}
	return ClassKindRegular
}

// Class represents a scheduled cohort ("turma") of students under one
// course at one unit. StudentIDs is the enrollment set, loaded from the
// class_students join table.
type Class struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	UnitID        string         `db:"unit_id" json:"unit_id"`
	CourseID      string         `db:"course_id" json:"course_id"`
	ResponsibleID string         `db:"responsible_id" json:"responsible_id"`
	MonitorID     *string        `db:"monitor_id" json:"monitor_id,omitempty"`
	Kind          ClassKind      `db:"kind" json:"kind"`
	StartDate     time.Time      `db:"start_date" json:"start_date"`
	EndDate       time.Time      `db:"end_date" json:"end_date"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	TotalSeats    int            `db:"total_seats" json:"total_seats"`
	OccupiedSeats int            `db:"occupied_seats" json:"occupied_seats"`
	Active        bool           `db:"active" json:"active"`
	StudentIDs    pq.StringArray `db:"student_ids" json:"student_ids"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ContainsStudent reports whether the student is on the roster.
func (c Class) ContainsStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	UnitID        string
	CourseID      string
	ResponsibleID string
	Kind          *ClassKind
	Active        *bool
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
