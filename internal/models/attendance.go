package models

import "time"

// Attendance is the write-once daily ledger entry for one class and one
// calendar date. At most one record exists per (class_id, date) and a
// stored record is never edited.
type Attendance struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	Date         time.Time `db:"date" json:"date"`
	Note         *string   `db:"note" json:"note,omitempty"`
	RecordedByID string    `db:"recorded_by_id" json:"recorded_by_id"`
	TotalPresent int       `db:"total_present" json:"total_present"`
	TotalAbsent  int       `db:"total_absent" json:"total_absent"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Entries []AttendanceEntry `json:"entries"`
}

// AttendanceEntry records one student's presence on one attendance
// record. RecordedAt is stamped only when the student was present.
type AttendanceEntry struct {
	ID              string     `db:"id" json:"id"`
	AttendanceID    string     `db:"attendance_id" json:"attendance_id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	Present         bool       `db:"present" json:"present"`
	Note            *string    `db:"note" json:"note,omitempty"`
	JustificationID *string    `db:"justification_id" json:"justification_id,omitempty"`
	RecordedAt      *time.Time `db:"recorded_at" json:"recorded_at,omitempty"`
}

// UrgencyTier ranks pending attendance entries by how overdue they are.
type UrgencyTier string

const (
	UrgencyUrgent    UrgencyTier = "urgent"
	UrgencyImportant UrgencyTier = "important"
	UrgencyPending   UrgencyTier = "pending"
)

// Rank orders tiers for sorting, most time-critical first.
func (u UrgencyTier) Rank() int {
	switch u {
	case UrgencyUrgent:
		return 0
	case UrgencyImportant:
		return 1
	default:
		return 2
	}
}

// PendingAttendance describes one missing attendance record a staff
// member still has to file.
type PendingAttendance struct {
	ClassID    string       `json:"class_id"`
	ClassName  string       `json:"class_name"`
	Date       time.Time    `json:"date"`
	DaysAgo    int          `json:"days_ago"`
	Urgency    UrgencyTier  `json:"urgency"`
	Message    string       `json:"message"`
	Students   []StudentRef `json:"students"`
	TotalSeats int          `json:"total_seats"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time"`
}
