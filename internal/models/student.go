package models

import "time"

// StudentStatus tracks the enrollment lifecycle of a learner.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusWithdrawn StudentStatus = "withdrawn"
	StudentStatusCompleted StudentStatus = "completed"
	StudentStatusSuspended StudentStatus = "suspended"
)

// ValidStudentStatus reports whether the status is a known value.
func ValidStudentStatus(s StudentStatus) bool {
	switch s {
	case StudentStatusActive, StudentStatusWithdrawn, StudentStatusCompleted, StudentStatusSuspended:
		return true
	}
	return false
}

// Student represents a learner registered in the institution. CPF is
// stored normalized (digits only) and unique across all students.
// Creator fields record provenance: who registered the student and in
// which role, stamped once at creation.
type Student struct {
	ID            string        `db:"id" json:"id"`
	FullName      string        `db:"full_name" json:"full_name"`
	CPF           string        `db:"cpf" json:"cpf"`
	BirthDate     *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Email         *string       `db:"email" json:"email,omitempty"`
	Phone         *string       `db:"phone" json:"phone,omitempty"`
	SecondaryID   *string       `db:"secondary_id" json:"secondary_id,omitempty"`
	Gender        *string       `db:"gender" json:"gender,omitempty"`
	Address       *string       `db:"address" json:"address,omitempty"`
	UnitID        *string       `db:"unit_id" json:"unit_id,omitempty"`
	CourseID      *string       `db:"course_id" json:"course_id,omitempty"`
	Status        StudentStatus `db:"status" json:"status"`
	Active        bool          `db:"active" json:"active"`
	CreatedByID   string        `db:"created_by_id" json:"created_by_id"`
	CreatedByName string        `db:"created_by_name" json:"created_by_name"`
	CreatedByRole UserRole      `db:"created_by_role" json:"created_by_role"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search           string
	CourseID         string
	UnitID           string
	ClassID          string
	Status           *StudentStatus
	IncludeWithdrawn bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// StudentRef is the lightweight id+name pair carried in pending
// attendance rosters.
type StudentRef struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}
