package models

import "time"

// ReportJobStatus enumerates report generation states.
type ReportJobStatus string

const (
	ReportJobQueued     ReportJobStatus = "queued"
	ReportJobProcessing ReportJobStatus = "processing"
	ReportJobCompleted  ReportJobStatus = "completed"
	ReportJobFailed     ReportJobStatus = "failed"
)

// ReportFormat selects the rendered output type.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportDetail selects how much per-student detail the report carries.
type ReportDetail string

const (
	ReportDetailSimple   ReportDetail = "simple"
	ReportDetailComplete ReportDetail = "complete"
)

// ReportJob is a persisted background report generation request.
// The job row survives restarts even though the in-memory queue does not.
type ReportJob struct {
	ID          string          `db:"id" json:"id"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	Format      ReportFormat    `db:"format" json:"format"`
	Detail      ReportDetail    `db:"detail" json:"detail"`
	ClassID     *string         `db:"class_id" json:"class_id,omitempty"`
	UnitID      *string         `db:"unit_id" json:"unit_id,omitempty"`
	CourseID    *string         `db:"course_id" json:"course_id,omitempty"`
	FromDate    *time.Time      `db:"from_date" json:"from_date,omitempty"`
	ToDate      *time.Time      `db:"to_date" json:"to_date,omitempty"`
	Status      ReportJobStatus `db:"status" json:"status"`
	Progress    int             `db:"progress" json:"progress"`
	FilePath    *string         `db:"file_path" json:"file_path,omitempty"`
	Error       *string         `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
