package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ios-sistema/presenca-api/internal/models"
)

const reportJobColumns = "id, requested_by, format, detail, class_id, unit_id, course_id, from_date, to_date, status, progress, file_path, error, created_at, updated_at, completed_at"

// ReportJobRepository persists background report job records so job
// status survives process restarts even though the queue does not.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs a ReportJobRepository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create inserts a new report job row.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	const query = `INSERT INTO report_jobs (id, requested_by, format, detail, class_id, unit_id, course_id, from_date, to_date, status, progress, file_path, error, created_at, updated_at, completed_at)
        VALUES (:id, :requested_by, :format, :detail, :class_id, :unit_id, :course_id, :from_date, :to_date, :status, :progress, :file_path, :error, :created_at, :updated_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID fetches a report job by identifier.
func (r *ReportJobRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM report_jobs WHERE id = $1 LIMIT 1", reportJobColumns)
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job: %w", err)
	}
	return &job, nil
}

// ListByUser returns a user's report jobs, newest first.
func (r *ReportJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM report_jobs WHERE requested_by = $1 ORDER BY created_at DESC LIMIT %d", reportJobColumns, limit)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// UpdateProgress moves a job to processing with the given progress.
func (r *ReportJobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	const query = `UPDATE report_jobs SET status = $2, progress = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportJobProcessing, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("update report progress: %w", err)
	}
	return nil
}

// MarkCompleted finishes a job with its output file path.
func (r *ReportJobRepository) MarkCompleted(ctx context.Context, id, filePath string) error {
	now := time.Now().UTC()
	const query = `UPDATE report_jobs SET status = $2, progress = 100, file_path = $3, updated_at = $4, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportJobCompleted, filePath, now); err != nil {
		return fmt.Errorf("complete report job: %w", err)
	}
	return nil
}

// MarkFailed records a job failure.
func (r *ReportJobRepository) MarkFailed(ctx context.Context, id, reason string) error {
	now := time.Now().UTC()
	const query = `UPDATE report_jobs SET status = $2, error = $3, updated_at = $4, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportJobFailed, reason, now); err != nil {
		return fmt.Errorf("fail report job: %w", err)
	}
	return nil
}
