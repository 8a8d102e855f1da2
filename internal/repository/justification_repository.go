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

const justificationColumns = "id, student_id, attendance_id, reason_code, reason_text, file_id, file_name, file_mime, file_size, status, visible, uploaded_by_id, created_at, updated_at"

// JustificationRepository manages persistence for absence justifications.
type JustificationRepository struct {
	db *sqlx.DB
}

// NewJustificationRepository constructs a JustificationRepository.
func NewJustificationRepository(db *sqlx.DB) *JustificationRepository {
	return &JustificationRepository{db: db}
}

// Create inserts a new justification.
func (r *JustificationRepository) Create(ctx context.Context, j *models.Justification) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	const query = `INSERT INTO justifications (id, student_id, attendance_id, reason_code, reason_text, file_id, file_name, file_mime, file_size, status, visible, uploaded_by_id, created_at, updated_at)
        VALUES (:id, :student_id, :attendance_id, :reason_code, :reason_text, :file_id, :file_name, :file_mime, :file_size, :status, :visible, :uploaded_by_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, j); err != nil {
		return fmt.Errorf("create justification: %w", err)
	}
	return nil
}

// FindByID fetches a justification by identifier.
func (r *JustificationRepository) FindByID(ctx context.Context, id string) (*models.Justification, error) {
	query := fmt.Sprintf("SELECT %s FROM justifications WHERE id = $1 LIMIT 1", justificationColumns)
	var j models.Justification
	if err := r.db.GetContext(ctx, &j, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find justification by id: %w", err)
	}
	return &j, nil
}

// ListByStudent returns a student's justifications, newest first.
func (r *JustificationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Justification, error) {
	query := fmt.Sprintf("SELECT %s FROM justifications WHERE student_id = $1 AND visible = TRUE ORDER BY created_at DESC", justificationColumns)
	var records []models.Justification
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list justifications: %w", err)
	}
	return records, nil
}

// UpdateStatus moves a justification through its review lifecycle.
func (r *JustificationRepository) UpdateStatus(ctx context.Context, id string, status models.JustificationStatus) error {
	const query = `UPDATE justifications SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update justification status: %w", err)
	}
	return nil
}

// Delete removes a justification row.
func (r *JustificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM justifications WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete justification: %w", err)
	}
	return nil
}
