package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ios-sistema/presenca-api/internal/models"
)

const dropoutColumns = "id, student_id, student_name, class_id, withdrawal_date, reason_code, reason_text, recorded_by_id, recorded_by_name, created_at"

// DropoutRepository manages persistence for withdrawal records.
type DropoutRepository struct {
	db *sqlx.DB
}

// NewDropoutRepository constructs a DropoutRepository.
func NewDropoutRepository(db *sqlx.DB) *DropoutRepository {
	return &DropoutRepository{db: db}
}

// Create inserts a new dropout record.
func (r *DropoutRepository) Create(ctx context.Context, record *models.DropoutRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO dropouts (id, student_id, student_name, class_id, withdrawal_date, reason_code, reason_text, recorded_by_id, recorded_by_name, created_at)
        VALUES (:id, :student_id, :student_name, :class_id, :withdrawal_date, :reason_code, :reason_text, :recorded_by_id, :recorded_by_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create dropout record: %w", err)
	}
	return nil
}

// ListByStudent returns dropout records for one student, newest first.
func (r *DropoutRepository) ListByStudent(ctx context.Context, studentID string) ([]models.DropoutRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM dropouts WHERE student_id = $1 ORDER BY created_at DESC", dropoutColumns)
	var records []models.DropoutRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list dropouts by student: %w", err)
	}
	return records, nil
}

// List returns dropout records, optionally filtered by unit or course
// through the withdrawn student's fields.
func (r *DropoutRepository) List(ctx context.Context, unitID, courseID string, page, pageSize int) ([]models.DropoutRecord, int, error) {
	baseQuery := `FROM dropouts d JOIN students s ON s.id = d.student_id WHERE 1=1`
	var conditions []string
	var args []interface{}
	if unitID != "" {
		conditions = append(conditions, fmt.Sprintf("s.unit_id = $%d", len(args)+1))
		args = append(args, unitID)
	}
	if courseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, courseID)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY d.created_at DESC LIMIT %d OFFSET %d",
		prefixColumns(dropoutColumns, "d"), baseQuery, pageSize, offset)
	var records []models.DropoutRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list dropouts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count dropouts: %w", err)
	}
	return records, total, nil
}

// DeleteByStudent removes every dropout record for a student. Called on
// reactivation.
func (r *DropoutRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM dropouts WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete dropouts: %w", err)
	}
	return nil
}
