package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ios-sistema/presenca-api/internal/models"
)

const classSelect = `SELECT c.id, c.name, c.unit_id, c.course_id, c.responsible_id, c.monitor_id, c.kind, c.start_date, c.end_date, c.start_time, c.end_time, c.total_seats, c.occupied_seats, c.active, c.created_at, c.updated_at,
    COALESCE(array_agg(cs.student_id) FILTER (WHERE cs.student_id IS NOT NULL), '{}') AS student_ids
    FROM classes c LEFT JOIN class_students cs ON cs.class_id = c.id`

// ClassRepository manages persistence for class cohorts and their
// enrollment sets.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID fetches a class with its roster.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := classSelect + " WHERE c.id = $1 GROUP BY c.id"
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// List returns classes with rosters matching the provided filters.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("c.unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("c.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ResponsibleID != "" {
		conditions = append(conditions, fmt.Sprintf("c.responsible_id = $%d", len(args)+1))
		args = append(args, filter.ResponsibleID)
	}
	if filter.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("c.kind = $%d", len(args)+1))
		args = append(args, *filter.Kind)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s GROUP BY c.id ORDER BY c.name ASC LIMIT %d OFFSET %d", classSelect, where, pageSize, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM classes c%s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// ListContainingStudent returns the classes whose roster holds the student.
func (r *ClassRepository) ListContainingStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	query := classSelect + ` WHERE c.id IN (SELECT class_id FROM class_students WHERE student_id = $1) GROUP BY c.id ORDER BY c.name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list classes containing student: %w", err)
	}
	return classes, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, unit_id, course_id, responsible_id, monitor_id, kind, start_date, end_date, start_time, end_time, total_seats, occupied_seats, active, created_at, updated_at)
        VALUES (:id, :name, :unit_id, :course_id, :responsible_id, :monitor_id, :kind, :start_date, :end_date, :start_time, :end_time, :total_seats, :occupied_seats, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies an existing class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, unit_id = :unit_id, course_id = :course_id, responsible_id = :responsible_id, monitor_id = :monitor_id, kind = :kind, start_date = :start_date, end_date = :end_date, start_time = :start_time, end_time = :end_time, total_seats = :total_seats, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// AddStudent enrolls a student if absent, honoring seat capacity. The
// insert is idempotent; re-adding an enrolled student changes nothing.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) (added bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seats struct {
		Total    int `db:"total_seats"`
		Occupied int `db:"occupied_seats"`
	}
	if err = tx.GetContext(ctx, &seats, "SELECT total_seats, occupied_seats FROM classes WHERE id = $1 FOR UPDATE", classID); err != nil {
		return false, fmt.Errorf("lock class: %w", err)
	}
	if seats.Total > 0 && seats.Occupied >= seats.Total {
		err = fmt.Errorf("class %s is full", classID)
		return false, err
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO class_students (class_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", classID, studentID)
	if err != nil {
		return false, fmt.Errorf("enroll student: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		if _, err = tx.ExecContext(ctx, "UPDATE classes SET occupied_seats = occupied_seats + 1, updated_at = $2 WHERE id = $1", classID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("update occupied seats: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit enrollment: %w", err)
	}
	return rows > 0, nil
}

// RemoveStudent detaches a student from one class roster.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM class_students WHERE class_id = $1 AND student_id = $2", classID, studentID)
	if err != nil {
		return fmt.Errorf("remove student from class: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		if _, err := r.db.ExecContext(ctx, "UPDATE classes SET occupied_seats = GREATEST(occupied_seats - 1, 0), updated_at = $2 WHERE id = $1", classID, time.Now().UTC()); err != nil {
			return fmt.Errorf("update occupied seats: %w", err)
		}
	}
	return nil
}

// RemoveStudentFromAll detaches a student from every class roster,
// used when a student withdraws.
func (r *ClassRepository) RemoveStudentFromAll(ctx context.Context, studentID string) error {
	const query = `UPDATE classes SET occupied_seats = GREATEST(occupied_seats - 1, 0), updated_at = $2
        WHERE id IN (SELECT class_id FROM class_students WHERE student_id = $1)`
	if _, err := r.db.ExecContext(ctx, query, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM class_students WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("remove student from rosters: %w", err)
	}
	return nil
}

// Delete performs a soft delete by marking the class inactive.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE classes SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// Count returns the total number of class rows.
func (r *ClassRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes"); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return total, nil
}

// DeleteAll removes every class and enrollment row. Used only by the
// admin reset.
func (r *ClassRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM class_students"); err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM classes"); err != nil {
		return fmt.Errorf("delete all classes: %w", err)
	}
	return nil
}
