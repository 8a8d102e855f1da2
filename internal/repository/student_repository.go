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

const studentColumns = "id, full_name, cpf, birth_date, email, phone, secondary_id, gender, address, unit_id, course_id, status, active, created_by_id, created_by_name, created_by_role, created_at, updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByCPF fetches a student by normalized CPF. Returns sql.ErrNoRows
// when no student carries it.
func (r *StudentRepository) FindByCPF(ctx context.Context, cpf string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE cpf = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, cpf); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by cpf: %w", err)
	}
	return &student, nil
}

// List returns students matching the provided filters. Withdrawn
// students are excluded unless IncludeWithdrawn or an explicit status
// filter asks for them.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	baseQuery := `FROM students s WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	} else if !filter.IncludeWithdrawn {
		conditions = append(conditions, fmt.Sprintf("s.status <> $%d", len(args)+1))
		args = append(args, models.StudentStatusWithdrawn)
	}
	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("s.unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.id IN (SELECT student_id FROM class_students WHERE class_id = $%d)", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR s.cpf LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "s.full_name",
		"cpf":        "s.cpf",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.full_name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		prefixColumns(studentColumns, "s"), baseQuery, column, sortOrder, pageSize, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByIDs fetches students for a set of ids, excluding withdrawn ones
// unless includeWithdrawn is set. Order follows full name.
func (r *StudentRepository) ListByIDs(ctx context.Context, ids []string, includeWithdrawn bool) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	base := fmt.Sprintf("SELECT %s FROM students WHERE id IN (?)", studentColumns)
	if !includeWithdrawn {
		base += " AND status <> '" + string(models.StudentStatusWithdrawn) + "'"
	}
	base += " ORDER BY full_name ASC"
	query, args, err := sqlx.In(base, ids)
	if err != nil {
		return nil, fmt.Errorf("build student lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, cpf, birth_date, email, phone, secondary_id, gender, address, unit_id, course_id, status, active, created_by_id, created_by_name, created_by_role, created_at, updated_at)
        VALUES (:id, :full_name, :cpf, :birth_date, :email, :phone, :secondary_id, :gender, :address, :unit_id, :course_id, :status, :active, :created_by_id, :created_by_name, :created_by_role, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. Creator provenance is immutable.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, cpf = :cpf, birth_date = :birth_date, email = :email, phone = :phone, secondary_id = :secondary_id, gender = :gender, address = :address, unit_id = :unit_id, course_id = :course_id, status = :status, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus changes the enrollment status of a student.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// Count returns the total number of student rows.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// DeleteAll removes every student row. Used only by the admin reset.
func (r *StudentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students"); err != nil {
		return fmt.Errorf("delete all students: %w", err)
	}
	return nil
}

func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
