package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ios-sistema/presenca-api/internal/models"
)

// ErrDuplicateAttendance signals the storage-level uniqueness constraint
// on (class_id, date) fired. This is the expected loser of a concurrent
// double-submit, not a storage failure.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this class and date")

const attendanceColumns = "id, class_id, date, note, recorded_by_id, total_present, total_absent, created_at"

// AttendanceRepository manages the write-once daily attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create stores an attendance record and its per-student entries in one
// transaction. A duplicate (class_id, date) pair fails with
// ErrDuplicateAttendance via the unique index, so two concurrent
// submissions cannot both win.
func (r *AttendanceRepository) Create(ctx context.Context, att *models.Attendance) (err error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertAttendance = `INSERT INTO attendances (id, class_id, date, note, recorded_by_id, total_present, total_absent, created_at)
        VALUES (:id, :class_id, :date, :note, :recorded_by_id, :total_present, :total_absent, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertAttendance, att); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateAttendance
			return err
		}
		return fmt.Errorf("create attendance: %w", err)
	}

	const insertEntry = `INSERT INTO attendance_entries (id, attendance_id, student_id, present, note, justification_id, recorded_at)
        VALUES (:id, :attendance_id, :student_id, :present, :note, :justification_id, :recorded_at)`
	for i := range att.Entries {
		entry := &att.Entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.AttendanceID = att.ID
		if _, err = tx.NamedExecContext(ctx, insertEntry, entry); err != nil {
			return fmt.Errorf("create attendance entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// FindByID fetches an attendance record with its entries.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := fmt.Sprintf("SELECT %s FROM attendances WHERE id = $1 LIMIT 1", attendanceColumns)
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by id: %w", err)
	}
	if err := r.loadEntries(ctx, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Exists reports whether an attendance record exists for the class on
// the given date.
func (r *AttendanceRepository) Exists(ctx context.Context, classID string, date time.Time) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM attendances WHERE class_id = $1 AND date = $2 LIMIT 1", classID, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// FiledDates returns the dates in [from, to] already covered by an
// attendance record for the class.
func (r *AttendanceRepository) FiledDates(ctx context.Context, classID string, from, to time.Time) (map[string]bool, error) {
	var raw []time.Time
	const query = `SELECT date FROM attendances WHERE class_id = $1 AND date BETWEEN $2 AND $3`
	if err := r.db.SelectContext(ctx, &raw, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list filed dates: %w", err)
	}
	filed := make(map[string]bool, len(raw))
	for _, d := range raw {
		filed[d.Format("2006-01-02")] = true
	}
	return filed, nil
}

// ListByClass returns the attendance history of a class, newest first,
// with entries attached.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID string) ([]models.Attendance, error) {
	query := fmt.Sprintf("SELECT %s FROM attendances WHERE class_id = $1 ORDER BY date DESC", attendanceColumns)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	for i := range records {
		if err := r.loadEntries(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// ListForReport returns attendance rows joined with class metadata for
// the report generator, filtered to the given class ids and date range.
func (r *AttendanceRepository) ListForReport(ctx context.Context, classIDs []string, from, to *time.Time) ([]models.Attendance, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	base := fmt.Sprintf("SELECT %s FROM attendances WHERE class_id IN (?)", attendanceColumns)
	args := []interface{}{classIDs}
	if from != nil {
		base += " AND date >= ?"
		args = append(args, *from)
	}
	if to != nil {
		base += " AND date <= ?"
		args = append(args, *to)
	}
	base += " ORDER BY date ASC"
	query, inArgs, err := sqlx.In(base, args...)
	if err != nil {
		return nil, fmt.Errorf("build report query: %w", err)
	}
	query = r.db.Rebind(query)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, inArgs...); err != nil {
		return nil, fmt.Errorf("list attendance for report: %w", err)
	}
	for i := range records {
		if err := r.loadEntries(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// ClearJustificationRef detaches a justification from any entries that
// reference it.
func (r *AttendanceRepository) ClearJustificationRef(ctx context.Context, justificationID string) error {
	const query = `UPDATE attendance_entries SET justification_id = NULL WHERE justification_id = $1`
	if _, err := r.db.ExecContext(ctx, query, justificationID); err != nil {
		return fmt.Errorf("clear justification reference: %w", err)
	}
	return nil
}

// CountToday returns how many attendance records were filed for the
// given date across the provided classes; nil classIDs means all.
func (r *AttendanceRepository) CountToday(ctx context.Context, date time.Time, classIDs []string) (int, error) {
	var total int
	if classIDs == nil {
		if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendances WHERE date = $1", date); err != nil {
			return 0, fmt.Errorf("count attendance: %w", err)
		}
		return total, nil
	}
	if len(classIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("SELECT COUNT(*) FROM attendances WHERE date = ? AND class_id IN (?)", date, classIDs)
	if err != nil {
		return 0, fmt.Errorf("build attendance count: %w", err)
	}
	query = r.db.Rebind(query)
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, nil
}

// Count returns the total number of attendance rows.
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendances"); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, nil
}

// DeleteAll removes every attendance row and entry. Used only by the
// admin reset.
func (r *AttendanceRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM attendance_entries"); err != nil {
		return fmt.Errorf("delete attendance entries: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM attendances"); err != nil {
		return fmt.Errorf("delete attendances: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) loadEntries(ctx context.Context, att *models.Attendance) error {
	const query = `SELECT id, attendance_id, student_id, present, note, justification_id, recorded_at FROM attendance_entries WHERE attendance_id = $1 ORDER BY student_id ASC`
	if err := r.db.SelectContext(ctx, &att.Entries, query, att.ID); err != nil {
		return fmt.Errorf("load attendance entries: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
