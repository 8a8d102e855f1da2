package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ios-sistema/presenca-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	att := &models.Attendance{
		ClassID:      "class-1",
		Date:         time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		RecordedByID: "user-1",
		TotalPresent: 1,
		TotalAbsent:  1,
		Entries: []models.AttendanceEntry{
			{StudentID: "s1", Present: true, RecordedAt: &now},
			{StudentID: "s2", Present: false},
		},
	}
	require.NoError(t, repo.Create(context.Background(), att))
	assert.NotEmpty(t, att.ID)
	assert.Equal(t, att.ID, att.Entries[0].AttendanceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "attendances_class_id_date_key"})
	mock.ExpectRollback()

	att := &models.Attendance{ClassID: "class-1", Date: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), RecordedByID: "user-1"}
	err := repo.Create(context.Background(), att)
	assert.ErrorIs(t, err, ErrDuplicateAttendance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryExists(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attendances WHERE class_id = $1 AND date = $2 LIMIT 1")).
		WithArgs("class-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "class-1", date)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attendances WHERE class_id = $1 AND date = $2 LIMIT 1")).
		WithArgs("class-1", date.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.Exists(context.Background(), "class-1", date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFiledDates(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date FROM attendances WHERE class_id = $1 AND date BETWEEN $2 AND $3")).
		WithArgs("class-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"date"}).AddRow(from).AddRow(to))

	filed, err := repo.FiledDates(context.Background(), "class-1", from, to)
	require.NoError(t, err)
	assert.True(t, filed["2026-03-14"])
	assert.False(t, filed["2026-03-15"])
	assert.True(t, filed["2026-03-16"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
