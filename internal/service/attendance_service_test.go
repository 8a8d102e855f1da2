package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	"github.com/ios-sistema/presenca-api/internal/repository"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	created   []*models.Attendance
	createErr error
}

func (f *fakeAttendanceRepo) Create(_ context.Context, att *models.Attendance) error {
	if f.createErr != nil {
		return f.createErr
	}
	att.ID = "att-1"
	f.created = append(f.created, att)
	return nil
}

func (f *fakeAttendanceRepo) ListByClass(_ context.Context, _ string) ([]models.Attendance, error) {
	return nil, nil
}

func (f *fakeAttendanceRepo) Count(_ context.Context) (int, error) { return len(f.created), nil }

func (f *fakeAttendanceRepo) DeleteAll(_ context.Context) error {
	f.created = nil
	return nil
}

type fakeAttendanceClassRepo struct {
	class *models.Class
}

func (f *fakeAttendanceClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if f.class != nil && f.class.ID == id {
		return f.class, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceClassRepo) Count(_ context.Context) (int, error) { return 1, nil }
func (f *fakeAttendanceClassRepo) DeleteAll(_ context.Context) error    { return nil }

type fakeAttendanceStudentRepo struct{}

func (f *fakeAttendanceStudentRepo) Count(_ context.Context) (int, error) { return 2, nil }
func (f *fakeAttendanceStudentRepo) DeleteAll(_ context.Context) error    { return nil }

type allowAllScope struct{ allow bool }

func (a allowAllScope) CanManageClass(_ models.Principal, _ models.Class) bool { return a.allow }

func attendanceFixture(todayOnly bool) (*AttendanceService, *fakeAttendanceRepo) {
	repo := &fakeAttendanceRepo{}
	classes := &fakeAttendanceClassRepo{class: &models.Class{ID: "c1", UnitID: "u1", ResponsibleID: "inst-1", Active: true}}
	svc := NewAttendanceService(repo, classes, &fakeAttendanceStudentRepo{}, allowAllScope{allow: true}, nil, zap.NewNop(), todayOnly)
	svc.now = func() time.Time { return time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAttendanceCreateTotals(t *testing.T) {
	svc, repo := attendanceFixture(false)
	principal := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	att, err := svc.Create(context.Background(), principal, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-18",
		Entries: []AttendanceEntryRequest{
			{StudentID: "s1", Present: true},
			{StudentID: "s2", Present: false},
			{StudentID: "s3", Present: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, att.TotalPresent)
	assert.Equal(t, 1, att.TotalAbsent)
	require.Len(t, repo.created, 1)

	// Present entries carry a timestamp, absent ones do not.
	assert.NotNil(t, att.Entries[0].RecordedAt)
	assert.Nil(t, att.Entries[1].RecordedAt)
}

func TestAttendanceCreateDuplicateConflict(t *testing.T) {
	svc, repo := attendanceFixture(false)
	repo.createErr = repository.ErrDuplicateAttendance

	_, err := svc.Create(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-18",
		Entries: []AttendanceEntryRequest{{StudentID: "s1", Present: true}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAttendanceCreateRejectsFutureDate(t *testing.T) {
	svc, _ := attendanceFixture(false)

	_, err := svc.Create(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-19",
		Entries: []AttendanceEntryRequest{{StudentID: "s1", Present: true}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestAttendanceCreateBackfillAllowedByDefault(t *testing.T) {
	svc, _ := attendanceFixture(false)

	_, err := svc.Create(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-16",
		Entries: []AttendanceEntryRequest{{StudentID: "s1", Present: true}},
	})
	assert.NoError(t, err)
}

func TestAttendanceCreateTodayOnlyFlag(t *testing.T) {
	svc, _ := attendanceFixture(true)

	_, err := svc.Create(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-17",
		Entries: []AttendanceEntryRequest{{StudentID: "s1", Present: true}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestAttendanceCreateRejectsDuplicateStudent(t *testing.T) {
	svc, _ := attendanceFixture(false)

	_, err := svc.Create(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-18",
		Entries: []AttendanceEntryRequest{
			{StudentID: "s1", Present: true},
			{StudentID: "s1", Present: false},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestAttendanceCreateForbidden(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	classes := &fakeAttendanceClassRepo{class: &models.Class{ID: "c1", UnitID: "u1", ResponsibleID: "inst-1", Active: true}}
	svc := NewAttendanceService(repo, classes, &fakeAttendanceStudentRepo{}, allowAllScope{allow: false}, nil, zap.NewNop(), false)

	_, err := svc.Create(context.Background(), models.Principal{UserID: "other", Role: models.RoleInstructor}, CreateAttendanceRequest{
		ClassID: "c1",
		Date:    "2026-03-18",
		Entries: []AttendanceEntryRequest{{StudentID: "s1", Present: true}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestResetAllAdminOnly(t *testing.T) {
	svc, _ := attendanceFixture(false)

	_, err := svc.ResetAll(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	result, err := svc.ResetAll(context.Background(), models.Principal{UserID: "adm", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 2, result.StudentsRemoved)
	assert.Equal(t, 1, result.ClassesRemoved)
}
