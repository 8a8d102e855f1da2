package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeDropoutRepo struct {
	records []models.DropoutRecord
}

func (f *fakeDropoutRepo) Create(_ context.Context, record *models.DropoutRecord) error {
	record.ID = "drop-1"
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeDropoutRepo) ListByStudent(_ context.Context, studentID string) ([]models.DropoutRecord, error) {
	var out []models.DropoutRecord
	for _, r := range f.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDropoutRepo) List(_ context.Context, _, _ string, _, _ int) ([]models.DropoutRecord, int, error) {
	return f.records, len(f.records), nil
}

func (f *fakeDropoutRepo) DeleteByStudent(_ context.Context, studentID string) error {
	kept := f.records[:0]
	for _, r := range f.records {
		if r.StudentID != studentID {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type fakeDropoutStudentRepo struct {
	students map[string]*models.Student
}

func (f *fakeDropoutStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDropoutStudentRepo) UpdateStatus(_ context.Context, id string, status models.StudentStatus) error {
	f.students[id].Status = status
	return nil
}

type fakeDropoutClassRepo struct {
	removedFromAll []string
}

func (f *fakeDropoutClassRepo) RemoveStudentFromAll(_ context.Context, studentID string) error {
	f.removedFromAll = append(f.removedFromAll, studentID)
	return nil
}

type allowAllStudents struct{ allow bool }

func (a allowAllStudents) CanManageStudent(_ context.Context, _ models.Principal, _ string) (bool, error) {
	return a.allow, nil
}

func dropoutFixture() (*DropoutService, *fakeDropoutRepo, *fakeDropoutStudentRepo, *fakeDropoutClassRepo) {
	dropouts := &fakeDropoutRepo{}
	students := &fakeDropoutStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Ana Lima", Status: models.StudentStatusActive},
		"s2": {ID: "s2", FullName: "Bruno Souza", Status: models.StudentStatusWithdrawn},
	}}
	classes := &fakeDropoutClassRepo{}
	svc := NewDropoutService(dropouts, students, classes, allowAllStudents{allow: true}, nil, zap.NewNop())
	return svc, dropouts, students, classes
}

func TestWithdrawStudent(t *testing.T) {
	svc, dropouts, students, classes := dropoutFixture()
	principal := models.Principal{UserID: "inst-1", FullName: "Prof Silva", Role: models.RoleInstructor}

	record, err := svc.Withdraw(context.Background(), principal, WithdrawRequest{
		StudentID:  "s1",
		ReasonCode: "mudou_endereco",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ana Lima", record.StudentName)
	assert.Equal(t, models.StudentStatusWithdrawn, students.students["s1"].Status)
	assert.Equal(t, []string{"s1"}, classes.removedFromAll)
	require.Len(t, dropouts.records, 1)
}

func TestWithdrawCustomReasonRequiresText(t *testing.T) {
	svc, _, _, _ := dropoutFixture()
	principal := models.Principal{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Withdraw(context.Background(), principal, WithdrawRequest{
		StudentID:  "s1",
		ReasonCode: models.DropoutReasonCustom,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))

	text := "Transferred to another institution"
	_, err = svc.Withdraw(context.Background(), principal, WithdrawRequest{
		StudentID:  "s1",
		ReasonCode: models.DropoutReasonCustom,
		ReasonText: &text,
	})
	assert.NoError(t, err)
}

func TestWithdrawUnknownReason(t *testing.T) {
	svc, _, _, _ := dropoutFixture()

	_, err := svc.Withdraw(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, WithdrawRequest{
		StudentID:  "s1",
		ReasonCode: "no_such_reason",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestWithdrawMonitorForbidden(t *testing.T) {
	svc, _, _, _ := dropoutFixture()

	_, err := svc.Withdraw(context.Background(), models.Principal{UserID: "mon-1", Role: models.RoleMonitor}, WithdrawRequest{
		StudentID:  "s1",
		ReasonCode: "mudou_endereco",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWithdrawAlreadyWithdrawn(t *testing.T) {
	svc, _, _, _ := dropoutFixture()

	_, err := svc.Withdraw(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, WithdrawRequest{
		StudentID:  "s2",
		ReasonCode: "mudou_endereco",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestReactivateAdminOnly(t *testing.T) {
	svc, dropouts, students, _ := dropoutFixture()
	dropouts.records = append(dropouts.records, models.DropoutRecord{ID: "drop-1", StudentID: "s2"})

	err := svc.Reactivate(context.Background(), models.Principal{UserID: "inst-1", Role: models.RoleInstructor}, "s2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.Reactivate(context.Background(), models.Principal{UserID: "adm", Role: models.RoleAdmin}, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusActive, students.students["s2"].Status)
	assert.Empty(t, dropouts.records)
}

func TestReactivateRequiresWithdrawnStatus(t *testing.T) {
	svc, _, _, _ := dropoutFixture()

	err := svc.Reactivate(context.Background(), models.Principal{UserID: "adm", Role: models.RoleAdmin}, "s1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}
